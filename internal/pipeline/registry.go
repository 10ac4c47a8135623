package pipeline

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Chain is an ordered list of step identifiers. Execution order is chain order.
type Chain []StepID

// Clone returns a copy of the chain.
func (c Chain) Clone() Chain {
	if len(c) == 0 {
		return Chain{}
	}
	return append(Chain{}, c...)
}

func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, id := range c {
		parts[i] = string(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (c Chain) validate() error {
	seen := make(map[StepID]struct{}, len(c))
	for _, id := range c {
		if id == "" {
			return fmt.Errorf("empty step id")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate step %s", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Matcher decides whether a registry entry applies to a source path.
type Matcher interface {
	Match(path string) bool
	String() string
}

// Ext matches when the path's extension equals the value exactly (".css").
type Ext string

// Match implements Matcher.
func (e Ext) Match(p string) bool {
	return filepath.Ext(p) == string(e)
}

func (e Ext) String() string {
	return string(e)
}

// Pattern matches the slash-separated path against a regular expression.
type Pattern struct {
	re *regexp.Regexp
}

// NewPattern compiles expr into a Pattern.
func NewPattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("pipeline: compile pattern %q: %w", expr, err)
	}
	return Pattern{re: re}, nil
}

// MustPattern is NewPattern for package-level tables.
func MustPattern(expr string) Pattern {
	p, err := NewPattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Match implements Matcher.
func (p Pattern) Match(path string) bool {
	if p.re == nil {
		return false
	}
	return p.re.MatchString(filepath.ToSlash(path))
}

func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return "~" + p.re.String()
}

// Glob matches shell globs. A glob without a slash is tested against the base
// name only, so "*.scss" matches at any depth.
type Glob string

// NewGlob validates the glob syntax.
func NewGlob(expr string) (Glob, error) {
	if strings.TrimSpace(expr) == "" {
		return "", fmt.Errorf("pipeline: glob is empty")
	}
	if _, err := path.Match(expr, ""); err != nil {
		return "", fmt.Errorf("pipeline: glob %q: %w", expr, err)
	}
	return Glob(expr), nil
}

// Match implements Matcher.
func (g Glob) Match(p string) bool {
	candidate := filepath.ToSlash(p)
	pattern := string(g)
	if !strings.Contains(pattern, "/") {
		candidate = path.Base(candidate)
	}
	ok, err := path.Match(pattern, candidate)
	return err == nil && ok
}

func (g Glob) String() string {
	return "glob:" + string(g)
}

// Entry pairs a matcher with the chain selected when it matches.
type Entry struct {
	Matcher Matcher
	Chain   Chain
}

// Registry is the ordered, read-only list of entries a Dispatcher scans.
// User entries sit ahead of the built-in entries; the first match wins.
type Registry struct {
	entries []Entry
}

// NewRegistry builds the effective registry from user entries followed by
// built-in entries, keeping each group's order. The inputs are copied.
func NewRegistry(user, builtin []Entry) (*Registry, error) {
	entries := make([]Entry, 0, len(user)+len(builtin))
	for idx, entry := range append(append([]Entry{}, user...), builtin...) {
		if entry.Matcher == nil {
			return nil, fmt.Errorf("pipeline: registry entry %d: matcher is required", idx)
		}
		if err := entry.Chain.validate(); err != nil {
			return nil, fmt.Errorf("pipeline: registry entry %s: %w", entry.Matcher, err)
		}
		for _, id := range entry.Chain {
			if id == StepProfiler {
				return nil, fmt.Errorf("pipeline: registry entry %s: %s is prepended by the dispatcher", entry.Matcher, StepProfiler)
			}
		}
		entries = append(entries, Entry{Matcher: entry.Matcher, Chain: entry.Chain.Clone()})
	}
	return &Registry{entries: entries}, nil
}

// Lookup returns a copy of the first matching chain.
func (r *Registry) Lookup(path string) (Chain, bool) {
	if r == nil {
		return nil, false
	}
	for _, entry := range r.entries {
		if entry.Matcher.Match(path) {
			return entry.Chain.Clone(), true
		}
	}
	return nil, false
}

// Entries returns the entries in scan order.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	for i, entry := range r.entries {
		out[i] = Entry{Matcher: entry.Matcher, Chain: entry.Chain.Clone()}
	}
	return out
}

// Chains returns every chain in the registry, in scan order.
func (r *Registry) Chains() []Chain {
	if r == nil {
		return nil
	}
	out := make([]Chain, len(r.entries))
	for i, entry := range r.entries {
		out[i] = entry.Chain.Clone()
	}
	return out
}

// DefaultEntries returns the built-in chain table.
func DefaultEntries() []Entry {
	return []Entry{
		{Matcher: Ext(".slime"), Chain: Chain{StepAddContent, StepEEx, StepFrontmatter, StepSlime, StepOutputPath, StepAddLayout, StepSave}},
		{Matcher: Ext(".eex"), Chain: Chain{StepAddContent, StepFrontmatter, StepEEx, StepOutputPath, StepAddLayout, StepSave}},
		{Matcher: Ext(".css"), Chain: Chain{StepAddContent, StepEEx, StepCSSMinify, StepOutputPath, StepURLFingerprinting, StepAddLayout, StepSave}},
		{Matcher: Ext(".js"), Chain: Chain{StepAddContent, StepEEx, StepJSMinify, StepOutputPath, StepURLFingerprinting, StepAddLayout, StepSave}},
		{Matcher: Ext(".md"), Chain: Chain{StepAddContent, StepEEx, StepFrontmatter, StepMarkdown, StepOutputPath, StepAddLayout, StepSave}},
		{Matcher: imagePattern, Chain: Chain{StepAddContent, StepOutputPath, StepImage, StepSave}},
	}
}

var imagePattern = MustPattern(`\.(jpe?g|png)$`)
