package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kingrea/kiln/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// ChainFile pairs parsed chain entries with their on-disk source.
type ChainFile struct {
	Chains []ChainConfig `yaml:"chains"`
	Path   string        `yaml:"-"`
}

// Normalized trims the matcher fields and lower-cases step ids.
func (c ChainConfig) Normalized() ChainConfig {
	clone := ChainConfig{
		Ext:     strings.TrimSpace(c.Ext),
		Pattern: strings.TrimSpace(c.Pattern),
		Glob:    strings.TrimSpace(c.Glob),
	}
	if len(c.Steps) > 0 {
		clone.Steps = make([]string, 0, len(c.Steps))
		for _, step := range c.Steps {
			clone.Steps = append(clone.Steps, strings.ToLower(strings.TrimSpace(step)))
		}
	}
	return clone
}

// Validate checks that exactly one matcher is set and that it compiles.
func (c ChainConfig) Validate() error {
	set := 0
	for _, v := range []string{c.Ext, c.Pattern, c.Glob} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of ext, pattern or glob is required")
	}
	if c.Ext != "" && !strings.HasPrefix(c.Ext, ".") {
		return fmt.Errorf("ext %q must start with a dot", c.Ext)
	}
	if len(c.Steps) == 0 {
		return fmt.Errorf("%s: at least one step is required", c.label())
	}
	_, err := c.Entry()
	return err
}

func (c ChainConfig) label() string {
	switch {
	case c.Ext != "":
		return c.Ext
	case c.Pattern != "":
		return "~" + c.Pattern
	default:
		return "glob:" + c.Glob
	}
}

// Entry converts the declaration into a registry entry.
func (c ChainConfig) Entry() (pipeline.Entry, error) {
	var matcher pipeline.Matcher
	switch {
	case c.Ext != "":
		matcher = pipeline.Ext(c.Ext)
	case c.Pattern != "":
		pattern, err := pipeline.NewPattern(c.Pattern)
		if err != nil {
			return pipeline.Entry{}, err
		}
		matcher = pattern
	case c.Glob != "":
		glob, err := pipeline.NewGlob(c.Glob)
		if err != nil {
			return pipeline.Entry{}, err
		}
		matcher = glob
	default:
		return pipeline.Entry{}, fmt.Errorf("config: chain has no matcher")
	}
	chain := make(pipeline.Chain, len(c.Steps))
	for i, step := range c.Steps {
		chain[i] = pipeline.StepID(step)
	}
	return pipeline.Entry{Matcher: matcher, Chain: chain}, nil
}

// Entries converts every configured chain, inline chains first, into
// registry entries in declaration order.
func (c *Config) Entries() ([]pipeline.Entry, error) {
	chains := c.AllChains()
	entries := make([]pipeline.Entry, 0, len(chains))
	for i, chain := range chains {
		entry, err := chain.Entry()
		if err != nil {
			return nil, fmt.Errorf("config: chain %d (%s): %w", i, chain.label(), err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ParseChainYAML decodes and validates a chain file payload.
func ParseChainYAML(data []byte) ([]ChainConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("config: chain payload is empty")
	}
	var file ChainFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: decode chains: %w", err)
	}
	out := make([]ChainConfig, len(file.Chains))
	for i, chain := range file.Chains {
		normalized := chain.Normalized()
		if err := normalized.Validate(); err != nil {
			return nil, fmt.Errorf("config: chains[%d]: %w", i, err)
		}
		out[i] = normalized
	}
	return out, nil
}

// LoadChainFile reads one chain file from disk.
func LoadChainFile(path string) (ChainFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ChainFile{}, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ChainFile{}, fmt.Errorf("config: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ChainFile{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	chains, err := ParseChainYAML(data)
	if err != nil {
		return ChainFile{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return ChainFile{Chains: chains, Path: filepath.Clean(path)}, nil
}

// LoadChainDir scans a directory for *.yaml and *.go chain files sorted by
// path.
// Missing directories are treated as "no extra chains".
func LoadChainDir(dir string) ([]ChainFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", trimmed, err)
	}
	var files []ChainFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(trimmed, entry.Name())
		var (
			file ChainFile
			err  error
		)
		switch {
		case isYAMLFile(entry.Name()):
			file, err = LoadChainFile(path)
		case filepath.Ext(entry.Name()) == ".go":
			file, err = LoadGoChainFile(path)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
