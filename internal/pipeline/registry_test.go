package pipeline

import (
	"strings"
	"testing"
)

func mustRegistry(t *testing.T, user []Entry) *Registry {
	t.Helper()
	reg, err := NewRegistry(user, DefaultEntries())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestResolveBuiltinCSSChain(t *testing.T) {
	d := NewDispatcher(mustRegistry(t, nil), nil)
	got := d.Resolve("styles.css")
	want := Chain{StepProfiler, StepAddContent, StepEEx, StepCSSMinify, StepOutputPath, StepURLFingerprinting, StepAddLayout, StepSave}
	if got.String() != want.String() {
		t.Fatalf("resolve styles.css = %s, want %s", got, want)
	}
}

func TestResolveBuiltinChainsArePrefixedWithProfiler(t *testing.T) {
	d := NewDispatcher(mustRegistry(t, nil), nil)
	for _, path := range []string{"index.md", "page.eex", "deck.slime", "app.js", "img/photo.jpeg", "logo.png"} {
		chain := d.Resolve(path)
		if len(chain) < 2 || chain[0] != StepProfiler {
			t.Fatalf("resolve %s = %s, want profiler-prefixed chain", path, chain)
		}
	}
}

func TestResolveUserEntryShadowsBuiltin(t *testing.T) {
	user := []Entry{{Matcher: Ext(".css"), Chain: Chain{StepAddContent, StepSave}}}
	d := NewDispatcher(mustRegistry(t, user), nil)
	got := d.Resolve("site/styles.css")
	want := Chain{StepProfiler, StepAddContent, StepSave}
	if got.String() != want.String() {
		t.Fatalf("resolve = %s, want %s", got, want)
	}
}

func TestResolveEarlierPatternShadowsLaterEntry(t *testing.T) {
	user := []Entry{
		{Matcher: MustPattern(`^assets/`), Chain: Chain{StepSave}},
		{Matcher: Ext(".css"), Chain: Chain{StepCSSMinify}},
	}
	d := NewDispatcher(mustRegistry(t, user), nil)
	if got := d.Resolve("assets/site.css"); got.String() != (Chain{StepProfiler, StepSave}).String() {
		t.Fatalf("expected broad pattern to win, got %s", got)
	}
	if got := d.Resolve("other/site.css"); got.String() != (Chain{StepProfiler, StepCSSMinify}).String() {
		t.Fatalf("expected ext entry for other path, got %s", got)
	}
}

func TestResolveMissLogsOnceAndReturnsEmptyChain(t *testing.T) {
	logger := &recordingLogger{}
	d := NewDispatcher(mustRegistry(t, nil), logger)
	chain := d.Resolve("notes.txt")
	if len(chain) != 0 {
		t.Fatalf("expected empty chain, got %s", chain)
	}
	if logger.count() != 1 {
		t.Fatalf("expected one warning, got %d", logger.count())
	}
	if !strings.Contains(logger.warns[0], "notes.txt") {
		t.Fatalf("warning should name the path: %q", logger.warns[0])
	}
}

func TestResolveReturnsIndependentCopies(t *testing.T) {
	d := NewDispatcher(mustRegistry(t, nil), nil)
	first := d.Resolve("a.css")
	first[1] = "mutated"
	second := d.Resolve("a.css")
	if second[1] != StepAddContent {
		t.Fatalf("registry chain was mutated through a resolved copy: %s", second)
	}
}

func TestExtMatchesExtensionExactly(t *testing.T) {
	if !Ext(".md").Match("docs/readme.md") {
		t.Fatalf("expected .md to match")
	}
	if Ext(".md").Match("docs/readme.mdx") {
		t.Fatalf(".md must not match .mdx")
	}
	if Ext(".md").Match("docs/readme.MD") {
		t.Fatalf("extension comparison is case sensitive")
	}
}

func TestGlobMatchesBaseNameWithoutSlash(t *testing.T) {
	g, err := NewGlob("*.scss")
	if err != nil {
		t.Fatalf("new glob: %v", err)
	}
	if !g.Match("styles/deep/site.scss") {
		t.Fatalf("expected base-name match")
	}
	rooted, err := NewGlob("posts/*.md")
	if err != nil {
		t.Fatalf("new glob: %v", err)
	}
	if !rooted.Match("posts/hello.md") || rooted.Match("drafts/posts/hello.md") {
		t.Fatalf("slash globs must match the whole path")
	}
	if _, err := NewGlob("[unterminated"); err == nil {
		t.Fatalf("expected malformed glob to fail")
	}
}

func TestNewRegistryRejectsInvalidChains(t *testing.T) {
	cases := map[string][]Entry{
		"duplicate": {{Matcher: Ext(".x"), Chain: Chain{StepSave, StepSave}}},
		"profiler":  {{Matcher: Ext(".x"), Chain: Chain{StepProfiler, StepSave}}},
		"matcher":   {{Chain: Chain{StepSave}}},
		"empty id":  {{Matcher: Ext(".x"), Chain: Chain{""}}},
	}
	for name, entries := range cases {
		if _, err := NewRegistry(entries, nil); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNewPatternRejectsBadExpression(t *testing.T) {
	if _, err := NewPattern("("); err == nil {
		t.Fatalf("expected compile error")
	}
}
