package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func stubSteps(ids ...StepID) *StepSet {
	set := NewStepSet()
	for _, id := range ids {
		set.MustRegister(appendStep(id))
	}
	return set
}

func builtinStubSet() *StepSet {
	return stubSteps(StepAddContent, StepEEx, StepFrontmatter, StepMarkdown, StepSlime, StepCSSMinify,
		StepJSMinify, StepOutputPath, StepURLFingerprinting, StepAddLayout, StepImage, StepSave)
}

func TestNewRejectsUnregisteredSteps(t *testing.T) {
	reg, err := NewRegistry([]Entry{{Matcher: Ext(".txt"), Chain: Chain{"spellcheck", "typeset"}}}, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	_, err = New(reg, stubSteps("typeset"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if len(cfgErr.Unknown) != 1 || cfgErr.Unknown[0] != "spellcheck" {
		t.Fatalf("unknown = %v", cfgErr.Unknown)
	}
	if !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("ConfigError should unwrap to ErrUnknownStep")
	}
}

func TestNewFreezesStepSet(t *testing.T) {
	reg, _ := NewRegistry(nil, DefaultEntries())
	set := builtinStubSet()
	if _, err := New(reg, set); err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := set.Register(appendStep("late")); err == nil {
		t.Fatalf("expected registration after freeze to fail")
	}
	if !set.Has(StepProfiler) {
		t.Fatalf("expected default profiler to be registered")
	}
}

func TestNewRequiresRegistryAndSteps(t *testing.T) {
	if _, err := New(nil, NewStepSet()); err == nil {
		t.Fatalf("expected registry error")
	}
	reg, _ := NewRegistry(nil, nil)
	if _, err := New(reg, nil); err == nil {
		t.Fatalf("expected step set error")
	}
}

func TestDispatchRunsResolvedChainAndRecordsTiming(t *testing.T) {
	reg, _ := NewRegistry(nil, DefaultEntries())
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Millisecond)
	}
	timings := NewTimings()
	p, err := New(reg, builtinStubSet(), WithClock(clock), WithTimings(timings))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := p.Dispatch(NewArtifact("styles.css", nil))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	want := "add_content;eex;css_minify;output_path;url_fingerprinting;add_layout;save;"
	if len(out) != 1 || string(out[0].Content) != want {
		t.Fatalf("dispatch content = %v", contents(out))
	}
	if d, ok := out[0].Metadata[MetaProfilerDuration].(time.Duration); !ok || d != time.Millisecond {
		t.Fatalf("profiler duration = %v", out[0].Metadata[MetaProfilerDuration])
	}
	snap := timings.Snapshot()
	if len(snap) != 1 || snap[0].Path != "styles.css" || timings.Total("styles.css") != time.Millisecond {
		t.Fatalf("timings = %+v", snap)
	}
}

func TestDispatchMissPassesThrough(t *testing.T) {
	reg, _ := NewRegistry(nil, DefaultEntries())
	logger := &recordingLogger{}
	p, err := New(reg, builtinStubSet(), WithLogger(logger))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	in := NewArtifact("robots.txt", []byte("User-agent: *"))
	out, err := p.Dispatch(in)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(out) != 1 || string(out[0].Content) != "User-agent: *" || out[0].Metadata != nil {
		t.Fatalf("miss should pass artifact through unchanged: %+v", out)
	}
	if logger.count() != 1 {
		t.Fatalf("expected exactly one warning, got %d", logger.count())
	}
}

func TestConcurrentDispatchesDoNotInterfere(t *testing.T) {
	reg, _ := NewRegistry(nil, DefaultEntries())
	p, err := New(reg, builtinStubSet())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("post-%d.md", i)
			out, err := p.Dispatch(NewArtifact(path, nil))
			if err != nil {
				errs <- err
				return
			}
			if len(out) != 1 || out[0].Path != path {
				errs <- fmt.Errorf("unexpected output for %s: %+v", path, out)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if got := len(p.Timings().Snapshot()); got != 32 {
		t.Fatalf("expected 32 timings, got %d", got)
	}
}

func TestArtifactWithMetaDoesNotMutateOriginal(t *testing.T) {
	orig := NewArtifact("a.md", nil).WithMeta("title", "one")
	next := orig.WithMeta("title", "two")
	if orig.MetaString("title") != "one" || next.MetaString("title") != "two" {
		t.Fatalf("metadata leaked between copies: %v / %v", orig.Metadata, next.Metadata)
	}
	merged := next.WithMetadata(map[string]any{"draft": true})
	if _, ok := next.Meta("draft"); ok {
		t.Fatalf("WithMetadata mutated receiver")
	}
	if v, _ := merged.Meta("draft"); v != true {
		t.Fatalf("merge lost key")
	}
}
