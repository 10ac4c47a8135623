package build

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/kingrea/kiln/internal/pipeline"
)

var errBoom = errors.New("boom")

type upperStep struct{ pipeline.Base }

func (upperStep) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	out := strings.ToUpper(a.Path)
	return pipeline.Continue(a.WithOutputs(pipeline.Output{Path: out})), nil
}

type failStep struct{ pipeline.Base }

func (failStep) Transform(pipeline.Artifact) (pipeline.Outcome, error) {
	return pipeline.Outcome{}, errBoom
}

func seed(t *testing.T, files ...string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for _, name := range files {
		if err := util.WriteFile(fs, name, []byte(name), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	return fs
}

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	set := pipeline.NewStepSet()
	set.MustRegister(upperStep{Base: pipeline.NewBase("upper")})
	set.MustRegister(failStep{Base: pipeline.NewBase("fail")})
	registry, err := pipeline.NewRegistry([]pipeline.Entry{
		{Matcher: pipeline.Ext(".txt"), Chain: pipeline.Chain{"upper"}},
		{Matcher: pipeline.Ext(".bad"), Chain: pipeline.Chain{"upper", "fail"}},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := pipeline.New(registry, set)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDiscoverSkipsHiddenAndLayouts(t *testing.T) {
	fs := seed(t,
		"index.md",
		"posts/b.md",
		"posts/a.md",
		"posts/_draft.md",
		".git/config",
		"_partials/nav.html",
		"layouts/page.html",
		"public/index.html",
	)
	paths, err := Discover(fs, "layouts", " public/ ", "")
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	want := []string{"index.md", "posts/a.md", "posts/b.md"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected paths %v, want %v", paths, want)
	}
}

func TestRunRecordsEveryPath(t *testing.T) {
	fs := seed(t, "a.txt", "b.bad", "c.unknown", "d/e.txt")
	var (
		mu    sync.Mutex
		calls int
		last  int
	)
	tick := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	runner, err := NewRunner(newPipeline(t), fs,
		WithWorkers(2),
		WithRunID(func() string { return "run-1" }),
		WithClock(func() time.Time { return tick }),
		WithProgress(func(res Result, done, total int) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			last = done
			if total != 4 {
				t.Errorf("expected total 4, got %d", total)
			}
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.RunID != "run-1" {
		t.Fatalf("unexpected run id %s", report.RunID)
	}
	if calls != 4 || last != 4 {
		t.Fatalf("expected 4 progress calls ending at 4, got %d/%d", calls, last)
	}
	var order []string
	for _, res := range report.Results {
		order = append(order, res.Path)
	}
	if strings.Join(order, ",") != "a.txt,b.bad,c.unknown,d/e.txt" {
		t.Fatalf("results not sorted: %v", order)
	}
	if report.Failed() != 1 || report.Misses() != 1 || report.Outputs() != 2 {
		t.Fatalf("unexpected counts failed=%d misses=%d outputs=%d", report.Failed(), report.Misses(), report.Outputs())
	}
	bad := report.Failures()[0]
	if bad.Path != "b.bad" || bad.Step != "fail" || !errors.Is(bad.Err, errBoom) {
		t.Fatalf("unexpected failure %+v", bad)
	}
	if bad.Trail != "profiler > upper > fail" {
		t.Fatalf("unexpected trail %q", bad.Trail)
	}
	if got := report.Results[3].Outputs; len(got) != 1 || got[0] != "D/E.TXT" {
		t.Fatalf("unexpected outputs %v", got)
	}
	if miss := report.Results[2]; !miss.Miss || miss.Leaves != 1 || miss.Failed() {
		t.Fatalf("expected pass-through miss, got %+v", miss)
	}
}

func TestRunSkipsOutputTreeInsideSource(t *testing.T) {
	fs := seed(t, "a.txt", "public/A.TXT", "public/nested/b.txt")
	runner, err := NewRunner(newPipeline(t), fs, WithSkipDirs("public"))
	if err != nil {
		t.Fatal(err)
	}
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Path != "a.txt" {
		t.Fatalf("expected only a.txt dispatched, got %+v", report.Results)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	fs := seed(t, "a.txt", "b.txt")
	runner, err := NewRunner(newPipeline(t), fs)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Results) != 0 {
		t.Fatalf("expected no dispatches, got %d", len(report.Results))
	}
}

func TestNewRunnerRequiresArguments(t *testing.T) {
	if _, err := NewRunner(nil, memfs.New()); err == nil {
		t.Fatalf("expected error without pipeline")
	}
	if _, err := NewRunner(newPipeline(t), nil); err == nil {
		t.Fatalf("expected error without source")
	}
}

func TestRepositoryPersistsLastReport(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "runs"))
	if _, err := repo.Load(); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
	report := Report{
		RunID: "run-2",
		Results: []Result{
			{Path: "a.md", Outputs: []string{"a.html"}},
			newResult("b.md", nil, errBoom, time.Second),
		},
	}
	if err := repo.Save(report); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, err := repo.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.RunID != "run-2" || loaded.Failed() != 1 || loaded.Results[1].Error != "boom" {
		t.Fatalf("unexpected loaded report %+v", loaded)
	}
}
