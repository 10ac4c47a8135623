package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/kiln/internal/build"
	"github.com/kingrea/kiln/internal/logbook"
)

// drive starts the build and feeds every event through Update until the
// build finishes.
func drive(t *testing.T, app *App) tea.Cmd {
	t.Helper()
	if msg := app.start()(); msg != nil {
		t.Fatalf("start should not emit a message, got %T", msg)
	}
	var last tea.Cmd
	for i := 0; i < 100 && !app.Finished(); i++ {
		model, cmd := app.Update(app.waitForEvent()())
		if _, ok := model.(*App); !ok {
			t.Fatalf("unexpected model type: %T", model)
		}
		last = cmd
	}
	if !app.Finished() {
		t.Fatalf("build never finished")
	}
	return last
}

func sampleReport() build.Report {
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	return build.Report{
		RunID:      "run-7",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Results: []build.Result{
			{Path: "a.md", Outputs: []string{"a.html"}},
			{Path: "b.slime", Step: "slime", Error: "unsupported format", Err: errors.New("unsupported format")},
			{Path: "robots.txt", Miss: true, Leaves: 1},
		},
	}
}

func TestAppRunsBuildToSummary(t *testing.T) {
	report := sampleReport()
	run := func(ctx context.Context, progress build.ProgressFunc) (build.Report, error) {
		for i, res := range report.Results {
			progress(res, i+1, len(report.Results))
		}
		return report, nil
	}
	lb, err := logbook.New(filepath.Join(t.TempDir(), "kiln.log"))
	if err != nil {
		t.Fatal(err)
	}
	lb.Warn("no chain matches robots.txt")
	app := NewApp(context.Background(), run, WithLogbook(lb))

	cmd := drive(t, app)
	if cmd == nil {
		t.Fatalf("expected quit command after finishing")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if app.done != 3 || app.failed != 1 {
		t.Fatalf("unexpected progress done=%d failed=%d", app.done, app.failed)
	}
	if app.Err() != nil || app.Report().RunID != "run-7" {
		t.Fatalf("unexpected result %v %+v", app.Err(), app.Report())
	}
	view := app.View()
	for _, want := range []string{"kiln build run-7", "1 outputs", "1 misses", "1 failures", "b.slime", "[slime]", "1.5s", "no chain matches robots.txt"} {
		if !strings.Contains(view, want) {
			t.Fatalf("summary missing %q:\n%s", want, view)
		}
	}
}

func TestAppQuitCancelsRunningBuild(t *testing.T) {
	started := make(chan struct{})
	run := func(ctx context.Context, progress build.ProgressFunc) (build.Report, error) {
		close(started)
		<-ctx.Done()
		return build.Report{RunID: "run-8"}, ctx.Err()
	}
	app := NewApp(context.Background(), run)
	if msg := app.start()(); msg != nil {
		t.Fatalf("unexpected message %T", msg)
	}
	<-started

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd != nil {
		t.Fatalf("quit while running should wait for the build")
	}
	app.Update(app.waitForEvent()())
	if !app.Finished() || !errors.Is(app.Err(), context.Canceled) {
		t.Fatalf("expected cancelled build, got finished=%v err=%v", app.Finished(), app.Err())
	}
	if !strings.Contains(app.View(), "build aborted") {
		t.Fatalf("expected abort notice in view")
	}
}

func TestAppViewWhileRunning(t *testing.T) {
	app := NewApp(context.Background(), nil)
	app.Update(progressMsg{result: build.Result{Path: "posts/a.md"}, done: 1, total: 4})
	view := app.View()
	if !strings.Contains(view, "building 1/4") || !strings.Contains(view, "posts/a.md") {
		t.Fatalf("unexpected running view %q", view)
	}
}

func TestRenderSummaryTruncatesFailures(t *testing.T) {
	var results []build.Result
	for i := 0; i < maxFailureRows+3; i++ {
		results = append(results, build.Result{Path: fmt.Sprintf("f%02d.md", i), Error: "boom"})
	}
	out := RenderSummary(build.Report{RunID: "run-9", Results: results})
	if !strings.Contains(out, "… 3 more") {
		t.Fatalf("expected truncation marker:\n%s", out)
	}
	if strings.Contains(out, fmt.Sprintf("f%02d.md", maxFailureRows)) {
		t.Fatalf("expected rows past the limit to be hidden")
	}
}
