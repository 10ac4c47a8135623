// internal/tui/app.go
//
// Terminal view for a kiln build. It uses bubbletea (The Elm Architecture):
// the build runs in a goroutine and reports through messages, Update folds
// them into the model, and View renders a spinner while running and a
// summary once the report is in.

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/kiln/internal/build"
	"github.com/kingrea/kiln/internal/logbook"
)

const (
	defaultWidth   = 100
	maxFailureRows = 12
	logTailLines   = 5
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7BD88F"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5C26B"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
)

// BuildFunc runs a build, reporting each finished path through progress.
type BuildFunc func(ctx context.Context, progress build.ProgressFunc) (build.Report, error)

type progressMsg struct {
	result build.Result
	done   int
	total  int
}

type finishedMsg struct {
	report build.Report
	err    error
}

// AppOption customizes App construction.
type AppOption func(*App)

// WithLogbook shows the tail of the logbook under the summary.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// App is the bubbletea model for one build.
type App struct {
	build   BuildFunc
	logbook *logbook.Logbook

	ctx    context.Context
	cancel context.CancelFunc
	events chan tea.Msg

	spinner  spinner.Model
	width    int
	done     int
	total    int
	last     string
	failed   int
	finished bool
	report   build.Report
	err      error
}

// NewApp prepares the model. The build starts on Init.
func NewApp(ctx context.Context, run BuildFunc, opts ...AppOption) *App {
	ctx, cancel := context.WithCancel(ctx)
	a := &App{
		build:  run,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan tea.Msg, 64),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(titleStyle),
		),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Init starts the spinner and the build.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.start(), a.waitForEvent())
}

func (a *App) start() tea.Cmd {
	return func() tea.Msg {
		go func() {
			report, err := a.build(a.ctx, func(res build.Result, done, total int) {
				a.events <- progressMsg{result: res, done: done, total: total}
			})
			a.events <- finishedMsg{report: report, err: err}
		}()
		return nil
	}
}

func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-a.events
	}
}

// Update folds build events and key presses into the model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			a.cancel()
			if a.finished {
				return a, tea.Quit
			}
		}
		return a, nil

	case progressMsg:
		a.done = msg.done
		a.total = msg.total
		a.last = msg.result.Path
		if msg.result.Failed() {
			a.failed++
		}
		return a, a.waitForEvent()

	case finishedMsg:
		a.finished = true
		a.report = msg.report
		a.err = msg.err
		a.cancel()
		return a, tea.Quit

	case spinner.TickMsg:
		if a.finished {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

// View renders the running status or the final summary.
func (a *App) View() string {
	if a.finished {
		return a.renderSummary() + "\n"
	}
	status := fmt.Sprintf("%s building %d/%d", a.spinner.View(), a.done, a.total)
	if a.failed > 0 {
		status += errStyle.Render(fmt.Sprintf("  %d failed", a.failed))
	}
	if a.last != "" {
		status += "\n" + mutedStyle.Render("  "+a.last)
	}
	return status + "\n"
}

// Finished reports whether the build has returned.
func (a *App) Finished() bool {
	return a.finished
}

// Report returns the final report. It is empty until Finished.
func (a *App) Report() build.Report {
	return a.report
}

// Err returns the run error, if the build aborted.
func (a *App) Err() error {
	return a.err
}

func (a *App) renderSummary() string {
	width := a.width
	if width <= 0 {
		width = defaultWidth
	}
	lines := []string{RenderSummary(a.report)}
	if a.err != nil {
		lines = append(lines, errStyle.Render("build aborted: "+a.err.Error()))
	}
	if a.logbook != nil {
		if tail, _ := a.logbook.Tail(logTailLines); len(tail) > 0 {
			lines = append(lines, "", mutedStyle.Render(strings.Join(tail, "\n")))
		}
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, width-4))
	return box.Render(strings.Join(lines, "\n"))
}

// RenderSummary formats a report: counts on top, then the failures with the
// step each one stopped at.
func RenderSummary(report build.Report) string {
	head := titleStyle.Render("kiln build " + report.RunID)
	counts := fmt.Sprintf("%s  %s  %s  %s",
		okStyle.Render(fmt.Sprintf("%d outputs", report.Outputs())),
		warnStyle.Render(fmt.Sprintf("%d misses", report.Misses())),
		failureStyle(report.Failed()).Render(fmt.Sprintf("%d failures", report.Failed())),
		mutedStyle.Render(report.Duration().Round(time.Millisecond).String()),
	)
	lines := []string{head, counts}
	failures := report.Failures()
	for i, res := range failures {
		if i == maxFailureRows {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("… %d more", len(failures)-maxFailureRows)))
			break
		}
		step := res.Step
		if step == "" {
			step = "?"
		}
		lines = append(lines, errStyle.Render("✗ "+res.Path)+mutedStyle.Render(" ["+step+"] ")+res.Error)
	}
	return strings.Join(lines, "\n")
}

func failureStyle(n int) lipgloss.Style {
	if n == 0 {
		return mutedStyle
	}
	return errStyle
}
