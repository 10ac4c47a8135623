// cmd/kiln/main.go
//
// Entry point for the kiln CLI. It loads kiln.yaml from the project
// directory, builds the step set and chain registry, and runs one build of
// the source tree. Progress goes to a bubbletea view when stdout is a
// terminal and to plain lines otherwise. Any failed path exits with status 1.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/mattn/go-isatty"

	"github.com/kingrea/kiln/internal/build"
	"github.com/kingrea/kiln/internal/config"
	"github.com/kingrea/kiln/internal/logbook"
	"github.com/kingrea/kiln/internal/pipeline"
	"github.com/kingrea/kiln/internal/steps"
	"github.com/kingrea/kiln/internal/tui"
)

const slowestShown = 3

func main() {
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	workers := flag.Int("workers", 0, "concurrent dispatches (overrides kiln.yaml)")
	plain := flag.Bool("plain", false, "print plain progress lines instead of the TUI")
	initOnly := flag.Bool("init", false, "create .kiln and kiln.yaml, then exit")
	listChains := flag.Bool("chains", false, "print the chain registry and registered steps, then exit")
	showLast := flag.Bool("last", false, "print the previous build report, then exit")
	chains := chainFlag{}
	flag.Var(&chains, "chain", "extra chain tried before kiln.yaml chains (.ext=step,step | ~regexp=... | glob:pattern=..., repeatable)")
	flag.Parse()

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	if err := config.InitProjectDir(absoluteProject); err != nil {
		die("init .kiln: %v", err)
	}
	if *initOnly {
		fmt.Printf("Initialized %s\n", filepath.Join(absoluteProject, config.FileName))
		return
	}
	cfg, err := config.NewConfig(absoluteProject)
	if err != nil {
		die("load config: %v", err)
	}
	repo := build.NewRepository(cfg.ReportDir())
	if *showLast {
		if err := printLastBuild(os.Stdout, repo); err != nil {
			die("load report: %v", err)
		}
		return
	}
	if info, err := os.Stat(cfg.SourceDir()); err != nil || !info.IsDir() {
		die("source directory %s does not exist", cfg.SourceDir())
	}

	usePlain := *plain || !isTerminal(os.Stdout)
	var logOpts []logbook.Option
	if usePlain {
		logOpts = append(logOpts, logbook.WithMirror(os.Stderr))
	}
	lb, err := logbook.New(cfg.LogPath(), logOpts...)
	if err != nil {
		die("open logbook: %v", err)
	}
	p, err := newPipeline(cfg, chains, lb)
	if err != nil {
		die("build pipeline: %v", err)
	}
	if *listChains {
		printChains(os.Stdout, p)
		return
	}
	count := cfg.Workers()
	if *workers > 0 {
		count = *workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run := func(ctx context.Context, progress build.ProgressFunc) (build.Report, error) {
		runner, err := build.NewRunner(p, osfs.New(cfg.SourceDir()),
			build.WithWorkers(count),
			build.WithSkipDirs(cfg.SkipDirs()...),
			build.WithLogger(lb),
			build.WithProgress(progress),
		)
		if err != nil {
			return build.Report{}, err
		}
		return runner.Run(ctx)
	}

	var (
		report build.Report
		runErr error
	)
	if usePlain {
		report, runErr = runPlain(ctx, run)
		printSlowest(p.Timings())
	} else {
		report, runErr = runTUI(ctx, run, lb)
	}

	if err := repo.Save(report); err != nil {
		lb.Error("save report: %v", err)
	}
	if runErr != nil {
		die("build: %v", runErr)
	}
	if report.Failed() > 0 {
		os.Exit(1)
	}
}

// newPipeline registers the built-in and script steps and layers flag
// chains, then configured chains, over the built-in table.
func newPipeline(cfg *config.Config, extra chainFlag, lb *logbook.Logbook) (*pipeline.Pipeline, error) {
	set := pipeline.NewStepSet()
	env := steps.Env{
		Source:      osfs.New(cfg.SourceDir()),
		Output:      osfs.New(cfg.OutputDir()),
		LayoutsDir:  cfg.LayoutsDir(),
		ImageWidths: cfg.Project.ImageWidths,
	}
	if err := steps.RegisterBuiltins(set, env); err != nil {
		return nil, err
	}
	if err := steps.RegisterScripts(set, cfg.StepsDir()); err != nil {
		return nil, err
	}
	user, err := extra.Entries()
	if err != nil {
		return nil, err
	}
	configured, err := cfg.Entries()
	if err != nil {
		return nil, err
	}
	registry, err := pipeline.NewRegistry(append(user, configured...), pipeline.DefaultEntries())
	if err != nil {
		return nil, err
	}
	return pipeline.New(registry, set, pipeline.WithLogger(lb))
}

func runPlain(ctx context.Context, run tui.BuildFunc) (build.Report, error) {
	report, err := run(ctx, func(res build.Result, done, total int) {
		prefix := fmt.Sprintf("[%d/%d]", done, total)
		switch {
		case res.Failed():
			fmt.Printf("%s FAIL %s [%s]: %s\n", prefix, res.Path, res.Step, res.Error)
		case res.Miss:
			fmt.Printf("%s miss %s\n", prefix, res.Path)
		default:
			fmt.Printf("%s ok   %s -> %s\n", prefix, res.Path, strings.Join(res.Outputs, ", "))
		}
	})
	fmt.Printf("build %s: %d outputs, %d misses, %d failures in %s\n",
		report.RunID, report.Outputs(), report.Misses(), report.Failed(), report.Duration())
	return report, err
}

func runTUI(ctx context.Context, run tui.BuildFunc, lb *logbook.Logbook) (build.Report, error) {
	app := tui.NewApp(ctx, run, tui.WithLogbook(lb))
	if _, err := tea.NewProgram(app).Run(); err != nil {
		die("run TUI: %v", err)
	}
	return app.Report(), app.Err()
}

func printSlowest(timings *pipeline.Timings) {
	entries := timings.Snapshot()
	if len(entries) == 0 {
		return
	}
	slowest := append([]pipeline.Timing{}, entries...)
	for i := 0; i < len(slowest) && i < slowestShown; i++ {
		for j := i + 1; j < len(slowest); j++ {
			if slowest[j].Duration > slowest[i].Duration {
				slowest[i], slowest[j] = slowest[j], slowest[i]
			}
		}
		fmt.Printf("  slow %s %s\n", slowest[i].Duration, slowest[i].Path)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
