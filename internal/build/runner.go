package build

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/kiln/internal/pipeline"
)

// Pipeline is the part of *pipeline.Pipeline the runner drives.
type Pipeline interface {
	Resolve(path string) pipeline.Chain
	Execute(a pipeline.Artifact, chain pipeline.Chain) ([]pipeline.Artifact, error)
}

// Logger receives run-level messages.
type Logger interface {
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// ProgressFunc is called once per finished path with the running count.
// Calls are serialised.
type ProgressFunc func(res Result, done, total int)

// Runner builds every discovered path of a source tree.
type Runner struct {
	pipeline   Pipeline
	source     billy.Filesystem
	skipDirs   []string
	workers    int
	clock      func() time.Time
	newID      func() string
	logger     Logger
	progress   ProgressFunc
}

// Option customizes the runner instance.
type Option func(*Runner)

// WithWorkers bounds concurrent dispatches. Values below one are ignored.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithSkipDirs excludes directories of the source tree from discovery.
func WithSkipDirs(dirs ...string) Option {
	return func(r *Runner) {
		r.skipDirs = append(r.skipDirs, dirs...)
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithRunID overrides run identifier generation.
func WithRunID(newID func() string) Option {
	return func(r *Runner) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// WithLogger routes run messages to l.
func WithLogger(l Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithProgress registers a per-path callback.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// NewRunner wires a runner to a pipeline and source tree.
func NewRunner(p Pipeline, source billy.Filesystem, opts ...Option) (*Runner, error) {
	if p == nil {
		return nil, fmt.Errorf("build: pipeline is required")
	}
	if source == nil {
		return nil, fmt.Errorf("build: source filesystem is required")
	}
	r := &Runner{
		pipeline: p,
		source:   source,
		workers:  runtime.NumCPU(),
		clock:    time.Now,
		newID:    uuid.NewString,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Run discovers and dispatches every path. Dispatch failures are recorded in
// the report; the returned error is reserved for discovery problems and
// cancellation.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: r.newID(), StartedAt: r.clock()}
	paths, err := Discover(r.source, r.skipDirs...)
	if err != nil {
		return report, err
	}
	r.logger.Info("build %s: %d paths, %d workers", report.RunID, len(paths), r.workers)

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(paths))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, p := range paths {
		if gctx.Err() != nil {
			break
		}
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.dispatch(p)
			mu.Lock()
			results = append(results, res)
			done := len(results)
			if r.progress != nil {
				r.progress(res, done, len(paths))
			}
			mu.Unlock()
			if res.Failed() {
				r.logger.Error("build %s: %s failed: %s", report.RunID, p, res.Error)
			}
			return nil
		})
	}
	waitErr := g.Wait()

	sortResults(results)
	report.Results = results
	report.FinishedAt = r.clock()
	r.logger.Info("build %s: %d outputs, %d misses, %d failures", report.RunID, report.Outputs(), report.Misses(), report.Failed())
	if waitErr != nil {
		return report, fmt.Errorf("build: %w", waitErr)
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("build: %w", err)
	}
	return report, nil
}

func (r *Runner) dispatch(p string) Result {
	start := r.clock()
	chain := r.pipeline.Resolve(p)
	leaves, err := r.pipeline.Execute(pipeline.NewArtifact(p, nil), chain)
	res := newResult(p, leaves, err, r.clock().Sub(start))
	res.Miss = len(chain) == 0
	return res
}
