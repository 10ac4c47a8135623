package pipeline

import (
	"fmt"
	"time"
)

// Pipeline couples a dispatcher and an executor over an immutable registry
// and step set. Dispatch is safe to call from many goroutines at once.
type Pipeline struct {
	registry   *Registry
	steps      *StepSet
	dispatcher *Dispatcher
	executor   *Executor
	logger     Logger
	timings    *Timings
	clock      func() time.Time
}

// Option customizes the pipeline.
type Option func(*Pipeline)

// WithLogger routes dispatcher warnings to l.
func WithLogger(l Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTimings shares a timing collector with the default profiler.
func WithTimings(t *Timings) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.timings = t
		}
	}
}

// WithClock injects the clock used by the default profiler.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// New validates every registry chain against steps, registers a profiler
// when none is present, and freezes the step set.
func New(registry *Registry, steps *StepSet, opts ...Option) (*Pipeline, error) {
	if registry == nil {
		return nil, fmt.Errorf("pipeline: registry is required")
	}
	if steps == nil {
		return nil, fmt.Errorf("pipeline: step set is required")
	}
	p := &Pipeline{
		registry: registry,
		steps:    steps,
		logger:   nopLogger{},
		timings:  NewTimings(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if !steps.Has(StepProfiler) {
		if err := steps.Register(NewProfiler(p.timings, p.clock)); err != nil {
			return nil, err
		}
	}
	if err := steps.Validate(registry.Chains()...); err != nil {
		return nil, err
	}
	steps.Freeze()
	p.dispatcher = NewDispatcher(registry, p.logger)
	p.executor = NewExecutor(steps)
	return p, nil
}

// Resolve returns the chain selected for path.
func (p *Pipeline) Resolve(path string) Chain {
	return p.dispatcher.Resolve(path)
}

// Execute runs an explicit chain against a.
func (p *Pipeline) Execute(a Artifact, chain Chain) ([]Artifact, error) {
	return p.executor.Execute(a, chain)
}

// Dispatch resolves the chain for a.Path and executes it.
func (p *Pipeline) Dispatch(a Artifact) ([]Artifact, error) {
	return p.executor.Execute(a, p.Resolve(a.Path))
}

// Timings returns the collector used by the default profiler.
func (p *Pipeline) Timings() *Timings {
	return p.timings
}

// Registry returns the registry the pipeline dispatches over.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Steps returns the frozen step set.
func (p *Pipeline) Steps() *StepSet {
	return p.steps
}
