package pipeline

import (
	"sort"
	"sync"
	"time"
)

// Metadata keys written by the profiler.
const (
	MetaProfilerStart    = "profiler_started_at"
	MetaProfilerDuration = "profiler_duration"
)

// Timing is one finished leaf artifact and how long its chain took.
type Timing struct {
	Path     string
	Output   string
	Duration time.Duration
}

// Timings collects profiler measurements across concurrent dispatches.
type Timings struct {
	mu      sync.Mutex
	entries []Timing
}

// NewTimings returns an empty collector.
func NewTimings() *Timings {
	return &Timings{}
}

// Record appends a measurement.
func (t *Timings) Record(entry Timing) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
}

// Snapshot returns the measurements sorted by path then output.
func (t *Timings) Snapshot() []Timing {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	out := make([]Timing, len(t.entries))
	copy(out, t.entries)
	t.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Output < out[j].Output
	})
	return out
}

// Total sums every measurement recorded for path.
func (t *Timings) Total(path string) time.Duration {
	var total time.Duration
	for _, entry := range t.Snapshot() {
		if entry.Path == path {
			total += entry.Duration
		}
	}
	return total
}

// Profiler is prepended to every resolved chain. Its post-hook runs last, so
// the recorded duration spans the whole chain for that leaf.
type Profiler struct {
	Base
	timings *Timings
	clock   func() time.Time
}

// NewProfiler builds the profiler step. Nil arguments fall back to a private
// collector and time.Now.
func NewProfiler(timings *Timings, clock func() time.Time) *Profiler {
	if timings == nil {
		timings = NewTimings()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Profiler{Base: NewBase(StepProfiler), timings: timings, clock: clock}
}

// Transform stamps the start time.
func (p *Profiler) Transform(a Artifact) (Outcome, error) {
	return Continue(a.WithMeta(MetaProfilerStart, p.clock())), nil
}

// AfterTransform records the elapsed time for the finished artifact.
func (p *Profiler) AfterTransform(a Artifact) Artifact {
	start, ok := a.Metadata[MetaProfilerStart].(time.Time)
	if !ok {
		return a
	}
	elapsed := p.clock().Sub(start)
	output := ""
	if len(a.Outputs) > 0 {
		output = a.Outputs[0].Path
	}
	p.timings.Record(Timing{Path: a.Path, Output: output, Duration: elapsed})
	return a.WithMeta(MetaProfilerDuration, elapsed)
}
