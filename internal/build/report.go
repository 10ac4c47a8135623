package build

import (
	"sort"
	"time"

	"github.com/kingrea/kiln/internal/pipeline"
)

// Result is the outcome of one dispatched source path.
type Result struct {
	Path     string        `json:"path"`
	Outputs  []string      `json:"outputs,omitempty"`
	Leaves   int           `json:"leaves"`
	Miss     bool          `json:"miss,omitempty"`
	Duration time.Duration `json:"duration"`
	Step     string        `json:"step,omitempty"`
	Trail    string        `json:"trail,omitempty"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
}

// Failed reports whether the dispatch returned an error.
func (r Result) Failed() bool {
	return r.Err != nil || r.Error != ""
}

func newResult(p string, leaves []pipeline.Artifact, err error, elapsed time.Duration) Result {
	res := Result{Path: p, Leaves: len(leaves), Duration: elapsed}
	for _, leaf := range leaves {
		for _, out := range leaf.Outputs {
			res.Outputs = append(res.Outputs, out.Path)
		}
	}
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		if failure, ok := pipeline.AsFailure(err); ok {
			res.Step = string(failure.Step)
			res.Trail = failure.TrailString()
		}
	}
	return res
}

// Report summarises one build run.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// Failed counts failing dispatches.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Failed() {
			n++
		}
	}
	return n
}

// Misses counts paths no chain matched.
func (r Report) Misses() int {
	n := 0
	for _, res := range r.Results {
		if res.Miss {
			n++
		}
	}
	return n
}

// Outputs counts every output path produced across the run.
func (r Report) Outputs() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Outputs)
	}
	return n
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failures returns only the failing results, in path order.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
}
