package pipeline

import (
	"fmt"
	"sync"
)

type funcStep struct {
	Base
	transform func(Artifact) (Outcome, error)
	after     func(Artifact) Artifact
}

func newFuncStep(id StepID, transform func(Artifact) (Outcome, error), after func(Artifact) Artifact) *funcStep {
	return &funcStep{Base: NewBase(id), transform: transform, after: after}
}

func (s *funcStep) Transform(a Artifact) (Outcome, error) {
	if s.transform == nil {
		return s.Base.Transform(a)
	}
	return s.transform(a)
}

func (s *funcStep) AfterTransform(a Artifact) Artifact {
	if s.after == nil {
		return s.Base.AfterTransform(a)
	}
	return s.after(a)
}

// appendStep appends its id to the content so tests can read execution order.
func appendStep(id StepID) *funcStep {
	return newFuncStep(id, func(a Artifact) (Outcome, error) {
		return Continue(a.WithContent(append(append([]byte{}, a.Content...), []byte(string(id)+";")...))), nil
	}, nil)
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func newSet(steps ...Step) *StepSet {
	set := NewStepSet()
	for _, step := range steps {
		set.MustRegister(step)
	}
	return set
}

func contents(artifacts []Artifact) []string {
	out := make([]string, len(artifacts))
	for i, a := range artifacts {
		out[i] = string(a.Content)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
