package pipeline

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

var (
	// ErrUnknownStep marks a chain entry with no registered implementation.
	ErrUnknownStep = errors.New("pipeline: unknown step")
	// ErrPathChanged marks a step that rewrote an artifact's source path.
	ErrPathChanged = errors.New("pipeline: step changed artifact path")
)

// FailureKind classifies an enriched failure.
type FailureKind string

const (
	// KindError is an error returned by a step.
	KindError FailureKind = "error"
	// KindPanic is a panic recovered from a step.
	KindPanic FailureKind = "panic"
	// KindContractViolation is a chain or step that breaks the step contract.
	KindContractViolation FailureKind = "contract-violation"
)

// Failure is a step failure enriched with the pipeline context at the point
// it happened. A Failure is never wrapped in another Failure.
type Failure struct {
	Kind      FailureKind
	Err       error
	Step      StepID
	Remaining Chain
	Artifact  Artifact
	// Trail lists the steps applied on this branch, ending with Step.
	Trail []StepID
	Stack []byte
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("pipeline: %s in step %s for %s (remaining %s): %v",
		f.Kind, f.Step, f.Artifact.Path, f.Remaining, f.Err)
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// TrailString renders the trail as "a > b > c".
func (f *Failure) TrailString() string {
	parts := make([]string, len(f.Trail))
	for i, id := range f.Trail {
		parts[i] = string(id)
	}
	return strings.Join(parts, " > ")
}

// AsFailure extracts an enriched failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// ConfigError reports chains that reference unregistered steps.
type ConfigError struct {
	Unknown []StepID
}

func (e *ConfigError) Error() string {
	parts := make([]string, len(e.Unknown))
	for i, id := range e.Unknown {
		parts[i] = string(id)
	}
	return fmt.Sprintf("pipeline: chains reference unregistered steps: %s", strings.Join(parts, ", "))
}

func (e *ConfigError) Unwrap() error {
	return ErrUnknownStep
}

// enrich wraps err with the invocation context unless it already carries one.
func enrich(kind FailureKind, err error, step StepID, remaining Chain, a Artifact, trail []StepID) error {
	if err == nil {
		return nil
	}
	if _, ok := AsFailure(err); ok {
		return err
	}
	return &Failure{
		Kind:      kind,
		Err:       err,
		Step:      step,
		Remaining: remaining.Clone(),
		Artifact:  a.Clone(),
		Trail:     append([]StepID{}, trail...),
		Stack:     debug.Stack(),
	}
}

// recovered turns a recovered panic value into an error. A Failure raised by a
// nested chain is returned as is.
func recovered(value any) error {
	if err, ok := value.(error); ok {
		if failure, ok := AsFailure(err); ok {
			return failure
		}
	}
	return &PanicError{Value: value}
}

// PanicError carries a value recovered from a panicking step.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
