package pipeline

import "fmt"

// Executor drives chains against artifacts.
type Executor struct {
	steps *StepSet
}

// NewExecutor builds an executor over a step set.
func NewExecutor(steps *StepSet) *Executor {
	return &Executor{steps: steps}
}

// Execute runs chain against a and returns every leaf artifact in order:
// branch order first, then the order within each branch. An empty chain
// returns a unchanged. Any failure is returned as a *Failure.
func (e *Executor) Execute(a Artifact, chain Chain) ([]Artifact, error) {
	return e.execute(a, chain, nil)
}

func (e *Executor) execute(a Artifact, chain Chain, trail []StepID) ([]Artifact, error) {
	if len(chain) == 0 {
		return []Artifact{a}, nil
	}
	head, rest := chain[0], chain[1:]
	trail = appendTrail(trail, head)
	step, ok := e.steps.Lookup(head)
	if !ok || step == nil {
		err := fmt.Errorf("%w: %s", ErrUnknownStep, head)
		return nil, enrich(KindContractViolation, err, head, rest, a, trail)
	}
	return e.run(step, a, rest, trail)
}

// run is the single invocation entry point for a step: transform, then either
// recurse into rest or stop, then apply the post-hook to every artifact that
// comes back.
func (e *Executor) run(step Step, a Artifact, rest Chain, trail []StepID) ([]Artifact, error) {
	id := step.ID()
	outcome, kind, err := transform(step, a)
	if err != nil {
		return nil, enrich(kind, err, id, rest, a, trail)
	}
	switch outcome.Directive {
	case DirectiveContinue, DirectiveHalt:
	default:
		err := fmt.Errorf("pipeline: step %s returned unknown directive %d", id, outcome.Directive)
		return nil, enrich(KindContractViolation, err, id, rest, a, trail)
	}
	var results []Artifact
	for _, produced := range outcome.Artifacts {
		if produced.Path != a.Path {
			return nil, enrich(KindContractViolation, pathChanged(a.Path, produced.Path), id, rest, a, trail)
		}
		leaves := []Artifact{produced}
		if outcome.Directive == DirectiveContinue {
			leaves, err = e.execute(produced, rest, trail)
			if err != nil {
				return nil, enrich(KindError, err, id, rest, produced, trail)
			}
		}
		// The tail has already run once post-hooks start, so nothing remains.
		for _, leaf := range leaves {
			finished, kind, err := afterTransform(step, leaf)
			if err != nil {
				return nil, enrich(kind, err, id, nil, leaf, trail)
			}
			if finished.Path != leaf.Path {
				return nil, enrich(KindContractViolation, pathChanged(leaf.Path, finished.Path), id, nil, leaf, trail)
			}
			results = append(results, finished)
		}
	}
	return results, nil
}

func transform(step Step, a Artifact) (outcome Outcome, kind FailureKind, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, kind, err = Outcome{}, KindPanic, recovered(r)
		}
	}()
	outcome, err = step.Transform(a)
	return outcome, KindError, err
}

func afterTransform(step Step, a Artifact) (out Artifact, kind FailureKind, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, kind, err = Artifact{}, KindPanic, recovered(r)
		}
	}()
	return step.AfterTransform(a), KindError, nil
}

func pathChanged(from, to string) error {
	return fmt.Errorf("%w: %s became %q", ErrPathChanged, from, to)
}

func appendTrail(trail []StepID, id StepID) []StepID {
	out := make([]StepID, len(trail), len(trail)+1)
	copy(out, trail)
	return append(out, id)
}
