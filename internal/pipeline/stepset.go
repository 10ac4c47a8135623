package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// StepSet maps step identifiers to implementations. It is filled once at
// startup and frozen when a Pipeline is built from it.
type StepSet struct {
	mu     sync.RWMutex
	steps  map[StepID]Step
	frozen bool
}

// NewStepSet returns an empty set.
func NewStepSet() *StepSet {
	return &StepSet{steps: map[StepID]Step{}}
}

// Register installs a step under its own ID. Returns an error if the ID
// already exists or the set is frozen.
func (s *StepSet) Register(step Step) error {
	if step == nil {
		return fmt.Errorf("pipeline: step is required")
	}
	id := step.ID()
	if id == "" {
		return fmt.Errorf("pipeline: step id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return fmt.Errorf("pipeline: step set is frozen, cannot register %s", id)
	}
	if _, exists := s.steps[id]; exists {
		return fmt.Errorf("pipeline: step %s already registered", id)
	}
	s.steps[id] = step
	return nil
}

// MustRegister panics if registration fails.
func (s *StepSet) MustRegister(step Step) {
	if err := s.Register(step); err != nil {
		panic(err)
	}
}

// Lookup returns the implementation registered for id.
func (s *StepSet) Lookup(id StepID) (Step, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	step, ok := s.steps[id]
	return step, ok
}

// Has reports whether id is registered.
func (s *StepSet) Has(id StepID) bool {
	_, ok := s.Lookup(id)
	return ok
}

// IDs returns the registered identifiers, sorted.
func (s *StepSet) IDs() []StepID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]StepID, 0, len(s.steps))
	for id := range s.steps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate checks that every step referenced by chains is registered. All
// unknown identifiers are reported together.
func (s *StepSet) Validate(chains ...Chain) error {
	var missing []StepID
	seen := map[StepID]struct{}{}
	for _, chain := range chains {
		for _, id := range chain {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if !s.Has(id) {
				missing = append(missing, id)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return &ConfigError{Unknown: missing}
}

// Freeze rejects further registrations.
func (s *StepSet) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}
