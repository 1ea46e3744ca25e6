package state

import (
	"sync"

	"github.com/partforge/partforge/internal/steps"
)

// MemoryStore keeps step state in memory. It backs tests and dry planning
// runs that must not touch the work tree.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]map[steps.Step]*StepState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]map[steps.Step]*StepState)}
}

var _ Store = (*MemoryStore)(nil)

// Get implements Store.
func (m *MemoryStore) Get(part string, step steps.Step) (*StepState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[part][step]
	if !ok {
		return nil, nil
	}
	copied := *st
	return &copied, nil
}

// Put implements Store.
func (m *MemoryStore) Put(part string, step steps.Step, st *StepState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.states[part] == nil {
		m.states[part] = make(map[steps.Step]*StepState)
	}
	copied := *st
	m.states[part][step] = &copied
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(part string, step steps.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range append([]steps.Step{step}, step.NextSteps()...) {
		delete(m.states[part], s)
	}
	return nil
}
