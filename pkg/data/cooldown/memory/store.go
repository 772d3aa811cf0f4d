package memory

import (
	"context"
	"sync"

	"github.com/veritid/identity-guard/pkg/data/cooldown"
)

type store struct {
	mu     sync.Mutex
	states map[string]*cooldown.State
}

// New returns a new in memory cooldown.Store
func New() cooldown.Store {
	return &store{
		states: make(map[string]*cooldown.State),
	}
}

// Get implements cooldown.Store.Get
func (s *store) Get(_ context.Context, identifier string) (*cooldown.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[identifier]
	if !ok {
		return nil, cooldown.ErrStateNotFound
	}
	return state.Clone(), nil
}

// Save implements cooldown.Store.Save
func (s *store) Save(_ context.Context, state *cooldown.State) error {
	if err := state.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.states[state.Identifier]
	if ok && !state.LastSentAt.After(existing.LastSentAt) {
		return cooldown.ErrStaleState
	}

	s.states[state.Identifier] = state.Clone()
	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states = make(map[string]*cooldown.State)
}
