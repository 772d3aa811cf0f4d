package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/veritid/identity-guard/pkg/data/denylist"
)

type store struct {
	mu      sync.RWMutex
	entries map[string]*denylist.Entry
}

// New returns a new in memory denylist.Store seeded with the default
// throwaway domain set.
func New() denylist.Store {
	s := &store{
		entries: make(map[string]*denylist.Entry),
	}
	for _, domain := range denylist.DefaultDomains {
		s.entries[domain] = &denylist.Entry{
			Domain:    domain,
			Reason:    "seed",
			CreatedAt: time.Now(),
		}
	}
	return s
}

// NewEmpty returns a new in memory denylist.Store without seed entries.
func NewEmpty() denylist.Store {
	return &store{
		entries: make(map[string]*denylist.Entry),
	}
}

// IsDisposableDomain implements denylist.Store.IsDisposableDomain
func (s *store) IsDisposableDomain(_ context.Context, domain string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[strings.ToLower(domain)]
	return ok, nil
}

// Put implements denylist.Store.Put
func (s *store) Put(_ context.Context, entry *denylist.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.Domain]; ok {
		return denylist.ErrEntryExists
	}

	s.entries[entry.Domain] = entry.Clone()
	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*denylist.Entry)
}
