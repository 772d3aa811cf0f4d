package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/veritid/identity-guard/pkg/data/ratelimit"
)

type store struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// New returns an in memory ratelimit.Store.
func New() ratelimit.Store {
	return &store{
		counters: make(map[string]uint64),
	}
}

// CheckAndIncrement implements ratelimit.Store.CheckAndIncrement
func (s *store) CheckAndIncrement(ctx context.Context, dimension ratelimit.Dimension, key string, now time.Time, window time.Duration, limit uint64) (uint64, bool, error) {
	if limit == 0 || window < time.Second {
		return 0, false, ratelimit.ErrInvalidLimit
	}

	counterKey := fmt.Sprintf("%s:%s:%d", dimension.String(), key, ratelimit.WindowBucket(now, window))

	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.counters[counterKey]
	if count >= limit {
		return count, false, nil
	}

	count++
	s.counters[counterKey] = count
	return count, true, nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters = make(map[string]uint64)
}
