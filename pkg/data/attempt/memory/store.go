package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/veritid/identity-guard/pkg/data/attempt"
	"github.com/veritid/identity-guard/pkg/database/query"
)

type store struct {
	mu sync.RWMutex

	records              []*attempt.Record
	recordsByFingerprint map[string][]*attempt.Record
	last                 uint64
}

type ByLedgerId []*attempt.Record

func (a ByLedgerId) Len() int           { return len(a) }
func (a ByLedgerId) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByLedgerId) Less(i, j int) bool { return a[i].LedgerId < a[j].LedgerId }

// New returns an in memory attempt.Store.
func New() attempt.Store {
	return &store{
		recordsByFingerprint: make(map[string][]*attempt.Record),
	}
}

// Put implements attempt.Store.Put
func (s *store) Put(ctx context.Context, record *attempt.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++

	copied := record.Clone()
	copied.LedgerId = s.last
	s.records = append(s.records, copied)
	s.recordsByFingerprint[copied.DeviceFingerprint] = append(s.recordsByFingerprint[copied.DeviceFingerprint], copied)

	record.LedgerId = copied.LedgerId

	return nil
}

// CountForFingerprintSinceTimestamp implements attempt.Store.CountForFingerprintSinceTimestamp
func (s *store) CountForFingerprintSinceTimestamp(ctx context.Context, fingerprint string, since time.Time) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count uint64
	for _, record := range s.recordsByFingerprint[fingerprint] {
		if !record.CreatedAt.Before(since) {
			count++
		}
	}

	return count, nil
}

// GetAllByIdentifier implements attempt.Store.GetAllByIdentifier
func (s *store) GetAllByIdentifier(ctx context.Context, identifierHash string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*attempt.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.findByIdentifier(identifierHash)
	res := s.filter(matched, cursor, limit, direction)
	if len(res) == 0 {
		return nil, attempt.ErrNotFound
	}

	cloned := make([]*attempt.Record, len(res))
	for i, record := range res {
		cloned[i] = record.Clone()
	}
	return cloned, nil
}

func (s *store) findByIdentifier(identifierHash string) []*attempt.Record {
	res := make([]*attempt.Record, 0)
	for _, item := range s.records {
		if item.IdentifierHash == identifierHash {
			res = append(res, item)
		}
	}
	return res
}

func (s *store) filter(items []*attempt.Record, cursor query.Cursor, limit uint64, direction query.Ordering) []*attempt.Record {
	var start uint64

	start = 0
	if direction == query.Descending {
		start = s.last + 1
	}
	if len(cursor) > 0 {
		start = cursor.ToUint64()
	}

	var res []*attempt.Record
	for _, item := range items {
		if item.LedgerId > start && direction == query.Ascending {
			res = append(res, item)
		}
		if item.LedgerId < start && direction == query.Descending {
			res = append(res, item)
		}
	}

	if direction == query.Descending {
		sort.Sort(sort.Reverse(ByLedgerId(res)))
	}

	if len(res) >= int(limit) {
		return res[:limit]
	}

	return res
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.recordsByFingerprint = make(map[string][]*attempt.Record)
	s.last = 0
}
