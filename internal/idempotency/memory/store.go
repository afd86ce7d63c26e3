package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bazarghor/checkout/internal/idempotency"
)

// Store is an in-memory idempotency store with the same first-writer-wins
// semantics as the postgres backend. Suitable for local development and tests.
type Store struct {
	mu      sync.Mutex
	records map[string]idempotency.Record
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewStore creates an in-memory store. A non-positive ttl falls back to
// idempotency.DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &Store{
		records: make(map[string]idempotency.Record),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// WithNowFunc overrides the clock, for tests.
func (s *Store) WithNowFunc(now func() time.Time) *Store {
	s.nowFunc = now
	return s
}

// Reserve claims the key unless a live record already holds it. An expired
// record does not block a new reservation.
func (s *Store) Reserve(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if existing, ok := s.records[key]; ok && !existing.Expired(now) {
		return false, nil
	}

	s.records[key] = idempotency.Record{
		Key:       key,
		Status:    idempotency.StatusPending,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	return true, nil
}

// Put resolves a pending record to its terminal outcome. Later writes against
// an already-terminal record are no-ops.
func (s *Store) Put(_ context.Context, key string, outcome idempotency.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok || record.Status != idempotency.StatusPending {
		return nil
	}

	record.Status = outcome.Status
	record.StatusCode = outcome.StatusCode
	record.Result = append([]byte(nil), outcome.Result...)
	s.records[key] = record
	return nil
}

// Release discards a pending record; terminal records are left untouched.
func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[key]; ok && record.Status == idempotency.StatusPending {
		delete(s.records, key)
	}
	return nil
}

// Get returns the live record for the key, or nil when absent or expired.
func (s *Store) Get(_ context.Context, key string) (*idempotency.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok || record.Expired(s.nowFunc()) {
		return nil, nil
	}
	copy := record
	return &copy, nil
}

// Sweep removes expired records.
func (s *Store) Sweep(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	var removed int64
	for key, record := range s.records {
		if record.Expired(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}
