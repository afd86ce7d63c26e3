package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// LayeredStore puts a fast cache in front of a durable store. Reads consult
// the cache first and fall back to the durable store; terminal writes land in
// the durable store before the cache, so a cache hit never reports a result
// the durable store does not also have.
type LayeredStore struct {
	durable Store
	cache   Cache
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewLayeredStore wires a cache in front of a durable store.
func NewLayeredStore(durable Store, cache Cache, logger *slog.Logger) *LayeredStore {
	return &LayeredStore{
		durable: durable,
		cache:   cache,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Reserve claims the key in the durable store. Pending records are never
// cached, so the cache is not consulted here.
func (s *LayeredStore) Reserve(ctx context.Context, key string) (bool, error) {
	return s.durable.Reserve(ctx, key)
}

// Put resolves the record durably, then populates the cache. A cache write
// failure only costs a future round-trip, so it is logged and dropped.
func (s *LayeredStore) Put(ctx context.Context, key string, outcome Outcome) error {
	if err := s.durable.Put(ctx, key, outcome); err != nil {
		return err
	}

	record, err := s.durable.Get(ctx, key)
	if err != nil || record == nil {
		return nil
	}
	if err := s.cache.Set(ctx, key, *record); err != nil {
		s.logger.Warn("idempotency cache set failed", "key", key, "error", err)
	}
	return nil
}

// Release discards the pending record and evicts any stale cache entry.
func (s *LayeredStore) Release(ctx context.Context, key string) error {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("idempotency cache delete failed", "key", key, "error", err)
	}
	return s.durable.Release(ctx, key)
}

// Get serves from the cache when it holds a live terminal record, otherwise
// falls back to the durable store and backfills the cache on a hit. Cache
// errors degrade to a durable lookup, never to a request failure.
func (s *LayeredStore) Get(ctx context.Context, key string) (*Record, error) {
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("idempotency cache get failed", "key", key, "error", err)
	} else if cached != nil && cached.Terminal() && !cached.Expired(s.nowFunc()) {
		return cached, nil
	}

	record, err := s.durable.Get(ctx, key)
	if err != nil || record == nil {
		return record, err
	}

	if record.Terminal() {
		if err := s.cache.Set(ctx, key, *record); err != nil {
			s.logger.Warn("idempotency cache backfill failed", "key", key, "error", err)
		}
	}
	return record, nil
}

// Sweep delegates to the durable store. Cache entries carry their own expiry
// and lapse on read.
func (s *LayeredStore) Sweep(ctx context.Context) (int64, error) {
	return s.durable.Sweep(ctx)
}
