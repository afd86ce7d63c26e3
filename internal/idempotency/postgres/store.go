package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bazarghor/checkout/internal/idempotency"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists idempotency records in the idempotency_keys table. The
// unique constraint on key is the serialization point between racing
// duplicates: exactly one Reserve wins.
type Store struct {
	pool    *pgxpool.Pool
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewStore returns a store over the given pool. A non-positive ttl falls back
// to idempotency.DefaultTTL.
func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &Store{pool: pool, ttl: ttl, nowFunc: time.Now}
}

// WithNowFunc overrides the clock, for tests.
func (s *Store) WithNowFunc(now func() time.Time) *Store {
	s.nowFunc = now
	return s
}

// Reserve claims the key by inserting a pending record. When the key is held
// by an expired record the row is recycled, otherwise a conflicting insert is
// a no-op and the caller lost the race.
func (s *Store) Reserve(ctx context.Context, key string) (bool, error) {
	now := s.nowFunc()
	query := `
		INSERT INTO idempotency_keys (key, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET status = EXCLUDED.status,
		    status_code = NULL,
		    result = NULL,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
		WHERE idempotency_keys.expires_at <= EXCLUDED.created_at
	`

	tag, err := s.pool.Exec(ctx, query, key, idempotency.StatusPending, now.Add(s.ttl), now)
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Put resolves a pending record to its terminal outcome. The status guard
// makes the first terminal write win; anything after is a no-op.
func (s *Store) Put(ctx context.Context, key string, outcome idempotency.Outcome) error {
	query := `
		UPDATE idempotency_keys
		SET status = $2, status_code = $3, result = $4
		WHERE key = $1 AND status = $5
	`

	_, err := s.pool.Exec(ctx, query, key, outcome.Status, outcome.StatusCode, outcome.Result, idempotency.StatusPending)
	if err != nil {
		return fmt.Errorf("resolve idempotency key: %w", err)
	}
	return nil
}

// Release deletes a pending record so the key can be retried.
func (s *Store) Release(ctx context.Context, key string) error {
	query := `DELETE FROM idempotency_keys WHERE key = $1 AND status = $2`

	_, err := s.pool.Exec(ctx, query, key, idempotency.StatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Get returns the live record for the key. Expired rows are invisible here;
// the sweeper deletes them later.
func (s *Store) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	query := `
		SELECT key, status, COALESCE(status_code, 0), result, expires_at, created_at
		FROM idempotency_keys
		WHERE key = $1 AND expires_at > $2
	`

	var record idempotency.Record
	err := s.pool.QueryRow(ctx, query, key, s.nowFunc()).Scan(
		&record.Key,
		&record.Status,
		&record.StatusCode,
		&record.Result,
		&record.ExpiresAt,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select idempotency key: %w", err)
	}
	return &record, nil
}

// Sweep deletes all records past their expiry.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	query := `DELETE FROM idempotency_keys WHERE expires_at <= $1`

	tag, err := s.pool.Exec(ctx, query, s.nowFunc())
	if err != nil {
		return 0, fmt.Errorf("sweep idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
