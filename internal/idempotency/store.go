package idempotency

import "context"

// Store is the durable key→outcome mapping behind the request guard.
// Implementations must be safe for concurrent use; the uniqueness constraint
// on the key is the sole serialization point between racing duplicates.
type Store interface {
	// Reserve claims the key for the calling request by inserting a pending
	// record. It returns true when this caller won the slot, false when a
	// live record (pending or terminal) already exists. A record past its
	// expiry does not block a new reservation.
	Reserve(ctx context.Context, key string) (bool, error)

	// Put resolves a pending record to its terminal outcome. The first
	// terminal write wins; later writes are no-ops.
	Put(ctx context.Context, key string, outcome Outcome) error

	// Release discards a pending record so the key can be retried. Terminal
	// records are left untouched.
	Release(ctx context.Context, key string) error

	// Get returns the live record for the key, or nil when none exists or
	// the found record has expired.
	Get(ctx context.Context, key string) (*Record, error)

	// Sweep deletes all records past their expiry and returns how many were
	// removed. It must tolerate concurrent Reserve/Put/Get calls.
	Sweep(ctx context.Context) (int64, error)
}

// Cache is a fast read-through/write-through accelerator in front of the
// durable store. It only ever holds terminal records; the durable store
// remains the source of truth.
type Cache interface {
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record Record) error
	Delete(ctx context.Context, key string) error
}
