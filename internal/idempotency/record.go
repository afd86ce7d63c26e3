package idempotency

import (
	"errors"
	"regexp"
	"time"
)

// Status captures the lifecycle of an idempotency record.
type Status string

const (
	// StatusPending marks a key whose first execution is in flight.
	StatusPending Status = "pending"
	// StatusSuccess marks a key resolved with a cacheable success outcome.
	StatusSuccess Status = "success"
	// StatusError marks a key resolved with a stored error outcome.
	StatusError Status = "error"
)

// DefaultTTL is how long a resolved record remains replayable.
const DefaultTTL = 24 * time.Hour

// Record is the persisted mapping from an idempotency key to the outcome of
// the operation first associated with it. Once terminal, the outcome is
// immutable and is the canonical reply for every duplicate until expiry.
type Record struct {
	Key        string
	Status     Status
	StatusCode int
	Result     []byte
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the record is logically dead at the given instant.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Terminal reports whether the record carries a replayable outcome.
func (r Record) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusError
}

// Outcome is the terminal result stored against a key.
type Outcome struct {
	Status     Status
	StatusCode int
	Result     []byte
}

var (
	// ErrMissingKey is returned when a route that requires an idempotency key
	// receives none.
	ErrMissingKey = errors.New("idempotency key is required")

	// ErrMalformedKey is returned when the supplied key fails format validation.
	ErrMalformedKey = errors.New("idempotency key must be at least 20 characters of [A-Za-z0-9-]")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9-]{20,}$`)

// ValidateKey checks the client-supplied key against the required format:
// 20 or more characters, alphanumeric and hyphen only.
func ValidateKey(key string) error {
	if key == "" {
		return ErrMissingKey
	}
	if !keyPattern.MatchString(key) {
		return ErrMalformedKey
	}
	return nil
}
