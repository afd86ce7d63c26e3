package idempotency_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bazarghor/checkout/internal/idempotency"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid alphanumeric", "a1b2c3d4e5f6g7h8i9j0", nil},
		{"valid with hyphens", "order-2026-0001-retry-01", nil},
		{"valid uuid style", "550e8400-e29b-41d4-a716-446655440000", nil},
		{"empty", "", idempotency.ErrMissingKey},
		{"too short", "short-key-123", idempotency.ErrMalformedKey},
		{"nineteen chars", strings.Repeat("a", 19), idempotency.ErrMalformedKey},
		{"twenty chars", strings.Repeat("a", 20), nil},
		{"underscore", "abcdefghij_klmnopqrst", idempotency.ErrMalformedKey},
		{"whitespace", "abcdefghij klmnopqrst", idempotency.ErrMalformedKey},
		{"unicode", "abcdefghijklmnopqrsé", idempotency.ErrMalformedKey},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := idempotency.ValidateKey(tc.key)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateKey(%q) = %v, want %v", tc.key, err, tc.wantErr)
			}
		})
	}
}

func TestRecordExpired(t *testing.T) {
	now := time.Now()
	record := idempotency.Record{ExpiresAt: now.Add(time.Hour)}

	if record.Expired(now) {
		t.Error("expected record with future expiry to be live")
	}
	if !record.Expired(now.Add(time.Hour)) {
		t.Error("expected record to be dead exactly at expiry")
	}
	if !record.Expired(now.Add(2 * time.Hour)) {
		t.Error("expected record with past expiry to be dead")
	}
}

func TestRecordTerminal(t *testing.T) {
	if (idempotency.Record{Status: idempotency.StatusPending}).Terminal() {
		t.Error("pending record must not be terminal")
	}
	if !(idempotency.Record{Status: idempotency.StatusSuccess}).Terminal() {
		t.Error("success record must be terminal")
	}
	if !(idempotency.Record{Status: idempotency.StatusError}).Terminal() {
		t.Error("error record must be terminal")
	}
}
