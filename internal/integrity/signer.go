package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingSignature is returned when a payload that requires integrity
	// checking arrives without a signature.
	ErrMissingSignature = errors.New("order signature is missing")

	// ErrSignatureMismatch is returned when the supplied signature does not
	// match the server-computed one. The message deliberately does not say
	// which field differed.
	ErrSignatureMismatch = errors.New("order signature verification failed")
)

// Item is a signed line item. Unit price is intentionally not part of the
// signed payload; the quoted amounts below are what the server vouches for.
type Item struct {
	ProductID string
	Quantity  int
}

// Payload carries the financially meaningful fields of an order quote.
type Payload struct {
	Items    []Item
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
}

// Signer computes and checks HMAC-SHA256 signatures over order payloads.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer using the given server-side secret.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign canonicalizes the payload and returns a hex-encoded HMAC-SHA256 over it.
// The same logical payload always yields the same signature.
func (s *Signer) Sign(payload Payload) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonicalize(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the expected signature and compares it against the
// supplied one in constant time. It returns false on any mismatch, including
// length mismatch, and never panics.
func (s *Signer) Verify(payload Payload, signature string) bool {
	expected := s.Sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// AssertIntegrity rejects payloads whose signature is absent or invalid.
// A missing signature and a mismatched one produce distinct errors so clients
// can tell a dropped field from a stale quote, but callers must treat both
// as "reject the order".
func (s *Signer) AssertIntegrity(payload Payload, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	if !s.Verify(payload, signature) {
		return ErrSignatureMismatch
	}
	return nil
}

// canonicalize renders the payload as a deterministic string. Items keep their
// given order; amounts are rendered with exactly two decimal places so that
// 10.5 and 10.50 sign identically.
func canonicalize(payload Payload) string {
	var b strings.Builder
	for i, item := range payload.Items {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s:%d", item.ProductID, item.Quantity)
	}
	fmt.Fprintf(&b, "|%s|%s|%s",
		payload.Subtotal.StringFixed(2),
		payload.Shipping.StringFixed(2),
		payload.Tax.StringFixed(2),
	)
	return b.String()
}
