package integrity_test

import (
	"errors"
	"testing"

	"github.com/bazarghor/checkout/internal/integrity"
	"github.com/shopspring/decimal"
)

func testPayload() integrity.Payload {
	return integrity.Payload{
		Items: []integrity.Item{
			{ProductID: "prod-1", Quantity: 2},
			{ProductID: "prod-2", Quantity: 1},
		},
		Subtotal: decimal.NewFromFloat(150.00),
		Shipping: decimal.NewFromFloat(10.00),
		Tax:      decimal.NewFromFloat(7.50),
	}
}

func TestSignIsDeterministic(t *testing.T) {
	signer := integrity.NewSigner([]byte("test-secret-at-least-32-bytes-long"))

	first := signer.Sign(testPayload())
	second := signer.Sign(testPayload())

	if first != second {
		t.Fatalf("expected identical signatures, got %s and %s", first, second)
	}
}

func TestSignNormalizesAmountRendering(t *testing.T) {
	signer := integrity.NewSigner([]byte("test-secret-at-least-32-bytes-long"))

	a := testPayload()
	a.Subtotal = decimal.RequireFromString("150.0")
	b := testPayload()
	b.Subtotal = decimal.RequireFromString("150.00")

	if signer.Sign(a) != signer.Sign(b) {
		t.Fatal("expected 150.0 and 150.00 to sign identically")
	}
}

func TestSignChangesWithAnyField(t *testing.T) {
	signer := integrity.NewSigner([]byte("test-secret-at-least-32-bytes-long"))
	base := signer.Sign(testPayload())

	mutations := map[string]func(*integrity.Payload){
		"item quantity": func(p *integrity.Payload) { p.Items[0].Quantity = 3 },
		"item product":  func(p *integrity.Payload) { p.Items[1].ProductID = "prod-3" },
		"item dropped":  func(p *integrity.Payload) { p.Items = p.Items[:1] },
		"subtotal":      func(p *integrity.Payload) { p.Subtotal = p.Subtotal.Add(decimal.NewFromFloat(0.01)) },
		"shipping":      func(p *integrity.Payload) { p.Shipping = p.Shipping.Sub(decimal.NewFromFloat(0.01)) },
		"tax":           func(p *integrity.Payload) { p.Tax = decimal.Zero },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			payload := testPayload()
			mutate(&payload)
			if signer.Sign(payload) == base {
				t.Errorf("mutating %s did not change the signature", name)
			}
		})
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	signer := integrity.NewSigner([]byte("test-secret-at-least-32-bytes-long"))

	payload := testPayload()
	signature := signer.Sign(payload)

	if !signer.Verify(payload, signature) {
		t.Fatal("expected untouched payload to verify")
	}

	payload.Subtotal = payload.Subtotal.Add(decimal.NewFromFloat(0.01))
	if signer.Verify(payload, signature) {
		t.Fatal("expected tampered subtotal to fail verification")
	}
}

func TestVerifyRejectsLengthMismatch(t *testing.T) {
	signer := integrity.NewSigner([]byte("test-secret-at-least-32-bytes-long"))

	if signer.Verify(testPayload(), "deadbeef") {
		t.Fatal("expected truncated signature to fail verification")
	}
}

func TestVerifyRejectsDifferentSecret(t *testing.T) {
	signer := integrity.NewSigner([]byte("test-secret-at-least-32-bytes-long"))
	other := integrity.NewSigner([]byte("another-secret-at-least-32-bytes!!"))

	signature := other.Sign(testPayload())
	if signer.Verify(testPayload(), signature) {
		t.Fatal("expected signature from a different secret to fail")
	}
}

func TestAssertIntegrity(t *testing.T) {
	signer := integrity.NewSigner([]byte("test-secret-at-least-32-bytes-long"))
	payload := testPayload()
	signature := signer.Sign(payload)

	if err := signer.AssertIntegrity(payload, signature); err != nil {
		t.Fatalf("expected valid signature to pass, got: %v", err)
	}

	if err := signer.AssertIntegrity(payload, ""); !errors.Is(err, integrity.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got: %v", err)
	}

	tampered := payload
	tampered.Tax = tampered.Tax.Add(decimal.NewFromFloat(1))
	if err := signer.AssertIntegrity(tampered, signature); !errors.Is(err, integrity.ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got: %v", err)
	}
}
