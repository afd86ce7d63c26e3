package http

import (
	"errors"
	"net/http"
	"testing"
	"time"

	idemmemory "github.com/bazarghor/checkout/internal/idempotency/memory"
	"github.com/google/uuid"
)

func TestQuoteCartPricesAndSigns(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	rec := env.do(t, http.MethodPost, "/v1/checkout/quote", "", map[string]any{
		"items": []map[string]any{
			{"product_id": "SKU-1001", "name": "Panjabi", "unit_price": "1250.00", "quantity": 2},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	respEnv := decodeEnvelope(t, rec)
	quote, ok := respEnv.Data["quote"].(map[string]any)
	if !ok {
		t.Fatalf("quote missing: %v", respEnv.Data)
	}

	for field, want := range map[string]string{
		"subtotal": "2500",
		"shipping": "60",
		"tax":      "125",
		"total":    "2685",
	} {
		if got, _ := quote[field].(string); got != want {
			t.Errorf("expected %s %q, got %q", field, want, got)
		}
	}

	if sig, _ := quote["signature"].(string); sig == "" {
		t.Error("expected a signature on the quote")
	}
}

func TestQuoteCartRejectsEmptyCart(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	rec := env.do(t, http.MethodPost, "/v1/checkout/quote", "", map[string]any{"items": []map[string]any{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPlaceOrderFromQuote(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	rec := env.do(t, http.MethodPost, "/v1/orders", testKey(), env.quotedOrderPayload(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	respEnv := decodeEnvelope(t, rec)
	order, _ := respEnv.Data["order"].(map[string]any)
	if status, _ := order["status"].(string); status != "pending" {
		t.Errorf("expected pending order, got %q", status)
	}
	if total, _ := order["total"].(string); total != "2685" {
		t.Errorf("expected total 2685, got %q", total)
	}
}

func TestPlaceOrderRejectsTamperedAmounts(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	for field, value := range map[string]string{
		"subtotal": "1.00",
		"shipping": "0.00",
		"tax":      "124.99",
	} {
		payload := env.quotedOrderPayload(t)
		payload[field] = value

		rec := env.do(t, http.MethodPost, "/v1/orders", testKey(), payload)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("tampered %s: expected 400, got %d", field, rec.Code)
			continue
		}
		if respEnv := decodeEnvelope(t, rec); respEnv.Code != "INTEGRITY_FAILED" {
			t.Errorf("tampered %s: expected INTEGRITY_FAILED, got %q", field, respEnv.Code)
		}
	}

	if env.orders.Len() != 0 {
		t.Errorf("expected no orders from tampered submissions, got %d", env.orders.Len())
	}
}

func TestPlaceOrderRejectsMissingSignature(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	payload := env.quotedOrderPayload(t)
	delete(payload, "signature")

	rec := env.do(t, http.MethodPost, "/v1/orders", testKey(), payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if respEnv := decodeEnvelope(t, rec); respEnv.Code != "INTEGRITY_FAILED" {
		t.Errorf("expected INTEGRITY_FAILED, got %q", respEnv.Code)
	}
}

func TestPlaceOrderValidatesPayload(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	payload := env.quotedOrderPayload(t)
	payload["customer_email"] = "not-an-email"

	rec := env.do(t, http.MethodPost, "/v1/orders", testKey(), payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if respEnv := decodeEnvelope(t, rec); respEnv.Code != "BAD_REQUEST" {
		t.Errorf("expected BAD_REQUEST, got %q", respEnv.Code)
	}
}

func TestGetOrderWithPayments(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))
	orderID := env.createPayableOrder(t)

	if rec := env.do(t, http.MethodPost, "/v1/payments", testKey(), map[string]any{
		"order_id": orderID, "gateway": "bkash",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("initiate payment failed: %d %s", rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodGet, "/v1/orders/"+orderID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	respEnv := decodeEnvelope(t, rec)
	order, _ := respEnv.Data["order"].(map[string]any)
	if status, _ := order["status"].(string); status != "awaiting_payment" {
		t.Errorf("expected awaiting_payment, got %q", status)
	}
	paymentsList, _ := respEnv.Data["payments"].([]any)
	if len(paymentsList) != 1 {
		t.Errorf("expected 1 payment attempt, got %d", len(paymentsList))
	}
}

func TestGetOrderNotFound(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	rec := env.do(t, http.MethodGet, "/v1/orders/"+uuid.NewString(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if respEnv := decodeEnvelope(t, rec); respEnv.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %q", respEnv.Code)
	}
}

func TestInitiatePayment(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))
	orderID := env.createPayableOrder(t)

	rec := env.do(t, http.MethodPost, "/v1/payments", testKey(), map[string]any{
		"order_id": orderID, "gateway": "bkash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	respEnv := decodeEnvelope(t, rec)
	payment, _ := respEnv.Data["payment"].(map[string]any)
	if gw, _ := payment["gateway"].(string); gw != "bkash" {
		t.Errorf("expected gateway bkash, got %q", gw)
	}
	if ref, _ := payment["gateway_ref"].(string); len(ref) < 4 || ref[:4] != "BKA-" {
		t.Errorf("expected BKA- reference, got %q", ref)
	}
	if amount, _ := payment["amount"].(string); amount != "2685" {
		t.Errorf("expected amount 2685, got %q", amount)
	}
}

func TestInitiatePaymentUnknownOrder(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	rec := env.do(t, http.MethodPost, "/v1/payments", testKey(), map[string]any{
		"order_id": uuid.NewString(), "gateway": "bkash",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInitiatePaymentRejectsUnknownGateway(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))
	orderID := env.createPayableOrder(t)

	rec := env.do(t, http.MethodPost, "/v1/payments", testKey(), map[string]any{
		"order_id": orderID, "gateway": "visa",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestInitiatePaymentGatewayFailure(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))
	orderID := env.createPayableOrder(t)

	env.bkash.FailWith(errors.New("bkash is down for maintenance"))

	rec := env.do(t, http.MethodPost, "/v1/payments", testKey(), map[string]any{
		"order_id": orderID, "gateway": "bkash",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
	if respEnv := decodeEnvelope(t, rec); respEnv.Code != "GATEWAY_ERROR" {
		t.Errorf("expected GATEWAY_ERROR, got %q", respEnv.Code)
	}

	// The rejected attempt leaves no payment behind.
	attempts, err := env.payments.ListByOrder(t.Context(), orderID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(attempts) != 0 {
		t.Errorf("expected no payments after gateway failure, got %d", len(attempts))
	}
}
