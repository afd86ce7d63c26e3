package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	memadapter "github.com/bazarghor/checkout/internal/checkout/adapters/memory"
	"github.com/bazarghor/checkout/internal/checkout/app"
	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/bazarghor/checkout/internal/checkout/metrics"
	"github.com/bazarghor/checkout/internal/events"
	"github.com/bazarghor/checkout/internal/idempotency"
	idemmemory "github.com/bazarghor/checkout/internal/idempotency/memory"
	"github.com/bazarghor/checkout/internal/integrity"
	"github.com/bazarghor/checkout/internal/payments"
	"github.com/bazarghor/checkout/internal/payments/sandbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

type testEnv struct {
	mux      *http.ServeMux
	orders   *memadapter.OrderRepository
	payments *memadapter.PaymentRepository
	bkash    *sandbox.Gateway
}

func newTestEnv(t *testing.T, store idempotency.Store) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	m, err := metrics.New(otel.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	orders := memadapter.NewOrderRepository()
	paymentsRepo := memadapter.NewPaymentRepository()
	bkash := sandbox.NewGateway(domain.GatewayBkash)

	registry, err := payments.NewRegistry(
		bkash,
		sandbox.NewGateway(domain.GatewayNagad),
		sandbox.NewGateway(domain.GatewayRocket),
		sandbox.NewGateway(domain.GatewayCOD),
	)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	service := app.NewService(
		orders,
		paymentsRepo,
		registry,
		events.NewNoopBus(),
		integrity.NewSigner([]byte("a-unit-test-signing-secret-of-decent-size")),
		app.Pricing{
			ShippingFlat: decimal.RequireFromString("60"),
			TaxRate:      decimal.RequireFromString("0.05"),
		},
		logger,
		m,
	)

	guard := NewGuard(store, logger, m).WithWait(time.Second, 2*time.Millisecond)

	mux := http.NewServeMux()
	NewHandler(service).Register(mux, guard)

	return &testEnv{
		mux:      mux,
		orders:   orders,
		payments: paymentsRepo,
		bkash:    bkash,
	}
}

func (e *testEnv) do(t *testing.T, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Cached  bool           `json:"cached"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func testKey() string {
	return fmt.Sprintf("test-key-%s", uuid.NewString())
}

// quotedOrderPayload runs a cart through the quote endpoint and returns a
// submission payload carrying the server's signature.
func (e *testEnv) quotedOrderPayload(t *testing.T) map[string]any {
	t.Helper()

	items := []map[string]any{
		{"product_id": "SKU-1001", "name": "Panjabi", "unit_price": "1250.00", "quantity": 2},
	}

	rec := e.do(t, http.MethodPost, "/v1/checkout/quote", "", map[string]any{"items": items})
	if rec.Code != http.StatusOK {
		t.Fatalf("quote failed with status %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	quote, ok := env.Data["quote"].(map[string]any)
	if !ok {
		t.Fatalf("quote missing from response: %v", env.Data)
	}

	return map[string]any{
		"customer_email": "customer@example.com",
		"items":          items,
		"subtotal":       quote["subtotal"],
		"shipping":       quote["shipping"],
		"tax":            quote["tax"],
		"signature":      quote["signature"],
	}
}

func orderIDFrom(t *testing.T, env testEnvelope) string {
	t.Helper()
	order, ok := env.Data["order"].(map[string]any)
	if !ok {
		t.Fatalf("order missing from response: %v", env.Data)
	}
	id, _ := order["id"].(string)
	if id == "" {
		t.Fatalf("order id missing: %v", order)
	}
	return id
}

func (e *testEnv) createPayableOrder(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/orders", testKey(), e.quotedOrderPayload(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("place order failed with status %d: %s", rec.Code, rec.Body.String())
	}
	return orderIDFrom(t, decodeEnvelope(t, rec))
}

func TestGuardRejectsMissingKey(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	rec := env.do(t, http.MethodPost, "/v1/orders", "", env.quotedOrderPayload(t))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.orders.Len() != 0 {
		t.Errorf("expected no orders, got %d", env.orders.Len())
	}
}

func TestGuardRejectsMalformedKey(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	for _, key := range []string{"short", "has spaces in the middle!!", "under_scores_are_not_ok_here"} {
		rec := env.do(t, http.MethodPost, "/v1/orders", key, env.quotedOrderPayload(t))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("key %q: expected 400, got %d", key, rec.Code)
		}
	}
	if env.orders.Len() != 0 {
		t.Errorf("expected no orders, got %d", env.orders.Len())
	}
}

func TestGuardReplaysStoredOutcome(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	payload := env.quotedOrderPayload(t)
	key := testKey()

	first := env.do(t, http.MethodPost, "/v1/orders", key, payload)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	if first.Header().Get("Idempotency-Replayed") != "" {
		t.Error("first response must not be marked as replayed")
	}

	second := env.do(t, http.MethodPost, "/v1/orders", key, payload)
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d: %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Error("expected Idempotency-Replayed header on duplicate")
	}

	firstEnv := decodeEnvelope(t, first)
	secondEnv := decodeEnvelope(t, second)
	if firstEnv.Cached {
		t.Error("first response must not carry cached marker")
	}
	if !secondEnv.Cached {
		t.Error("replayed response must carry cached marker")
	}
	if orderIDFrom(t, firstEnv) != orderIDFrom(t, secondEnv) {
		t.Error("replay returned a different order")
	}

	if env.orders.Len() != 1 {
		t.Errorf("expected exactly one order, got %d", env.orders.Len())
	}
}

func TestGuardConcurrentDuplicatesChargeOnce(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))
	orderID := env.createPayableOrder(t)

	const n = 16
	key := testKey()
	payload := map[string]any{"order_id": orderID, "gateway": "bkash"}

	var wg sync.WaitGroup
	results := make([]*httptest.ResponseRecorder, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = env.do(t, http.MethodPost, "/v1/payments", key, payload)
		}(i)
	}
	wg.Wait()

	if charges := env.bkash.Charges(); len(charges) != 1 {
		t.Fatalf("expected exactly 1 charge, got %d", len(charges))
	}

	var paymentID string
	for i, rec := range results {
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d: %s", i, rec.Code, rec.Body.String())
		}
		respEnv := decodeEnvelope(t, rec)
		payment, ok := respEnv.Data["payment"].(map[string]any)
		if !ok {
			t.Fatalf("request %d: payment missing: %v", i, respEnv.Data)
		}
		id, _ := payment["id"].(string)
		if paymentID == "" {
			paymentID = id
		} else if id != paymentID {
			t.Errorf("request %d: payment id %q differs from %q", i, id, paymentID)
		}
	}
}

func TestGuardReleasesKeyAfterFailure(t *testing.T) {
	env := newTestEnv(t, idemmemory.NewStore(time.Hour))

	payload := env.quotedOrderPayload(t)
	key := testKey()

	tampered := map[string]any{}
	for k, v := range payload {
		tampered[k] = v
	}
	tampered["subtotal"] = "1.00"

	rec := env.do(t, http.MethodPost, "/v1/orders", key, tampered)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tampered payload, got %d", rec.Code)
	}

	// The failed attempt must not poison the key: a corrected retry under the
	// same key executes for real.
	retry := env.do(t, http.MethodPost, "/v1/orders", key, payload)
	if retry.Code != http.StatusCreated {
		t.Fatalf("expected 201 on retry, got %d: %s", retry.Code, retry.Body.String())
	}
	if retry.Header().Get("Idempotency-Replayed") != "" {
		t.Error("retry after failure must not be a replay")
	}
}

func TestGuardExpiredKeyReexecutes(t *testing.T) {
	var mu sync.Mutex
	current := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	store := idemmemory.NewStore(time.Minute).WithNowFunc(clock)
	env := newTestEnv(t, store)

	payload := env.quotedOrderPayload(t)
	key := testKey()

	if rec := env.do(t, http.MethodPost, "/v1/orders", key, payload); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	mu.Lock()
	current = current.Add(2 * time.Minute)
	mu.Unlock()

	rec := env.do(t, http.MethodPost, "/v1/orders", key, payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 after expiry, got %d", rec.Code)
	}
	if rec.Header().Get("Idempotency-Replayed") != "" {
		t.Error("expired key must not replay")
	}
	if env.orders.Len() != 2 {
		t.Errorf("expected 2 orders after expiry re-execution, got %d", env.orders.Len())
	}
}

// erroringStore simulates a dead backing store.
type erroringStore struct{}

var errStoreDown = errors.New("store down")

func (erroringStore) Reserve(context.Context, string) (bool, error) { return false, errStoreDown }
func (erroringStore) Put(context.Context, string, idempotency.Outcome) error {
	return errStoreDown
}
func (erroringStore) Release(context.Context, string) error { return errStoreDown }
func (erroringStore) Get(context.Context, string) (*idempotency.Record, error) {
	return nil, errStoreDown
}
func (erroringStore) Sweep(context.Context) (int64, error) { return 0, errStoreDown }

func TestGuardFailsOpenOnStoreErrors(t *testing.T) {
	env := newTestEnv(t, erroringStore{})

	payload := env.quotedOrderPayload(t)
	key := testKey()

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/v1/orders", key, payload)
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d: %s", i, rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Idempotency-Replayed") != "" {
			t.Errorf("request %d: fail-open request must not replay", i)
		}
	}

	// Deduplication is lost while the store is down; availability wins.
	if env.orders.Len() != 2 {
		t.Errorf("expected 2 orders with a dead store, got %d", env.orders.Len())
	}
}
