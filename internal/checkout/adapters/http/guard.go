package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bazarghor/checkout/internal/checkout/metrics"
	"github.com/bazarghor/checkout/internal/idempotency"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// headerReplay marks replayed responses so monitoring can tell them apart.
const headerReplay = "Idempotency-Replayed"

const (
	defaultWaitBudget   = 2 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// Guard deduplicates requests on payment/checkout routes by idempotency key.
// The wrapped operation runs at most once per live key; duplicates replay the
// stored outcome. Store failures are logged and the request proceeds
// unguarded rather than being blocked.
type Guard struct {
	store        idempotency.Store
	logger       *slog.Logger
	metrics      *metrics.Metrics
	waitBudget   time.Duration
	pollInterval time.Duration
}

// NewGuard constructs a Guard over the given store.
func NewGuard(store idempotency.Store, logger *slog.Logger, m *metrics.Metrics) *Guard {
	return &Guard{
		store:        store,
		logger:       logger,
		metrics:      m,
		waitBudget:   defaultWaitBudget,
		pollInterval: defaultPollInterval,
	}
}

// WithWait overrides the loser wait budget and poll interval, for tests.
func (g *Guard) WithWait(budget, poll time.Duration) *Guard {
	g.waitBudget = budget
	g.pollInterval = poll
	return g
}

// Wrap applies the guard to a handler. Routes not wrapped are untouched.
func (g *Guard) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		key := r.Header.Get(HeaderIdempotencyKey)
		if err := idempotency.ValidateKey(key); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}

		record, err := g.store.Get(ctx, key)
		if err != nil {
			g.logger.ErrorContext(ctx, "idempotency lookup failed, failing open", "key", key, "error", err)
			g.metrics.RecordStoreError(ctx, "get")
			next.ServeHTTP(w, r)
			return
		}

		if record != nil && record.Terminal() {
			g.metrics.RecordGuardDuration(ctx, time.Since(start).Seconds())
			g.replay(ctx, w, record, false)
			return
		}

		if record == nil {
			admitted, failedOpen := g.reserve(ctx, key)
			if failedOpen {
				next.ServeHTTP(w, r)
				return
			}
			if admitted {
				g.metrics.RecordGuardDuration(ctx, time.Since(start).Seconds())
				g.runRecorded(next, w, r, key)
				return
			}
		}

		// Another request holds the key. Wait for its outcome instead of
		// double-executing; if it releases the key (non-cacheable outcome),
		// take over the slot.
		g.awaitOutcome(next, w, r, key, start)
	})
}

// reserve claims the key. The second return value reports a store failure,
// which the caller answers by running the request unguarded.
func (g *Guard) reserve(ctx context.Context, key string) (admitted, failedOpen bool) {
	won, err := g.store.Reserve(ctx, key)
	if err != nil {
		g.logger.ErrorContext(ctx, "idempotency reserve failed, failing open", "key", key, "error", err)
		g.metrics.RecordStoreError(ctx, "reserve")
		return false, true
	}
	if won {
		g.metrics.RecordAdmission(ctx)
	}
	return won, false
}

func (g *Guard) awaitOutcome(next http.Handler, w http.ResponseWriter, r *http.Request, key string, start time.Time) {
	ctx := r.Context()
	deadline := time.NewTimer(g.waitBudget)
	defer deadline.Stop()
	tick := time.NewTicker(g.pollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			g.metrics.RecordGuardDuration(ctx, time.Since(start).Seconds())
			writeError(w, http.StatusConflict, codeConflict,
				"a request with this idempotency key is still in progress, retry shortly")
			return
		case <-tick.C:
			record, err := g.store.Get(ctx, key)
			if err != nil {
				g.logger.ErrorContext(ctx, "idempotency poll failed, failing open", "key", key, "error", err)
				g.metrics.RecordStoreError(ctx, "get")
				next.ServeHTTP(w, r)
				return
			}
			if record != nil && record.Terminal() {
				g.metrics.RecordGuardDuration(ctx, time.Since(start).Seconds())
				g.replay(ctx, w, record, true)
				return
			}
			if record == nil {
				admitted, failedOpen := g.reserve(ctx, key)
				if failedOpen {
					next.ServeHTTP(w, r)
					return
				}
				if admitted {
					g.metrics.RecordGuardDuration(ctx, time.Since(start).Seconds())
					g.runRecorded(next, w, r, key)
					return
				}
			}
		}
	}
}

// runRecorded executes the operation and stores a 2xx outcome synchronously
// before replying, so a duplicate arriving right after our response already
// finds the record. Non-2xx outcomes release the key: a failed attempt may be
// retried under the same key.
func (g *Guard) runRecorded(next http.Handler, w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()
	rec := newRecorder()
	next.ServeHTTP(rec, r)

	if rec.status >= 200 && rec.status < 300 {
		outcome := idempotency.Outcome{
			Status:     idempotency.StatusSuccess,
			StatusCode: rec.status,
			Result:     rec.body.Bytes(),
		}
		if err := g.store.Put(ctx, key, outcome); err != nil {
			g.logger.ErrorContext(ctx, "idempotency result not stored", "key", key, "error", err)
			g.metrics.RecordStoreError(ctx, "put")
		}
	} else {
		if err := g.store.Release(ctx, key); err != nil {
			g.logger.ErrorContext(ctx, "idempotency key not released", "key", key, "error", err)
			g.metrics.RecordStoreError(ctx, "release")
		}
	}

	rec.flush(w)
}

// replay answers a duplicate from the stored outcome, marking the body with
// cached:true and never re-invoking the operation.
func (g *Guard) replay(ctx context.Context, w http.ResponseWriter, record *idempotency.Record, waited bool) {
	g.metrics.RecordReplay(ctx, waited)
	g.logger.InfoContext(ctx, "idempotent replay", "key", record.Key, "status", record.StatusCode, "waited", waited)

	body := record.Result
	var parsed map[string]any
	if err := json.Unmarshal(record.Result, &parsed); err == nil {
		parsed["cached"] = true
		if remarshaled, err := json.Marshal(parsed); err == nil {
			body = remarshaled
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(headerReplay, "true")
	w.WriteHeader(record.StatusCode)
	_, _ = w.Write(body)
}

// recorder buffers the wrapped handler's response so the guard can persist
// it before anything reaches the client.
type recorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header), status: http.StatusOK}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) { r.status = status }

func (r *recorder) Write(p []byte) (int, error) { return r.body.Write(p) }

func (r *recorder) flush(w http.ResponseWriter) {
	for key, values := range r.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body.Bytes())
}
