package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics carries the checkout-side instruments: order/payment throughput and
// the idempotency guard's hit/miss/replay accounting.
type Metrics struct {
	ordersPlacedTotal      metric.Int64Counter
	paymentsInitiatedTotal metric.Int64Counter
	idempotencyHitsTotal   metric.Int64Counter
	idempotencyMissesTotal metric.Int64Counter
	idempotencyErrorsTotal metric.Int64Counter
	guardDecisionDuration  metric.Float64Histogram
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersPlacedTotal, err = meter.Int64Counter(
		"orders_placed_total",
		metric.WithDescription("Total number of orders placed"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_placed_total counter: %w", err)
	}

	m.paymentsInitiatedTotal, err = meter.Int64Counter(
		"payments_initiated_total",
		metric.WithDescription("Total number of payment initiations"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payments_initiated_total counter: %w", err)
	}

	m.idempotencyHitsTotal, err = meter.Int64Counter(
		"idempotency_hits_total",
		metric.WithDescription("Duplicate requests answered from the idempotency store"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create idempotency_hits_total counter: %w", err)
	}

	m.idempotencyMissesTotal, err = meter.Int64Counter(
		"idempotency_misses_total",
		metric.WithDescription("Requests admitted through the idempotency guard"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create idempotency_misses_total counter: %w", err)
	}

	m.idempotencyErrorsTotal, err = meter.Int64Counter(
		"idempotency_store_errors_total",
		metric.WithDescription("Idempotency store failures the guard failed open on"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create idempotency_store_errors_total counter: %w", err)
	}

	m.guardDecisionDuration, err = meter.Float64Histogram(
		"idempotency_guard_duration_seconds",
		metric.WithDescription("Time the guard spends deciding admit/replay"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create idempotency_guard_duration histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordOrderPlaced(ctx context.Context, success bool) {
	m.ordersPlacedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", statusLabel(success)),
	))
}

func (m *Metrics) RecordPaymentInitiated(ctx context.Context, gateway string, success bool) {
	m.paymentsInitiatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", gateway),
		attribute.String("status", statusLabel(success)),
	))
}

// RecordReplay counts a duplicate answered from the store. replayed
// distinguishes true cache hits from reserve-race losers that waited.
func (m *Metrics) RecordReplay(ctx context.Context, waited bool) {
	m.idempotencyHitsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("waited", waited),
	))
}

func (m *Metrics) RecordAdmission(ctx context.Context) {
	m.idempotencyMissesTotal.Add(ctx, 1)
}

func (m *Metrics) RecordStoreError(ctx context.Context, operation string) {
	m.idempotencyErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

func (m *Metrics) RecordGuardDuration(ctx context.Context, durationSeconds float64) {
	m.guardDecisionDuration.Record(ctx, durationSeconds)
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
