package events

import (
	"context"
	"log/slog"

	"github.com/bazarghor/checkout/internal/checkout/domain"
)

// NoopBus logs checkout events without delivering them anywhere. Useful for
// local dev before a real broker is wired.
type NoopBus struct{}

// NewNoopBus returns a new no-op event publisher.
func NewNoopBus() *NoopBus {
	return &NoopBus{}
}

func (n *NoopBus) PublishOrderPlaced(_ context.Context, orderID string) error {
	slog.Debug("event::order_placed", "order_id", orderID)
	return nil
}

func (n *NoopBus) PublishPaymentInitiated(_ context.Context, paymentID string, gateway domain.Gateway) error {
	slog.Debug("event::payment_initiated", "payment_id", paymentID, "gateway", gateway)
	return nil
}

func (n *NoopBus) PublishPaymentFailed(_ context.Context, paymentID string, reason string) error {
	slog.Debug("event::payment_failed", "payment_id", paymentID, "reason", reason)
	return nil
}
