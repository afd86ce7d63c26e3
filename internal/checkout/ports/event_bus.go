package ports

import (
	"context"

	"github.com/bazarghor/checkout/internal/checkout/domain"
)

// EventBus defines the contract for publishing checkout lifecycle events.
type EventBus interface {
	PublishOrderPlaced(ctx context.Context, orderID string) error
	PublishPaymentInitiated(ctx context.Context, paymentID string, gateway domain.Gateway) error
	PublishPaymentFailed(ctx context.Context, paymentID string, reason string) error
}
