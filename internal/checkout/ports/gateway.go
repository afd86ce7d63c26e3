package ports

import (
	"context"
	"errors"

	"github.com/bazarghor/checkout/internal/checkout/domain"
)

// PaymentGateway initiates a charge against an external payment channel.
// Implementations must be safe for concurrent use.
type PaymentGateway interface {
	// Name reports which channel the gateway settles through.
	Name() domain.Gateway

	// Initiate submits the payment to the channel and returns the gateway's
	// reference for the charge.
	Initiate(ctx context.Context, payment domain.Payment) (string, error)
}

// ErrGatewayNotConfigured is returned when no gateway is registered for the
// requested channel.
var ErrGatewayNotConfigured = errors.New("payment gateway not configured")
