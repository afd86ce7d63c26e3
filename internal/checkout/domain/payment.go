package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway identifies a supported payment channel.
type Gateway string

const (
	GatewayBkash  Gateway = "bkash"
	GatewayNagad  Gateway = "nagad"
	GatewayRocket Gateway = "rocket"
	GatewayCOD    Gateway = "cod"
)

// ParseGateway maps a client-supplied gateway name to a known Gateway.
func ParseGateway(name string) (Gateway, error) {
	switch Gateway(strings.ToLower(strings.TrimSpace(name))) {
	case GatewayBkash:
		return GatewayBkash, nil
	case GatewayNagad:
		return GatewayNagad, nil
	case GatewayRocket:
		return GatewayRocket, nil
	case GatewayCOD:
		return GatewayCOD, nil
	default:
		return "", fmt.Errorf("unsupported payment gateway %q", name)
	}
}

// PaymentStatus captures the lifecycle of a payment attempt.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is one attempt to settle an order through a gateway.
type Payment struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	Gateway    Gateway         `json:"gateway"`
	Amount     decimal.Decimal `json:"amount"`
	Status     PaymentStatus   `json:"status"`
	GatewayRef string          `json:"gateway_ref,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Validate ensures the payment adheres to business constraints.
func (p Payment) Validate() error {
	if strings.TrimSpace(p.OrderID) == "" {
		return fmt.Errorf("order_id is required")
	}
	if _, err := ParseGateway(string(p.Gateway)); err != nil {
		return err
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}
