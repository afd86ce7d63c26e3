package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPaid            OrderStatus = "paid"
	OrderFailed          OrderStatus = "failed"
	OrderCanceled        OrderStatus = "canceled"
)

// LineItem is one purchased product within an order.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Order is a customer purchase captured at checkout. Amounts are the ones
// quoted (and signed) by the server, not whatever the client claims.
type Order struct {
	ID            string          `json:"id"`
	CustomerEmail string          `json:"customer_email"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Shipping      decimal.Decimal `json:"shipping"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if strings.TrimSpace(o.CustomerEmail) == "" {
		return errors.New("customer_email is required")
	}
	if !strings.Contains(o.CustomerEmail, "@") {
		return errors.New("customer_email must be valid")
	}
	if len(o.Items) == 0 {
		return errors.New("order must contain at least one item")
	}
	for i, item := range o.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("item %d: product_id is required", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("item %d: unit_price must not be negative", i)
		}
	}
	if o.Subtotal.IsNegative() || o.Shipping.IsNegative() || o.Tax.IsNegative() {
		return errors.New("amounts must not be negative")
	}
	if !o.Total.Equal(o.Subtotal.Add(o.Shipping).Add(o.Tax)) {
		return errors.New("total must equal subtotal + shipping + tax")
	}
	return nil
}

// IsTerminal indicates whether the order is in a terminal state.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case OrderPaid, OrderFailed, OrderCanceled:
		return true
	default:
		return false
	}
}

// Payable reports whether a payment may be initiated against the order.
func (o Order) Payable() bool {
	return o.Status == OrderPending || o.Status == OrderAwaitingPayment
}
