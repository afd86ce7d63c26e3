package queries

import (
	"context"
	"errors"
	"strings"

	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/bazarghor/checkout/internal/checkout/ports"
)

// GetOrderQuery represents a request to retrieve an order by its ID.
type GetOrderQuery struct {
	OrderID string
}

// Validate ensures the query has valid parameters.
func (q GetOrderQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return errors.New("order_id is required")
	}
	return nil
}

// GetOrderQueryHandler executes GetOrderQuery and returns the order if found.
type GetOrderQueryHandler struct {
	orders   ports.OrderRepository
	payments ports.PaymentRepository
}

// NewGetOrderQueryHandler constructs a GetOrderQueryHandler.
func NewGetOrderQueryHandler(orders ports.OrderRepository, payments ports.PaymentRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{orders: orders, payments: payments}
}

// OrderDetails is an order together with its payment attempts.
type OrderDetails struct {
	Order    domain.Order     `json:"order"`
	Payments []domain.Payment `json:"payments,omitempty"`
}

// Handle executes the query and retrieves the order with its payments.
func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*OrderDetails, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order, err := h.orders.GetByID(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}

	attempts, err := h.payments.ListByOrder(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}

	return &OrderDetails{Order: *order, Payments: attempts}, nil
}
