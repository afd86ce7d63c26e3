package memory

import (
	"context"
	"sync"

	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/bazarghor/checkout/internal/checkout/ports"
)

// OrderRepository provides an in-memory store useful for local development and tests.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewOrderRepository constructs a new in-memory order repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]domain.Order)}
}

// Create stores a new order instance.
func (r *OrderRepository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

// GetByID fetches a single order by identifier.
func (r *OrderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrOrderNotFound
	}
	copy := order
	return &copy, nil
}

// UpdateStatus transitions an order to a new status.
func (r *OrderRepository) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return ports.ErrOrderNotFound
	}
	order.Status = status
	r.orders[id] = order
	return nil
}

// Len reports how many orders are stored, for tests.
func (r *OrderRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// PaymentRepository is the in-memory counterpart for payment attempts.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]domain.Payment
}

// NewPaymentRepository constructs a new in-memory payment repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{payments: make(map[string]domain.Payment)}
}

// Create stores a new payment attempt.
func (r *PaymentRepository) Create(_ context.Context, payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[payment.ID] = payment
	return nil
}

// GetByID fetches a single payment by identifier.
func (r *PaymentRepository) GetByID(_ context.Context, id string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	payment, ok := r.payments[id]
	if !ok {
		return nil, ports.ErrPaymentNotFound
	}
	copy := payment
	return &copy, nil
}

// ListByOrder returns every payment attempt recorded against an order.
func (r *PaymentRepository) ListByOrder(_ context.Context, orderID string) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Payment
	for _, payment := range r.payments {
		if payment.OrderID == orderID {
			result = append(result, payment)
		}
	}
	return result, nil
}
