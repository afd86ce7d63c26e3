package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/bazarghor/checkout/internal/checkout/ports"
	"github.com/bazarghor/checkout/internal/payments"
	"github.com/google/uuid"
)

// InitiatePaymentCommand starts a payment against an existing order.
type InitiatePaymentCommand struct {
	OrderID string
	Gateway string
}

func (c InitiatePaymentCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return errors.New("order_id is required")
	}
	if _, err := domain.ParseGateway(c.Gateway); err != nil {
		return err
	}
	return nil
}

// ErrOrderNotPayable is returned when the order's state does not admit a payment.
var ErrOrderNotPayable = errors.New("order is not payable in its current state")

// ErrGatewayUnavailable is returned when the payment channel rejects or fails
// the initiation call.
var ErrGatewayUnavailable = errors.New("payment gateway rejected or unavailable")

type InitiatePaymentHandler interface {
	Handle(ctx context.Context, cmd InitiatePaymentCommand) (*domain.Payment, error)
}

type InitiatePaymentCommandHandler struct {
	orders   ports.OrderRepository
	payments ports.PaymentRepository
	registry *payments.Registry
	events   ports.EventBus
}

func NewInitiatePaymentCommandHandler(
	orders ports.OrderRepository,
	paymentRepo ports.PaymentRepository,
	registry *payments.Registry,
	events ports.EventBus,
) *InitiatePaymentCommandHandler {
	return &InitiatePaymentCommandHandler{
		orders:   orders,
		payments: paymentRepo,
		registry: registry,
		events:   events,
	}
}

// Handle charges the order total through the requested gateway and records
// the attempt. The gateway call happens exactly once per admitted request;
// deduplicating retries is the idempotency guard's job, not ours.
func (h *InitiatePaymentCommandHandler) Handle(ctx context.Context, cmd InitiatePaymentCommand) (*domain.Payment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	order, err := h.orders.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.Payable() {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotPayable, order.Status)
	}

	channel, _ := domain.ParseGateway(cmd.Gateway)
	gateway, err := h.registry.Lookup(channel)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		Gateway:   channel,
		Amount:    order.Total,
		Status:    domain.PaymentInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	ref, err := gateway.Initiate(ctx, payment)
	if err != nil {
		_ = h.events.PublishPaymentFailed(ctx, payment.ID, err.Error())
		return nil, fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, channel, err)
	}
	payment.GatewayRef = ref

	if err := h.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	if err := h.orders.UpdateStatus(ctx, order.ID, domain.OrderAwaitingPayment); err != nil {
		return &payment, fmt.Errorf("payment initiated but order status not updated: %w", err)
	}

	if err := h.events.PublishPaymentInitiated(ctx, payment.ID, channel); err != nil {
		return &payment, fmt.Errorf("payment initiated but failed to publish event: %w", err)
	}

	return &payment, nil
}
