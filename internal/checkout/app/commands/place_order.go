package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/bazarghor/checkout/internal/checkout/ports"
	"github.com/bazarghor/checkout/internal/integrity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlaceOrderCommand creates an order from a previously quoted, signed cart.
type PlaceOrderCommand struct {
	CustomerEmail string
	Items         []domain.LineItem
	Subtotal      decimal.Decimal
	Shipping      decimal.Decimal
	Tax           decimal.Decimal
	Signature     string
}

func (c PlaceOrderCommand) Validate() error {
	if strings.TrimSpace(c.CustomerEmail) == "" {
		return errors.New("customer_email is required")
	}
	if !strings.Contains(c.CustomerEmail, "@") {
		return errors.New("customer_email must be valid")
	}
	if len(c.Items) == 0 {
		return errors.New("at least one item is required")
	}
	return nil
}

// IntegrityPayload reduces the command to the signed fields.
func (c PlaceOrderCommand) IntegrityPayload() integrity.Payload {
	items := make([]integrity.Item, len(c.Items))
	for i, item := range c.Items {
		items[i] = integrity.Item{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return integrity.Payload{
		Items:    items,
		Subtotal: c.Subtotal,
		Shipping: c.Shipping,
		Tax:      c.Tax,
	}
}

type PlaceOrderHandler interface {
	Handle(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error)
}

type PlaceOrderCommandHandler struct {
	repo   ports.OrderRepository
	signer *integrity.Signer
	events ports.EventBus
}

func NewPlaceOrderCommandHandler(
	repo ports.OrderRepository,
	signer *integrity.Signer,
	events ports.EventBus,
) *PlaceOrderCommandHandler {
	return &PlaceOrderCommandHandler{
		repo:   repo,
		signer: signer,
		events: events,
	}
}

// Handle verifies the quote signature, then persists the order. Integrity is
// checked before anything else so a tampered payload causes no side effect.
func (h *PlaceOrderCommandHandler) Handle(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if err := h.signer.AssertIntegrity(cmd.IntegrityPayload(), cmd.Signature); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:            uuid.NewString(),
		CustomerEmail: cmd.CustomerEmail,
		Items:         cmd.Items,
		Subtotal:      cmd.Subtotal,
		Shipping:      cmd.Shipping,
		Tax:           cmd.Tax,
		Total:         cmd.Subtotal.Add(cmd.Shipping).Add(cmd.Tax),
		Status:        domain.OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	if err := h.events.PublishOrderPlaced(ctx, order.ID); err != nil {
		return &order, fmt.Errorf("order saved but failed to publish event: %w", err)
	}

	return &order, nil
}
