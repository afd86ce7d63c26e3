package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/bazarghor/checkout/internal/checkout/app/commands"
	"github.com/bazarghor/checkout/internal/checkout/app/queries"
	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/bazarghor/checkout/internal/checkout/metrics"
	"github.com/bazarghor/checkout/internal/checkout/ports"
	"github.com/bazarghor/checkout/internal/integrity"
	"github.com/bazarghor/checkout/internal/payments"
	"github.com/shopspring/decimal"
)

// Pricing carries the quote-time pricing policy.
type Pricing struct {
	// ShippingFlat is charged on every order regardless of contents.
	ShippingFlat decimal.Decimal
	// TaxRate is applied to the subtotal, e.g. 0.05 for 5%.
	TaxRate decimal.Decimal
}

// Service bundles checkout use cases for the API layer.
type Service struct {
	orders          ports.OrderRepository
	paymentsRepo    ports.PaymentRepository
	signer          *integrity.Signer
	pricing         Pricing
	placeOrder      commands.PlaceOrderHandler
	initiatePayment commands.InitiatePaymentHandler
	getOrder        *queries.GetOrderQueryHandler
}

// NewService wires required dependencies.
func NewService(
	orders ports.OrderRepository,
	paymentsRepo ports.PaymentRepository,
	registry *payments.Registry,
	events ports.EventBus,
	signer *integrity.Signer,
	pricing Pricing,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	placeOrder := commands.NewObservablePlaceOrderHandler(
		commands.NewPlaceOrderCommandHandler(orders, signer, events),
		logger, m,
	)
	initiatePayment := commands.NewObservableInitiatePaymentHandler(
		commands.NewInitiatePaymentCommandHandler(orders, paymentsRepo, registry, events),
		logger, m,
	)

	return &Service{
		orders:          orders,
		paymentsRepo:    paymentsRepo,
		signer:          signer,
		pricing:         pricing,
		placeOrder:      placeOrder,
		initiatePayment: initiatePayment,
		getOrder:        queries.NewGetOrderQueryHandler(orders, paymentsRepo),
	}
}

// Quote is a priced cart plus the signature the client must echo back when
// submitting the order.
type Quote struct {
	Items     []domain.LineItem `json:"items"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	Shipping  decimal.Decimal   `json:"shipping"`
	Tax       decimal.Decimal   `json:"tax"`
	Total     decimal.Decimal   `json:"total"`
	Signature string            `json:"signature"`
	QuotedAt  time.Time         `json:"quoted_at"`
}

// QuoteCart prices the cart server-side and signs the result. The signature
// covers items (product, quantity) and the three quoted amounts; tampering
// with any of them invalidates the quote.
func (s *Service) QuoteCart(_ context.Context, items []domain.LineItem) Quote {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	subtotal = subtotal.Round(2)
	shipping := s.pricing.ShippingFlat.Round(2)
	tax := subtotal.Mul(s.pricing.TaxRate).Round(2)

	signedItems := make([]integrity.Item, len(items))
	for i, item := range items {
		signedItems[i] = integrity.Item{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	signature := s.signer.Sign(integrity.Payload{
		Items:    signedItems,
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
	})

	return Quote{
		Items:     items,
		Subtotal:  subtotal,
		Shipping:  shipping,
		Tax:       tax,
		Total:     subtotal.Add(shipping).Add(tax),
		Signature: signature,
		QuotedAt:  time.Now().UTC(),
	}
}

// PlaceOrder creates an order from a signed quote.
func (s *Service) PlaceOrder(ctx context.Context, cmd commands.PlaceOrderCommand) (*domain.Order, error) {
	return s.placeOrder.Handle(ctx, cmd)
}

// InitiatePayment starts a payment against an order.
func (s *Service) InitiatePayment(ctx context.Context, cmd commands.InitiatePaymentCommand) (*domain.Payment, error) {
	return s.initiatePayment.Handle(ctx, cmd)
}

// GetOrder retrieves an order with its payment attempts.
func (s *Service) GetOrder(ctx context.Context, id string) (*queries.OrderDetails, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}
