package commands

import (
	"context"
	"log/slog"

	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/bazarghor/checkout/internal/checkout/metrics"
	"github.com/bazarghor/checkout/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservablePlaceOrderHandler decorates PlaceOrderHandler with tracing,
// logging, and metrics.
type ObservablePlaceOrderHandler struct {
	handler PlaceOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservablePlaceOrderHandler(handler PlaceOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservablePlaceOrderHandler {
	return &ObservablePlaceOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservablePlaceOrderHandler) Handle(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "PlaceOrderCommand.Handle")
	defer span.End()

	var success bool
	defer func() {
		o.metrics.RecordOrderPlaced(ctx, success)
	}()

	o.logger.InfoContext(ctx, "placing order",
		"customer_email", cmd.CustomerEmail,
		"items", len(cmd.Items),
	)

	order, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to place order",
			"error", err,
			"customer_email", cmd.CustomerEmail,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.total", order.Total.StringFixed(2)),
		attribute.String("order.status", string(order.Status)),
	)

	o.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"total", order.Total.StringFixed(2),
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return order, nil
}

// ObservableInitiatePaymentHandler decorates InitiatePaymentHandler the same way.
type ObservableInitiatePaymentHandler struct {
	handler InitiatePaymentHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableInitiatePaymentHandler(handler InitiatePaymentHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableInitiatePaymentHandler {
	return &ObservableInitiatePaymentHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableInitiatePaymentHandler) Handle(ctx context.Context, cmd InitiatePaymentCommand) (*domain.Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "InitiatePaymentCommand.Handle")
	defer span.End()

	var success bool
	defer func() {
		o.metrics.RecordPaymentInitiated(ctx, cmd.Gateway, success)
	}()

	o.logger.InfoContext(ctx, "initiating payment",
		"order_id", cmd.OrderID,
		"gateway", cmd.Gateway,
	)

	payment, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to initiate payment",
			"error", err,
			"order_id", cmd.OrderID,
			"gateway", cmd.Gateway,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("payment.id", payment.ID),
		attribute.String("payment.gateway", string(payment.Gateway)),
		attribute.String("payment.amount", payment.Amount.StringFixed(2)),
	)

	o.logger.InfoContext(ctx, "payment initiated",
		"payment_id", payment.ID,
		"gateway", payment.Gateway,
		"gateway_ref", payment.GatewayRef,
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return payment, nil
}
