package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bazarghor/checkout/internal/checkout/app"
	"github.com/bazarghor/checkout/internal/checkout/app/commands"
	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/bazarghor/checkout/internal/checkout/ports"
	"github.com/bazarghor/checkout/internal/integrity"
	"github.com/bazarghor/checkout/internal/validation"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Handler exposes HTTP endpoints for checkout operations.
type Handler struct {
	service  *app.Service
	validate *validatorv10.Validate
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service, validate: validation.New()}
}

// Register binds the checkout handlers to the provided ServeMux. The guard
// wraps only the mutation routes that carry money; everything else passes
// through untouched.
func (h *Handler) Register(mux *http.ServeMux, guard *Guard) {
	mux.HandleFunc("POST /v1/checkout/quote", h.quoteCart)
	mux.Handle("POST /v1/orders", guard.Wrap(http.HandlerFunc(h.placeOrder)))
	mux.HandleFunc("GET /v1/orders/{id}", h.getOrder)
	mux.Handle("POST /v1/payments", guard.Wrap(http.HandlerFunc(h.initiatePayment)))
}

type lineItemPayload struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
}

func (p lineItemPayload) toDomain() domain.LineItem {
	return domain.LineItem{
		ProductID: p.ProductID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Quantity:  p.Quantity,
	}
}

type quoteRequest struct {
	Items []lineItemPayload `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) quoteCart(w http.ResponseWriter, r *http.Request) {
	var payload quoteRequest
	if !h.bind(w, r, &payload) {
		return
	}

	items := make([]domain.LineItem, len(payload.Items))
	for i, item := range payload.Items {
		items[i] = item.toDomain()
	}

	quote := h.service.QuoteCart(r.Context(), items)
	writeSuccess(w, http.StatusOK, map[string]any{"quote": quote})
}

type placeOrderRequest struct {
	CustomerEmail string            `json:"customer_email" validate:"required,email"`
	Items         []lineItemPayload `json:"items" validate:"required,min=1,dive"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Shipping      decimal.Decimal   `json:"shipping"`
	Tax           decimal.Decimal   `json:"tax"`
	Signature     string            `json:"signature"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var payload placeOrderRequest
	if !h.bind(w, r, &payload) {
		return
	}

	items := make([]domain.LineItem, len(payload.Items))
	for i, item := range payload.Items {
		items[i] = item.toDomain()
	}

	order, err := h.service.PlaceOrder(r.Context(), commands.PlaceOrderCommand{
		CustomerEmail: payload.CustomerEmail,
		Items:         items,
		Subtotal:      payload.Subtotal,
		Shipping:      payload.Shipping,
		Tax:           payload.Tax,
		Signature:     payload.Signature,
	})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{"order": order})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ports.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to load order")
		return
	}
	writeSuccess(w, http.StatusOK, details)
}

type initiatePaymentRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	Gateway string `json:"gateway" validate:"required,oneof=bkash nagad rocket cod"`
}

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var payload initiatePaymentRequest
	if !h.bind(w, r, &payload) {
		return
	}

	payment, err := h.service.InitiatePayment(r.Context(), commands.InitiatePaymentCommand{
		OrderID: payload.OrderID,
		Gateway: payload.Gateway,
	})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{"payment": payment})
}

// bind decodes and validates a JSON payload, replying 400 on failure.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, payload any) bool {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON payload")
		return false
	}
	if err := h.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return false
	}
	return true
}

// writeCommandError maps application errors to the structured envelope.
func (h *Handler) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, integrity.ErrMissingSignature), errors.Is(err, integrity.ErrSignatureMismatch):
		writeError(w, http.StatusBadRequest, codeIntegrityFailed, err.Error())
	case errors.Is(err, ports.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "order not found")
	case errors.Is(err, commands.ErrOrderNotPayable):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, ports.ErrGatewayNotConfigured):
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	case errors.Is(err, commands.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, codeGatewayError, err.Error())
	default:
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	}
}
