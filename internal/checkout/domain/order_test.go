package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func validOrder() Order {
	return Order{
		ID:            "order-1",
		CustomerEmail: "customer@example.com",
		Items: []LineItem{
			{ProductID: "SKU-1001", Name: "Panjabi", UnitPrice: decimal.RequireFromString("1250.00"), Quantity: 2},
		},
		Subtotal: decimal.RequireFromString("2500.00"),
		Shipping: decimal.RequireFromString("60.00"),
		Tax:      decimal.RequireFromString("125.00"),
		Total:    decimal.RequireFromString("2685.00"),
		Status:   OrderPending,
	}
}

func TestOrderValidate(t *testing.T) {
	if err := validOrder().Validate(); err != nil {
		t.Fatalf("valid order failed validation: %v", err)
	}

	tests := map[string]func(*Order){
		"missing email": func(o *Order) { o.CustomerEmail = "" },
		"invalid email": func(o *Order) { o.CustomerEmail = "nope" },
		"no items": func(o *Order) { o.Items = nil },
		"missing product id": func(o *Order) { o.Items[0].ProductID = " " },
		"zero quantity": func(o *Order) { o.Items[0].Quantity = 0 },
		"negative unit price": func(o *Order) { o.Items[0].UnitPrice = decimal.RequireFromString("-1") },
		"negative shipping": func(o *Order) { o.Shipping = decimal.RequireFromString("-1") },
		"inconsistent total": func(o *Order) { o.Total = decimal.RequireFromString("9999.00") },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			order := validOrder()
			mutate(&order)
			if err := order.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestOrderTotalToleratesScaleDifferences(t *testing.T) {
	order := validOrder()
	order.Total = decimal.RequireFromString("2685")
	if err := order.Validate(); err != nil {
		t.Fatalf("2685 and 2685.00 must compare equal: %v", err)
	}
}

func TestOrderLifecyclePredicates(t *testing.T) {
	tests := []struct {
		status   OrderStatus
		payable  bool
		terminal bool
	}{
		{OrderPending, true, false},
		{OrderAwaitingPayment, true, false},
		{OrderPaid, false, true},
		{OrderFailed, false, true},
		{OrderCanceled, false, true},
	}

	for _, tc := range tests {
		order := Order{Status: tc.status}
		if order.Payable() != tc.payable {
			t.Errorf("%s: expected Payable() %v", tc.status, tc.payable)
		}
		if order.IsTerminal() != tc.terminal {
			t.Errorf("%s: expected IsTerminal() %v", tc.status, tc.terminal)
		}
	}
}
