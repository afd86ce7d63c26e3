package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseGateway(t *testing.T) {
	for name, want := range map[string]Gateway{
		"bkash": GatewayBkash,
		"BKASH": GatewayBkash,
		" nagad ": GatewayNagad,
		"rocket": GatewayRocket,
		"cod": GatewayCOD,
	} {
		got, err := ParseGateway(name)
		if err != nil {
			t.Errorf("ParseGateway(%q) failed: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("ParseGateway(%q) = %q, want %q", name, got, want)
		}
	}

	for _, name := range []string{"", "visa", "paypal"} {
		if _, err := ParseGateway(name); err == nil {
			t.Errorf("ParseGateway(%q): expected error", name)
		}
	}
}

func TestPaymentValidate(t *testing.T) {
	payment := Payment{
		ID:      "payment-1",
		OrderID: "order-1",
		Gateway: GatewayBkash,
		Amount:  decimal.RequireFromString("2685.00"),
		Status:  PaymentInitiated,
	}
	if err := payment.Validate(); err != nil {
		t.Fatalf("valid payment failed validation: %v", err)
	}

	tests := map[string]func(*Payment){
		"missing order id": func(p *Payment) { p.OrderID = "" },
		"unknown gateway": func(p *Payment) { p.Gateway = "visa" },
		"zero amount": func(p *Payment) { p.Amount = decimal.Zero },
		"negative amount": func(p *Payment) { p.Amount = decimal.RequireFromString("-10") },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := payment
			mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
