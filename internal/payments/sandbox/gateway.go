package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/google/uuid"
)

// Gateway simulates a payment channel for local development and tests. Every
// accepted charge is recorded, which lets tests assert how many times a
// payment actually reached the channel.
type Gateway struct {
	name domain.Gateway

	mu       sync.Mutex
	charges  []Charge
	failWith error
}

// Charge is one accepted payment, as the sandbox channel saw it.
type Charge struct {
	PaymentID string
	OrderID   string
	Amount    string
	Ref       string
}

// NewGateway creates a sandbox gateway for the given channel.
func NewGateway(name domain.Gateway) *Gateway {
	return &Gateway{name: name}
}

// Name reports the simulated channel.
func (g *Gateway) Name() domain.Gateway {
	return g.name
}

// Initiate records the charge and returns a channel-style reference such as
// BKA-6f1c… . When FailWith has been set, the charge is rejected instead.
func (g *Gateway) Initiate(_ context.Context, payment domain.Payment) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failWith != nil {
		return "", g.failWith
	}

	ref := fmt.Sprintf("%s-%s", strings.ToUpper(string(g.name))[:3], uuid.NewString())
	g.charges = append(g.charges, Charge{
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		Amount:    payment.Amount.StringFixed(2),
		Ref:       ref,
	})

	slog.Debug("sandbox charge accepted", "gateway", g.name, "payment_id", payment.ID, "ref", ref)
	return ref, nil
}

// FailWith makes every subsequent Initiate return err. Pass nil to recover.
func (g *Gateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWith = err
}

// Charges returns a copy of every accepted charge.
func (g *Gateway) Charges() []Charge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Charge(nil), g.charges...)
}
