package payments

import (
	"fmt"

	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/bazarghor/checkout/internal/checkout/ports"
)

// Registry resolves a gateway implementation by channel name.
type Registry struct {
	gateways map[domain.Gateway]ports.PaymentGateway
}

// NewRegistry builds a registry from the given gateways. Registering the same
// channel twice is a wiring bug and fails loudly.
func NewRegistry(gateways ...ports.PaymentGateway) (*Registry, error) {
	r := &Registry{gateways: make(map[domain.Gateway]ports.PaymentGateway, len(gateways))}
	for _, gw := range gateways {
		if _, exists := r.gateways[gw.Name()]; exists {
			return nil, fmt.Errorf("gateway %s registered twice", gw.Name())
		}
		r.gateways[gw.Name()] = gw
	}
	return r, nil
}

// Lookup returns the gateway for the channel, or ErrGatewayNotConfigured.
func (r *Registry) Lookup(gateway domain.Gateway) (ports.PaymentGateway, error) {
	gw, ok := r.gateways[gateway]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrGatewayNotConfigured, gateway)
	}
	return gw, nil
}
