package chathub

import (
	"anonchat/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoGateway is returned when no transport claims the recipient.
var ErrNoGateway = errors.New("no gateway for recipient")

// GatewayRouter fans outbound traffic out to the transport that owns the recipient.
// It implements Gateway itself, so the hub sees a single gateway.
type GatewayRouter struct {
	mu       sync.RWMutex
	routes   []route
	fallback Gateway
}

type route struct {
	owns    func(models.UserID) bool
	gateway Gateway
}

// NewGatewayRouter creates a router. fallback may be nil.
func NewGatewayRouter(fallback Gateway) *GatewayRouter {
	return &GatewayRouter{fallback: fallback}
}

// Register adds a transport that owns every user accepted by owns.
// Routes are checked in registration order.
func (r *GatewayRouter) Register(owns func(models.UserID) bool, gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{owns: owns, gateway: gw})
}

// SendText implements Gateway.
func (r *GatewayRouter) SendText(ctx context.Context, to models.UserID, text string) error {
	gw, err := r.gatewayFor(to)
	if err != nil {
		return err
	}
	return gw.SendText(ctx, to, text)
}

// Forward implements Gateway.
func (r *GatewayRouter) Forward(ctx context.Context, from, to models.UserID, msg models.Message) error {
	gw, err := r.gatewayFor(to)
	if err != nil {
		return err
	}
	return gw.Forward(ctx, from, to, msg)
}

func (r *GatewayRouter) gatewayFor(id models.UserID) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if rt.owns(id) {
			return rt.gateway, nil
		}
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoGateway, id)
}
