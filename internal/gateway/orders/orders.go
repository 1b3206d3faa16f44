// Package orders looks up host-platform orders for return creation.
package orders

import (
	"context"
	"fmt"
	"sync"

	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
)

// Gateway resolves orders by id.
type Gateway interface {
	GetByID(ctx context.Context, id string) (*fulfillment.Order, error)
}

// StaticGateway serves orders from memory.
type StaticGateway struct {
	mu     sync.RWMutex
	orders map[string]*fulfillment.Order
}

// NewStaticGateway creates a gateway preloaded with orders.
func NewStaticGateway(orders ...*fulfillment.Order) *StaticGateway {
	g := &StaticGateway{orders: make(map[string]*fulfillment.Order, len(orders))}
	for _, o := range orders {
		g.orders[o.ID] = o
	}
	return g
}

// Put adds or replaces an order.
func (g *StaticGateway) Put(o *fulfillment.Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[o.ID] = o
}

// GetByID returns the stored order or fulfillment.ErrOrderNotFound.
func (g *StaticGateway) GetByID(ctx context.Context, id string) (*fulfillment.Order, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if o, ok := g.orders[id]; ok {
		return o, nil
	}
	return nil, fmt.Errorf("%w: %s", fulfillment.ErrOrderNotFound, id)
}

var (
	_ Gateway = (*StaticGateway)(nil)
	_ Gateway = (*HTTPGateway)(nil)
	_ Gateway = (*RetryingGateway)(nil)
)
