package fulfillment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry manages registered fulfillment providers.
type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry, replacing any provider with the
// same identifier.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Identifier()] = p
}

// Get returns a provider by identifier.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
}

// All returns all registered providers.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	return result
}

// Identifiers returns the sorted identifiers of all registered providers.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProviderOptions groups the options offered by one provider.
type ProviderOptions struct {
	Provider string              `json:"provider"`
	Options  []FulfillmentOption `json:"options"`
}

// AllOptions fetches the fulfillment options of every registered provider in
// parallel. Errors from individual providers are returned alongside the
// results and don't fail the entire request.
func (r *Registry) AllOptions(ctx context.Context) ([]ProviderOptions, []error) {
	providers := r.All()
	if len(providers) == 0 {
		return nil, []error{ErrProviderNotFound}
	}

	results := make([]ProviderOptions, 0, len(providers))
	errs := make([]error, 0)
	mu := &sync.Mutex{}

	g, ctx := errgroup.WithContext(ctx)

	for _, p := range providers {
		p := p
		g.Go(func() error {
			opts, err := p.GetFulfillmentOptions(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Identifier(), err))
				return nil
			}
			results = append(results, ProviderOptions{Provider: p.Identifier(), Options: opts})
			return nil
		})
	}

	_ = g.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Provider < results[j].Provider })
	return results, errs
}
