package fulfillment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment/mock"
)

type failingProvider struct {
	*mock.Provider
}

func (f failingProvider) GetFulfillmentOptions(ctx context.Context) ([]fulfillment.FulfillmentOption, error) {
	return nil, fulfillment.ErrCarrierUnavailable
}

func TestRegistry_Register(t *testing.T) {
	registry := fulfillment.NewRegistry()

	registry.Register(mock.New("sendcloud-fulfillment"))

	got, err := registry.Get("sendcloud-fulfillment")
	require.NoError(t, err, "provider should be registered")
	assert.Equal(t, "sendcloud-fulfillment", got.Identifier())
}

func TestRegistry_Register_Override(t *testing.T) {
	registry := fulfillment.NewRegistry()

	registry.Register(mock.New("provider"))
	assert.Len(t, registry.Identifiers(), 1)

	// Same identifier replaces the existing provider
	registry.Register(mock.New("provider"))
	assert.Len(t, registry.Identifiers(), 1)
}

func TestRegistry_Get_NotFound(t *testing.T) {
	registry := fulfillment.NewRegistry()

	_, err := registry.Get("nonexistent")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, fulfillment.ErrProviderNotFound))
}

func TestRegistry_Identifiers(t *testing.T) {
	registry := fulfillment.NewRegistry()

	registry.Register(mock.New("sendcloud-fulfillment"))
	registry.Register(mock.New("manual"))
	registry.Register(mock.New("local-pickup"))

	assert.Equal(t, []string{"local-pickup", "manual", "sendcloud-fulfillment"}, registry.Identifiers())
	assert.Len(t, registry.All(), 3)
}

func TestRegistry_AllOptions(t *testing.T) {
	registry := fulfillment.NewRegistry()

	registry.Register(mock.New("b-provider"))
	registry.Register(mock.New("a-provider"))

	results, errs := registry.AllOptions(context.Background())

	assert.Empty(t, errs)
	require.Len(t, results, 2)
	assert.Equal(t, "a-provider", results[0].Provider)
	assert.Equal(t, "b-provider", results[1].Provider)
	assert.Len(t, results[0].Options, 2)
}

func TestRegistry_AllOptions_PartialFailure(t *testing.T) {
	registry := fulfillment.NewRegistry()

	registry.Register(mock.New("healthy"))
	registry.Register(failingProvider{mock.New("broken")})

	results, errs := registry.AllOptions(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, "healthy", results[0].Provider)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], fulfillment.ErrCarrierUnavailable))
	assert.Contains(t, errs[0].Error(), "broken")
}

func TestRegistry_AllOptions_Empty(t *testing.T) {
	registry := fulfillment.NewRegistry()

	results, errs := registry.AllOptions(context.Background())

	assert.Empty(t, results)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], fulfillment.ErrProviderNotFound))
}
