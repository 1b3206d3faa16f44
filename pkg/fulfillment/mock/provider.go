// Package mock provides a mock fulfillment provider for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
)

// Provider is a mock fulfillment provider for testing.
type Provider struct {
	id string

	mu      sync.Mutex
	parcels []fulfillment.Parcel
	nextID  int64

	// Cancelled records the parcel ids passed to CancelFulfillment that
	// reached the "carrier".
	Cancelled []int64
}

// New creates a new mock provider.
func New(id string) *Provider {
	return &Provider{id: id, nextID: 1}
}

// Identifier returns the provider identifier.
func (p *Provider) Identifier() string {
	return p.id
}

// Options returns the fixed options the mock offers.
func (p *Provider) Options() []fulfillment.FulfillmentOption {
	return []fulfillment.FulfillmentOption{
		{
			ID:        1,
			Name:      fmt.Sprintf("%s Standard", p.id),
			Carrier:   "mock",
			MaxWeight: decimal.NewFromInt(30),
			Countries: []fulfillment.Country{{ISO2: "NL"}},
		},
		{
			ID:        2,
			Name:      fmt.Sprintf("%s Return", p.id),
			Carrier:   "mock",
			MaxWeight: decimal.NewFromInt(30),
			Countries: []fulfillment.Country{{ISO2: "NL"}},
			IsReturn:  true,
		},
	}
}

// GetFulfillmentOptions returns the mock options.
func (p *Provider) GetFulfillmentOptions(ctx context.Context) ([]fulfillment.FulfillmentOption, error) {
	return p.Options(), nil
}

// ValidateOption reports whether the option id is 1 or 2.
func (p *Provider) ValidateOption(ctx context.Context, option fulfillment.FulfillmentOption) (bool, error) {
	return option.ID == 1 || option.ID == 2, nil
}

// ValidateFulfillmentData merges option data over data.
func (p *Provider) ValidateFulfillmentData(ctx context.Context, optionData, data fulfillment.Data, cart *fulfillment.Cart) (fulfillment.Data, error) {
	merged := fulfillment.Data{}
	for k, v := range data {
		merged[k] = v
	}
	for k, v := range optionData {
		merged[k] = v
	}
	return merged, nil
}

// CanCalculate behaves like ValidateOption.
func (p *Provider) CanCalculate(ctx context.Context, option fulfillment.FulfillmentOption) (bool, error) {
	return p.ValidateOption(ctx, option)
}

// CalculatePrice returns a flat price of 695 minor units.
func (p *Provider) CalculatePrice(ctx context.Context, req *fulfillment.CalculatePriceRequest) (*fulfillment.CalculatePriceResponse, error) {
	return &fulfillment.CalculatePriceResponse{
		Amount:      695,
		Currency:    "EUR",
		Calculable:  true,
		WeightGrams: "0",
	}, nil
}

// CreateFulfillment records a mock parcel.
func (p *Provider) CreateFulfillment(ctx context.Context, req *fulfillment.CreateFulfillmentRequest) (*fulfillment.CreateFulfillmentResponse, error) {
	if req.Order == nil {
		return nil, fmt.Errorf("%w: order is required", fulfillment.ErrInvalidRequest)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	parcel := fulfillment.Parcel{
		ID:                id,
		Email:             req.Order.Email,
		OrderNumber:       fmt.Sprintf("%d", req.Order.DisplayID),
		TrackingNumber:    fmt.Sprintf("MOCK%d", time.Now().UnixNano()%1000000000),
		Status:            fulfillment.ParcelStatus{ID: fulfillment.ParcelStatusReadyToSend, Message: "Ready to send"},
		ExternalReference: req.Order.ID,
	}
	if req.Order.ShippingAddress != nil {
		parcel.Name = req.Order.ShippingAddress.FullName()
		parcel.PostalCode = req.Order.ShippingAddress.PostalCode
	}
	p.parcels = append(p.parcels, parcel)

	return &fulfillment.CreateFulfillmentResponse{Parcel: parcel}, nil
}

// CancelFulfillment cancels a mock parcel.
func (p *Provider) CancelFulfillment(ctx context.Context, req *fulfillment.CancelFulfillmentRequest) (*fulfillment.CancelFulfillmentResponse, error) {
	if req.Status != nil && req.Status.IsFinal() {
		return &fulfillment.CancelFulfillmentResponse{ParcelID: req.ParcelID, AlreadyFinal: true}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Cancelled = append(p.Cancelled, req.ParcelID)

	return &fulfillment.CancelFulfillmentResponse{
		ParcelID: req.ParcelID,
		Status:   "cancelled",
		Message:  "Parcel has been cancelled",
	}, nil
}

// CreateReturn echoes the return as the payload.
func (p *Provider) CreateReturn(ctx context.Context, req *fulfillment.CreateReturnRequest) (*fulfillment.CreateReturnResponse, error) {
	return &fulfillment.CreateReturnResponse{
		OrderID: req.Return.OrderID,
		Payload: req.Return,
	}, nil
}

// ListParcels returns the parcels created so far.
func (p *Provider) ListParcels(ctx context.Context) ([]fulfillment.Parcel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]fulfillment.Parcel, len(p.parcels))
	copy(out, p.parcels)
	return out, nil
}

// AddParcels seeds the parcel list.
func (p *Provider) AddParcels(parcels ...fulfillment.Parcel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parcels = append(p.parcels, parcels...)
}

// GetFulfillmentDocuments is not supported.
func (p *Provider) GetFulfillmentDocuments(ctx context.Context, data fulfillment.Data) ([]fulfillment.Document, error) {
	return nil, fulfillment.ErrNotImplemented
}

// GetReturnDocuments is not supported.
func (p *Provider) GetReturnDocuments(ctx context.Context, data fulfillment.Data) ([]fulfillment.Document, error) {
	return nil, fulfillment.ErrNotImplemented
}

// GetShipmentDocuments is not supported.
func (p *Provider) GetShipmentDocuments(ctx context.Context, data fulfillment.Data) ([]fulfillment.Document, error) {
	return nil, fulfillment.ErrNotImplemented
}

// RetrieveDocuments is not supported.
func (p *Provider) RetrieveDocuments(ctx context.Context, data fulfillment.Data, kind fulfillment.DocumentKind) ([]fulfillment.Document, error) {
	return nil, fulfillment.ErrNotImplemented
}

var _ fulfillment.Provider = (*Provider)(nil)
