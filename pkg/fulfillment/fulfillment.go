// Package fulfillment defines the fulfillment-provider contract of the host
// e-commerce platform and the records exchanged through it.
package fulfillment

import (
	"context"
)

// Provider is the capability set the host platform requires from a
// fulfillment provider.
type Provider interface {
	// Identifier returns the provider identifier (e.g., "sendcloud-fulfillment").
	Identifier() string

	// GetFulfillmentOptions lists the shipping options the provider offers.
	GetFulfillmentOptions(ctx context.Context) ([]FulfillmentOption, error)

	// ValidateOption reports whether the option is one the provider offers.
	ValidateOption(ctx context.Context, option FulfillmentOption) (bool, error)

	// ValidateFulfillmentData merges option data into the fulfillment data
	// stored on a shipping method.
	ValidateFulfillmentData(ctx context.Context, optionData, data Data, cart *Cart) (Data, error)

	// CanCalculate reports whether prices for the option are calculated dynamically.
	CanCalculate(ctx context.Context, option FulfillmentOption) (bool, error)

	// CalculatePrice computes the shipping price for a cart.
	CalculatePrice(ctx context.Context, req *CalculatePriceRequest) (*CalculatePriceResponse, error)

	// CreateFulfillment creates a shipment with the carrier for an order.
	CreateFulfillment(ctx context.Context, req *CreateFulfillmentRequest) (*CreateFulfillmentResponse, error)

	// CancelFulfillment cancels a shipment.
	CancelFulfillment(ctx context.Context, req *CancelFulfillmentRequest) (*CancelFulfillmentResponse, error)

	// CreateReturn registers a return with the carrier.
	CreateReturn(ctx context.Context, req *CreateReturnRequest) (*CreateReturnResponse, error)

	// ListParcels returns every parcel known to the carrier account.
	ListParcels(ctx context.Context) ([]Parcel, error)

	DocumentRetriever
}

// DocumentRetriever groups the document operations of the provider contract.
type DocumentRetriever interface {
	GetFulfillmentDocuments(ctx context.Context, data Data) ([]Document, error)
	GetReturnDocuments(ctx context.Context, data Data) ([]Document, error)
	GetShipmentDocuments(ctx context.Context, data Data) ([]Document, error)
	RetrieveDocuments(ctx context.Context, data Data, kind DocumentKind) ([]Document, error)
}
