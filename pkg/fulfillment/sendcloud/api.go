package sendcloud

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// APIClient defines the interface for Sendcloud API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// GetShippingMethods lists normal or return shipping methods
	GetShippingMethods(ctx context.Context, isReturn bool) (*ShippingMethodsResponse, error)

	// GetContracts lists the carrier contracts of the account
	GetContracts(ctx context.Context) (*ContractsResponse, error)

	// GetSenderAddresses lists the sender addresses of the account
	GetSenderAddresses(ctx context.Context) (*SenderAddressesResponse, error)

	// GetShippingPrice fetches a price quote for one shipping method
	GetShippingPrice(ctx context.Context, req *PriceRequest) ([]PriceQuote, error)

	// CreateParcel creates a parcel and requests its label
	CreateParcel(ctx context.Context, req *ParcelRequest) (*ParcelResponse, error)

	// CancelParcel cancels a parcel
	CancelParcel(ctx context.Context, parcelID int64) (*CancelResponse, error)

	// GetParcel retrieves a single parcel
	GetParcel(ctx context.Context, parcelID int64) (*ParcelResponse, error)

	// ListParcels retrieves every parcel of the account
	ListParcels(ctx context.Context) (*ParcelsResponse, error)

	// CreateReturn registers an incoming return on the return portal
	CreateReturn(ctx context.Context, req *ReturnRequest) ([]byte, error)
}

// ============================================================================
// API Request/Response Types (match Sendcloud REST API v2 structure)
// ============================================================================

// ShippingMethodsResponse is returned by GET /shipping_methods.
type ShippingMethodsResponse struct {
	ShippingMethods []ShippingMethod `json:"shipping_methods"`
}

// ShippingMethod is a carrier service level.
type ShippingMethod struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Carrier           string          `json:"carrier"`
	MinWeight         decimal.Decimal `json:"min_weight"`
	MaxWeight         decimal.Decimal `json:"max_weight"` // kg
	ServicePointInput string          `json:"service_point_input"`
	Price             decimal.Decimal `json:"price"`
	Countries         []Country       `json:"countries"`
}

// Country is a destination served by a shipping method.
type Country struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	ISO2  string          `json:"iso_2"`
	ISO3  string          `json:"iso_3"`
	Price decimal.Decimal `json:"price"`
}

// ContractsResponse is returned by GET /contracts.
type ContractsResponse struct {
	Contracts []Contract `json:"contracts"`
}

// Contract is a carrier agreement for one country.
type Contract struct {
	ID        int64           `json:"id"`
	ClientID  string          `json:"client_id,omitempty"`
	Carrier   ContractCarrier `json:"carrier"`
	Country   string          `json:"country"`
	IsActive  bool            `json:"is_active"`
	IsDefault bool            `json:"is_default"`
}

// ContractCarrier identifies the carrier of a contract.
type ContractCarrier struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SenderAddressesResponse is returned by GET /user/addresses/sender.
type SenderAddressesResponse struct {
	SenderAddresses []SenderAddress `json:"sender_addresses"`
}

// SenderAddress is a merchant address parcels ship from.
type SenderAddress struct {
	ID          int64  `json:"id"`
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Telephone   string `json:"telephone"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

// Weight units accepted by GET /shipping-price.
const (
	WeightUnitGram     = "gram"
	WeightUnitKilogram = "kilogram"
)

// PriceRequest holds the query of GET /shipping-price. Empty optional
// fields are omitted from the query.
type PriceRequest struct {
	ShippingMethodID int64
	FromCountry      string // optional
	FromPostalCode   string // optional
	ToCountry        string
	ToPostalCode     string
	Weight           decimal.Decimal
	WeightUnit       string
	ContractID       *int64 // optional
}

// PriceQuote is one entry of the GET /shipping-price response. Price is
// nil when the carrier cannot price the shipment.
type PriceQuote struct {
	Price     *decimal.Decimal `json:"price"`
	Currency  string           `json:"currency"`
	ToCountry string           `json:"to_country"`
}

// ParcelRequest is the body of POST /parcels.
type ParcelRequest struct {
	Parcel NewParcel `json:"parcel"`
}

// NewParcel describes the parcel to create.
type NewParcel struct {
	Name                       string       `json:"name"`
	CompanyName                string       `json:"company_name,omitempty"`
	Address                    string       `json:"address"`
	HouseNumber                string       `json:"house_number,omitempty"`
	City                       string       `json:"city"`
	PostalCode                 string       `json:"postal_code"`
	Country                    string       `json:"country"`
	Telephone                  string       `json:"telephone,omitempty"`
	Email                      string       `json:"email,omitempty"`
	ParcelItems                []ParcelItem `json:"parcel_items"`
	RequestLabel               bool         `json:"request_label"`
	OrderNumber                string       `json:"order_number,omitempty"`
	ShippingMethodCheckoutName string       `json:"shipping_method_checkout_name,omitempty"`
	Shipment                   *Shipment    `json:"shipment,omitempty"`
	ExternalReference          string       `json:"external_reference,omitempty"`
}

// Shipment selects the shipping method of a parcel.
type Shipment struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// ParcelItem is one line of a parcel's contents.
type ParcelItem struct {
	Description   string            `json:"description"`
	Quantity      int               `json:"quantity"`
	Weight        decimal.Decimal   `json:"weight"` // kg
	Value         decimal.Decimal   `json:"value"`
	HSCode        string            `json:"hs_code,omitempty"`
	OriginCountry string            `json:"origin_country,omitempty"`
	ProductID     string            `json:"product_id,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// ParcelResponse wraps a single parcel.
type ParcelResponse struct {
	Parcel Parcel `json:"parcel"`
}

// ParcelsResponse is returned by GET /parcels.
type ParcelsResponse struct {
	Parcels  []Parcel `json:"parcels"`
	Next     *string  `json:"next,omitempty"`
	Previous *string  `json:"previous,omitempty"`
}

// Parcel is the carrier's parcel record.
type Parcel struct {
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	CompanyName       string         `json:"company_name"`
	Address           string         `json:"address"`
	HouseNumber       string         `json:"house_number"`
	City              string         `json:"city"`
	PostalCode        string         `json:"postal_code"`
	Country           ParcelCountry  `json:"country"`
	Email             string         `json:"email"`
	Telephone         string         `json:"telephone"`
	OrderNumber       string         `json:"order_number"`
	ExternalReference string         `json:"external_reference"`
	TrackingNumber    string         `json:"tracking_number"`
	TrackingURL       string         `json:"tracking_url"`
	Status            ParcelStatus   `json:"status"`
	ParcelItems       []ParcelItem   `json:"parcel_items"`
	Carrier           *ParcelCarrier `json:"carrier,omitempty"`
	Label             *ParcelLabel   `json:"label,omitempty"`
	DateCreated       string         `json:"date_created"`
}

// ParcelCountry is the destination country of a parcel.
type ParcelCountry struct {
	ISO2 string `json:"iso_2"`
	ISO3 string `json:"iso_3,omitempty"`
	Name string `json:"name,omitempty"`
}

// ParcelStatus is the status of a parcel.
type ParcelStatus struct {
	ID      int    `json:"id"`
	Message string `json:"message"`
}

// ParcelCarrier identifies the carrier handling a parcel.
type ParcelCarrier struct {
	Code string `json:"code"`
}

// ParcelLabel holds label download links.
type ParcelLabel struct {
	NormalPrinter []string `json:"normal_printer,omitempty"`
	LabelPrinter  string   `json:"label_printer,omitempty"`
}

// CancelResponse is returned by POST /parcels/{id}/cancel.
type CancelResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ReturnRequest is the body of POST /brand/{brand}/return-portal/incoming.
type ReturnRequest struct {
	Reason                  int                     `json:"reason"`
	Message                 string                  `json:"message"`
	OutgoingParcel          int64                   `json:"outgoing_parcel"`
	ServicePoint            *ServicePoint           `json:"service_point,omitempty"`
	Refund                  Refund                  `json:"refund"`
	DeliveryOption          string                  `json:"delivery_option"`
	Products                []ReturnProduct         `json:"products"`
	IncomingParcel          IncomingParcel          `json:"incoming_parcel"`
	SelectedFunctionalities SelectedFunctionalities `json:"selected_functionalities"`
}

// ServicePoint is a drop-off location.
type ServicePoint struct {
	ID int64 `json:"id"`
}

// Refund describes how the customer is refunded.
type Refund struct {
	RefundType RefundType `json:"refund_type"`
	Message    string     `json:"message"`
}

// RefundType is the refund method code (e.g., "money").
type RefundType struct {
	Code string `json:"code"`
}

// ReturnProduct is a product being returned.
type ReturnProduct struct {
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	Description  string          `json:"description"`
	Value        decimal.Decimal `json:"value"`
	ReturnReason int             `json:"return_reason"`
}

// IncomingParcel is the parcel the customer sends back.
type IncomingParcel struct {
	ColloCount       int    `json:"collo_count"`
	FromAddress1     string `json:"from_address_1"`
	FromAddress2     string `json:"from_address_2,omitempty"`
	FromCity         string `json:"from_city"`
	FromCompanyName  string `json:"from_company_name,omitempty"`
	FromCountry      string `json:"from_country"`
	FromEmail        string `json:"from_email"`
	FromHouseNumber  string `json:"from_house_number,omitempty"`
	FromCountryState string `json:"from_country_state,omitempty"`
	FromName         string `json:"from_name"`
	FromPostalCode   string `json:"from_postal_code"`
	FromTelephone    string `json:"from_telephone,omitempty"`
}

// SelectedFunctionalities selects how the return parcel enters the network.
type SelectedFunctionalities struct {
	FirstMile string `json:"first_mile"`
}

// APIError represents an error from the Sendcloud API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sendcloud: %s: %s", e.Code, e.Message)
}

// Temporary reports whether the failure is worth retrying later.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
