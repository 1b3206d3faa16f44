package fulfillment

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Parcel status ids with a fixed meaning.
const (
	// ParcelStatusReadyToSend is the status of a parcel whose label was announced.
	ParcelStatusReadyToSend = 1000
	// ParcelStatusCancelled is the terminal cancelled state; cancelling again is a no-op.
	ParcelStatusCancelled = 2000
)

// DocumentKind is the kind of document attached to a fulfillment.
type DocumentKind string

const (
	DocumentInvoice DocumentKind = "invoice"
	DocumentLabel   DocumentKind = "label"
)

// Data is a loosely-typed bag of fields the host platform stores alongside
// shipping methods and fulfillments.
type Data map[string]any

// Country is a destination country a fulfillment option serves.
type Country struct {
	ID    int64           `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	ISO2  string          `json:"iso_2"`
	ISO3  string          `json:"iso_3,omitempty"`
	Price decimal.Decimal `json:"price"`
}

// FulfillmentOption is a carrier service level offered to the platform.
// It is stored by the platform as the data of a shipping option.
type FulfillmentOption struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Carrier           string          `json:"carrier"`
	MinWeight         decimal.Decimal `json:"min_weight"`
	MaxWeight         decimal.Decimal `json:"max_weight"` // kg
	ServicePointInput string          `json:"service_point_input,omitempty"`
	Countries         []Country       `json:"countries"`
	IsReturn          bool            `json:"is_return"`
}

// CountryCodes returns the ISO 3166-1 alpha-2 codes the option serves.
func (o FulfillmentOption) CountryCodes() []string {
	codes := make([]string, 0, len(o.Countries))
	for _, c := range o.Countries {
		codes = append(codes, c.ISO2)
	}
	return codes
}

// Address is a platform address.
type Address struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Company     string `json:"company,omitempty"`
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2,omitempty"` // house number
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"` // ISO 3166-1 alpha-2, any case
	Phone       string `json:"phone,omitempty"`
}

// FullName joins first and last name.
func (a Address) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	default:
		return a.FirstName + " " + a.LastName
	}
}

// Product carries the product metadata needed for customs and pricing.
type Product struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	Weight        float64 `json:"weight"` // grams
	HSCode        string  `json:"hs_code,omitempty"`
	OriginCountry string  `json:"origin_country,omitempty"`
}

// Variant is a purchasable variant of a product.
type Variant struct {
	ID      string  `json:"id"`
	Product Product `json:"product"`
}

// LineItem is a cart or order line.
type LineItem struct {
	ID        string  `json:"id"`
	Title     string  `json:"title,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unit_price"` // minor currency units
	Variant   Variant `json:"variant"`
}

// Cart is a checkout cart.
type Cart struct {
	ID              string     `json:"id"`
	Items           []LineItem `json:"items"`
	ShippingAddress *Address   `json:"shipping_address"`
}

// ShippingOption is the platform's shipping option; Data holds the
// fulfillment option it was created from.
type ShippingOption struct {
	ID   string            `json:"id"`
	Name string            `json:"name"`
	Data FulfillmentOption `json:"data"`
}

// ShippingMethod is a shipping option applied to a cart or order.
type ShippingMethod struct {
	ID             string         `json:"id"`
	ShippingOption ShippingOption `json:"shipping_option"`
}

// Order is a placed order.
type Order struct {
	ID              string           `json:"id"`
	DisplayID       int64            `json:"display_id"`
	Email           string           `json:"email"`
	CurrencyCode    string           `json:"currency_code,omitempty"`
	ShippingAddress *Address         `json:"shipping_address"`
	BillingAddress  *Address         `json:"billing_address"`
	ShippingMethods []ShippingMethod `json:"shipping_methods"`
}

// OrderRef points at the order a swap or claim belongs to.
type OrderRef struct {
	ID      string `json:"id,omitempty"`
	OrderID string `json:"order_id"`
}

// ReturnItem is an item being sent back.
type ReturnItem struct {
	ID          string `json:"id"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"` // minor currency units
}

// ReturnOrder is a return requested on the platform. The originating order
// is referenced directly, through a swap, or through a claim.
type ReturnOrder struct {
	ID         string       `json:"id"`
	OrderID    string       `json:"order_id,omitempty"`
	Swap       *OrderRef    `json:"swap,omitempty"`
	ClaimOrder *OrderRef    `json:"claim_order,omitempty"`
	Items      []ReturnItem `json:"items"`
}

// ParcelStatus is the carrier status of a parcel.
type ParcelStatus struct {
	ID      int    `json:"id"`
	Message string `json:"message"`
}

// IsFinal reports whether the status is the terminal cancelled state.
func (s ParcelStatus) IsFinal() bool {
	return s.ID == ParcelStatusCancelled
}

// ParcelItem is one line of a parcel's contents.
type ParcelItem struct {
	Description   string            `json:"description"`
	Quantity      int               `json:"quantity"`
	Weight        decimal.Decimal   `json:"weight"` // kg
	Value         decimal.Decimal   `json:"value"`  // major currency units
	HSCode        string            `json:"hs_code,omitempty"`
	OriginCountry string            `json:"origin_country,omitempty"`
	ProductID     string            `json:"product_id,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// Parcel is the carrier's record of a shipment.
type Parcel struct {
	ID                int64        `json:"id"`
	Name              string       `json:"name"`
	Email             string       `json:"email"`
	OrderNumber       string       `json:"order_number"`
	PostalCode        string       `json:"postal_code"`
	Country           string       `json:"country,omitempty"`
	TrackingNumber    string       `json:"tracking_number"`
	TrackingURL       string       `json:"tracking_url"`
	Status            ParcelStatus `json:"status"`
	ParcelItems       []ParcelItem `json:"parcel_items"`
	ExternalReference string       `json:"external_reference,omitempty"`
	CarrierCode       string       `json:"carrier_code,omitempty"`
	LabelURL          string       `json:"label_url,omitempty"`
	CreatedAt         string       `json:"date_created,omitempty"`
}

// Document is a document attached to a fulfillment.
type Document struct {
	Kind DocumentKind `json:"kind"`
	URL  string       `json:"url,omitempty"`
	Data []byte       `json:"data,omitempty"`
}

// ============================================================================
// Request/Response Types
// ============================================================================

// CalculatePriceRequest is the request for pricing a cart against an option.
type CalculatePriceRequest struct {
	Option FulfillmentOption `json:"option"`
	Data   Data              `json:"data,omitempty"`
	Cart   *Cart             `json:"cart"`
}

// Reasons a price could not be calculated.
const (
	ReasonExceedsMaxWeight = "exceeds_max_weight"
	ReasonNoQuote          = "no_quote"
)

// CalculatePriceResponse is the outcome of pricing. A price that cannot be
// calculated is a normal outcome: Calculable is false and Reason says why.
type CalculatePriceResponse struct {
	Amount      int64  `json:"amount"` // minor currency units
	Currency    string `json:"currency,omitempty"`
	Calculable  bool   `json:"calculable"`
	Reason      string `json:"reason,omitempty"`
	WeightGrams string `json:"weight_grams"`
}

// CreateFulfillmentRequest is the request for creating a fulfillment.
type CreateFulfillmentRequest struct {
	Data          Data       `json:"data,omitempty"`
	Items         []LineItem `json:"items"`
	Order         *Order     `json:"order"`
	FulfillmentID string     `json:"fulfillment_id,omitempty"`
}

// CreateFulfillmentResponse is the response from creating a fulfillment.
type CreateFulfillmentResponse struct {
	Parcel Parcel `json:"parcel"`
}

// CancelFulfillmentRequest identifies the parcel to cancel. Status is set
// when the request originates from a carrier notification.
type CancelFulfillmentRequest struct {
	ParcelID int64         `json:"id"`
	Status   *ParcelStatus `json:"status,omitempty"`
}

// CancelFulfillmentResponse is the response from cancelling a fulfillment.
type CancelFulfillmentResponse struct {
	ParcelID     int64  `json:"parcel_id"`
	AlreadyFinal bool   `json:"already_final"`
	Status       string `json:"status,omitempty"`
	Message      string `json:"message,omitempty"`
}

// CreateReturnRequest is the request for registering a return.
type CreateReturnRequest struct {
	Return ReturnOrder `json:"return_order"`
}

// CreateReturnResponse holds the payload that was sent to the carrier and
// the carrier's raw answer.
type CreateReturnResponse struct {
	OrderID string          `json:"order_id"`
	Payload any             `json:"payload"`
	Result  json.RawMessage `json:"result,omitempty"`
}
