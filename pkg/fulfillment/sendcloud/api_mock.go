package sendcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Endpoint names used by MockAPIClient.Calls.
const (
	CallGetShippingMethods = "GetShippingMethods"
	CallGetContracts       = "GetContracts"
	CallGetSenderAddresses = "GetSenderAddresses"
	CallGetShippingPrice   = "GetShippingPrice"
	CallCreateParcel       = "CreateParcel"
	CallCancelParcel       = "CancelParcel"
	CallGetParcel          = "GetParcel"
	CallListParcels        = "ListParcels"
	CallCreateReturn       = "CreateReturn"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetShippingMethods func(ctx context.Context, isReturn bool) (*ShippingMethodsResponse, error)
	OnGetContracts       func(ctx context.Context) (*ContractsResponse, error)
	OnGetSenderAddresses func(ctx context.Context) (*SenderAddressesResponse, error)
	OnGetShippingPrice   func(ctx context.Context, req *PriceRequest) ([]PriceQuote, error)
	OnCreateParcel       func(ctx context.Context, req *ParcelRequest) (*ParcelResponse, error)
	OnCancelParcel       func(ctx context.Context, parcelID int64) (*CancelResponse, error)
	OnGetParcel          func(ctx context.Context, parcelID int64) (*ParcelResponse, error)
	OnListParcels        func(ctx context.Context) (*ParcelsResponse, error)
	OnCreateReturn       func(ctx context.Context, req *ReturnRequest) ([]byte, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{calls: make(map[string]int)}
}

// Calls returns how many times the named endpoint was invoked.
func (m *MockAPIClient) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls returns the number of endpoint invocations of any kind.
func (m *MockAPIClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// enter records a call and applies the simulated latency and error.
func (m *MockAPIClient) enter(name string) error {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
	m.mu.Unlock()

	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return &APIError{StatusCode: 500, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	return nil
}

// GetShippingMethods returns mock shipping methods.
func (m *MockAPIClient) GetShippingMethods(ctx context.Context, isReturn bool) (*ShippingMethodsResponse, error) {
	if err := m.enter(CallGetShippingMethods); err != nil {
		return nil, err
	}
	if m.OnGetShippingMethods != nil {
		return m.OnGetShippingMethods(ctx, isReturn)
	}

	nl := []Country{{ID: 1, Name: "Netherlands", ISO2: "NL", ISO3: "NLD", Price: decimal.RequireFromString("5.25")}}
	if isReturn {
		return &ShippingMethodsResponse{ShippingMethods: []ShippingMethod{
			{ID: 1316, Name: "PostNL Return", Carrier: "postnl", MaxWeight: decimal.NewFromInt(23), Countries: nl},
		}}, nil
	}
	return &ShippingMethodsResponse{ShippingMethods: []ShippingMethod{
		{ID: 8, Name: "Unstamped letter", Carrier: "sendcloud", MaxWeight: decimal.RequireFromString("2.001"), Countries: nl},
		{ID: 1315, Name: "PostNL Standard 0-23kg", Carrier: "postnl", MaxWeight: decimal.NewFromInt(23), Countries: nl},
	}}, nil
}

// GetContracts returns a single active mock contract.
func (m *MockAPIClient) GetContracts(ctx context.Context) (*ContractsResponse, error) {
	if err := m.enter(CallGetContracts); err != nil {
		return nil, err
	}
	if m.OnGetContracts != nil {
		return m.OnGetContracts(ctx)
	}
	return &ContractsResponse{Contracts: []Contract{
		{ID: 42, Country: "NL", Carrier: ContractCarrier{Code: "postnl", Name: "PostNL"}, IsActive: true},
	}}, nil
}

// GetSenderAddresses returns a single mock sender address.
func (m *MockAPIClient) GetSenderAddresses(ctx context.Context) (*SenderAddressesResponse, error) {
	if err := m.enter(CallGetSenderAddresses); err != nil {
		return nil, err
	}
	if m.OnGetSenderAddresses != nil {
		return m.OnGetSenderAddresses(ctx)
	}
	return &SenderAddressesResponse{SenderAddresses: []SenderAddress{
		{ID: 1, CompanyName: "Tournevent", Street: "Stadhuisplein", HouseNumber: "10", PostalCode: "5611EM", City: "Eindhoven", Country: "NL"},
	}}, nil
}

// GetShippingPrice returns a mock quote.
func (m *MockAPIClient) GetShippingPrice(ctx context.Context, req *PriceRequest) ([]PriceQuote, error) {
	if err := m.enter(CallGetShippingPrice); err != nil {
		return nil, err
	}
	if m.OnGetShippingPrice != nil {
		return m.OnGetShippingPrice(ctx, req)
	}
	price := decimal.RequireFromString("6.95")
	return []PriceQuote{{Price: &price, Currency: "EUR", ToCountry: req.ToCountry}}, nil
}

// CreateParcel creates a mock parcel.
func (m *MockAPIClient) CreateParcel(ctx context.Context, req *ParcelRequest) (*ParcelResponse, error) {
	if err := m.enter(CallCreateParcel); err != nil {
		return nil, err
	}
	if m.OnCreateParcel != nil {
		return m.OnCreateParcel(ctx, req)
	}

	p := req.Parcel
	tracking := "3S" + uuid.New().String()[:12]
	return &ParcelResponse{Parcel: Parcel{
		ID:                time.Now().UnixNano() % 1000000000,
		Name:              p.Name,
		CompanyName:       p.CompanyName,
		Address:           p.Address,
		HouseNumber:       p.HouseNumber,
		City:              p.City,
		PostalCode:        p.PostalCode,
		Country:           ParcelCountry{ISO2: p.Country},
		Email:             p.Email,
		Telephone:         p.Telephone,
		OrderNumber:       p.OrderNumber,
		ExternalReference: p.ExternalReference,
		TrackingNumber:    tracking,
		TrackingURL:       fmt.Sprintf("https://tracking.sendcloud.sc/forward?carrier=postnl&code=%s", tracking),
		Status:            ParcelStatus{ID: 1000, Message: "Ready to send"},
		ParcelItems:       p.ParcelItems,
		Carrier:           &ParcelCarrier{Code: "postnl"},
		DateCreated:       time.Now().Format("02-01-2006 15:04:05"),
	}}, nil
}

// CancelParcel cancels a mock parcel.
func (m *MockAPIClient) CancelParcel(ctx context.Context, parcelID int64) (*CancelResponse, error) {
	if err := m.enter(CallCancelParcel); err != nil {
		return nil, err
	}
	if m.OnCancelParcel != nil {
		return m.OnCancelParcel(ctx, parcelID)
	}
	return &CancelResponse{Status: "cancelled", Message: "Parcel has been cancelled"}, nil
}

// GetParcel returns a mock parcel.
func (m *MockAPIClient) GetParcel(ctx context.Context, parcelID int64) (*ParcelResponse, error) {
	if err := m.enter(CallGetParcel); err != nil {
		return nil, err
	}
	if m.OnGetParcel != nil {
		return m.OnGetParcel(ctx, parcelID)
	}
	return &ParcelResponse{Parcel: Parcel{
		ID:     parcelID,
		Status: ParcelStatus{ID: 1000, Message: "Ready to send"},
	}}, nil
}

// ListParcels returns mock parcels.
func (m *MockAPIClient) ListParcels(ctx context.Context) (*ParcelsResponse, error) {
	if err := m.enter(CallListParcels); err != nil {
		return nil, err
	}
	if m.OnListParcels != nil {
		return m.OnListParcels(ctx)
	}
	return &ParcelsResponse{Parcels: []Parcel{
		{ID: 1001, Name: "Ada Lovelace", Email: "ada@example.com", OrderNumber: "17", PostalCode: "1012AB",
			TrackingNumber: "3SABC1", Status: ParcelStatus{ID: 1000, Message: "Ready to send"}},
		{ID: 1002, Name: "Alan Turing", Email: "alan@example.com", OrderNumber: "18", PostalCode: "3511CD",
			TrackingNumber: "3SABC2", Status: ParcelStatus{ID: 2000, Message: "Cancelled"}},
	}}, nil
}

// CreateReturn echoes a mock return registration.
func (m *MockAPIClient) CreateReturn(ctx context.Context, req *ReturnRequest) ([]byte, error) {
	if err := m.enter(CallCreateReturn); err != nil {
		return nil, err
	}
	if m.OnCreateReturn != nil {
		return m.OnCreateReturn(ctx, req)
	}
	return json.Marshal(map[string]any{
		"return": map[string]any{"id": uuid.New().String(), "status": "created"},
	})
}

var _ APIClient = (*MockAPIClient)(nil)
