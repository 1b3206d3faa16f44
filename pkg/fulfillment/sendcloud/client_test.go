package sendcloud_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment/sendcloud"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockClient *sendcloud.MockAPIClient) *sendcloud.Client {
	logger := otelzap.New(zap.NewNop())
	return sendcloud.NewWithAPIClient(
		sendcloud.Config{ToCountry: "NL"},
		mockClient,
		nil,
		logger,
		nil,
	)
}

func testOrder() *fulfillment.Order {
	return &fulfillment.Order{
		ID:        "order_01",
		DisplayID: 17,
		Email:     "ada@example.com",
		ShippingAddress: &fulfillment.Address{
			FirstName:   "Ada",
			LastName:    "Lovelace",
			Address1:    "Damrak",
			Address2:    "1",
			City:        "Amsterdam",
			PostalCode:  "1012LG",
			CountryCode: "nl",
		},
		BillingAddress: &fulfillment.Address{Phone: "+31201234567"},
		ShippingMethods: []fulfillment.ShippingMethod{
			{ShippingOption: fulfillment.ShippingOption{Data: fulfillment.FulfillmentOption{ID: 1315, Name: "PostNL Standard"}}},
		},
	}
}

func TestClient_Identifier(t *testing.T) {
	client := newTestClient(sendcloud.NewMockAPIClient())
	assert.Equal(t, "sendcloud-fulfillment", client.Identifier())
}

func TestClient_GetFulfillmentOptions_TagsReturnMethods(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	client := newTestClient(mockAPI)

	options, err := client.GetFulfillmentOptions(context.Background())

	require.NoError(t, err)
	require.Len(t, options, 3)
	assert.Equal(t, int64(8), options[0].ID)
	assert.False(t, options[0].IsReturn)
	assert.Equal(t, int64(1316), options[2].ID)
	assert.True(t, options[2].IsReturn)
	assert.Equal(t, 2, mockAPI.Calls(sendcloud.CallGetShippingMethods))
}

func TestClient_GetFulfillmentOptions_ReturnWinsOnCollision(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	mockAPI.OnGetShippingMethods = func(ctx context.Context, isReturn bool) (*sendcloud.ShippingMethodsResponse, error) {
		if isReturn {
			return &sendcloud.ShippingMethodsResponse{ShippingMethods: []sendcloud.ShippingMethod{
				{ID: 2, Name: "two-return"},
				{ID: 3, Name: "three-return"},
			}}, nil
		}
		return &sendcloud.ShippingMethodsResponse{ShippingMethods: []sendcloud.ShippingMethod{
			{ID: 1, Name: "one"},
			{ID: 2, Name: "two"},
		}}, nil
	}
	client := newTestClient(mockAPI)

	options, err := client.GetFulfillmentOptions(context.Background())

	require.NoError(t, err)
	require.Len(t, options, 3)

	seen := map[int64]int{}
	for _, o := range options {
		seen[o.ID]++
	}
	assert.Equal(t, map[int64]int{1: 1, 2: 1, 3: 1}, seen)

	assert.Equal(t, "two-return", options[1].Name)
	assert.True(t, options[1].IsReturn)
	assert.False(t, options[0].IsReturn)
}

func TestClient_GetFulfillmentOptions_APIError(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.GetFulfillmentOptions(context.Background())

	require.Error(t, err)
	var apiErr *sendcloud.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.True(t, fulfillment.IsRetryable(err))
}

func TestClient_ValidateOption(t *testing.T) {
	client := newTestClient(sendcloud.NewMockAPIClient())
	ctx := context.Background()

	ok, err := client.ValidateOption(ctx, fulfillment.FulfillmentOption{ID: 1315})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.ValidateOption(ctx, fulfillment.FulfillmentOption{ID: 99999})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = client.CanCalculate(ctx, fulfillment.FulfillmentOption{ID: 1316})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_ValidateFulfillmentData_OptionWins(t *testing.T) {
	client := newTestClient(sendcloud.NewMockAPIClient())

	merged, err := client.ValidateFulfillmentData(context.Background(),
		fulfillment.Data{"id": 1315, "name": "option"},
		fulfillment.Data{"name": "data", "service_point": "42"},
		nil,
	)

	require.NoError(t, err)
	assert.Equal(t, fulfillment.Data{"id": 1315, "name": "option", "service_point": "42"}, merged)
}

func TestClient_CreateFulfillment_BuildsParcel(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	var sent *sendcloud.ParcelRequest
	mockAPI.OnCreateParcel = func(ctx context.Context, req *sendcloud.ParcelRequest) (*sendcloud.ParcelResponse, error) {
		sent = req
		return &sendcloud.ParcelResponse{Parcel: sendcloud.Parcel{
			ID:             555,
			TrackingNumber: "3SXYZ",
			Status:         sendcloud.ParcelStatus{ID: 1000, Message: "Ready to send"},
			Carrier:        &sendcloud.ParcelCarrier{Code: "postnl"},
			Label:          &sendcloud.ParcelLabel{NormalPrinter: []string{"https://label/1"}},
		}}, nil
	}
	client := newTestClient(mockAPI)

	items := []fulfillment.LineItem{
		{
			Quantity:  2,
			UnitPrice: 1999,
			Variant: fulfillment.Variant{Product: fulfillment.Product{
				ID: "prod_1", Title: "Pen", Description: "golden", Weight: 250, HSCode: "9608", OriginCountry: "NL",
			}},
		},
	}

	resp, err := client.CreateFulfillment(context.Background(), &fulfillment.CreateFulfillmentRequest{
		Items: items,
		Order: testOrder(),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(555), resp.Parcel.ID)
	assert.Equal(t, "postnl", resp.Parcel.CarrierCode)
	assert.Equal(t, "https://label/1", resp.Parcel.LabelURL)

	require.NotNil(t, sent)
	p := sent.Parcel
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Equal(t, "Damrak", p.Address)
	assert.Equal(t, "1", p.HouseNumber)
	assert.Equal(t, "NL", p.Country)
	assert.Equal(t, "+31201234567", p.Telephone)
	assert.Equal(t, "17", p.OrderNumber)
	assert.Equal(t, "order_01", p.ExternalReference)
	assert.Equal(t, "PostNL Standard", p.ShippingMethodCheckoutName)
	require.NotNil(t, p.Shipment)
	assert.Equal(t, int64(1315), p.Shipment.ID)
	assert.True(t, p.RequestLabel)

	require.Len(t, p.ParcelItems, 1)
	item := p.ParcelItems[0]
	assert.Equal(t, "Pen - golden", item.Description)
	assert.True(t, decimal.RequireFromString("0.25").Equal(item.Weight), "weight is sent in kg")
	assert.True(t, decimal.RequireFromString("19.99").Equal(item.Value))
	assert.Equal(t, "Pen", item.Properties["title"])
	assert.Equal(t, "prod_1", item.ProductID)
}

func TestClient_CreateFulfillment_APIErrorIsSurfaced(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	mockAPI.OnCreateParcel = func(ctx context.Context, req *sendcloud.ParcelRequest) (*sendcloud.ParcelResponse, error) {
		return nil, &sendcloud.APIError{StatusCode: 400, Code: "400", Message: "invalid country"}
	}
	client := newTestClient(mockAPI)

	resp, err := client.CreateFulfillment(context.Background(), &fulfillment.CreateFulfillmentRequest{Order: testOrder()})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, fulfillment.ErrParcelNotCreated))
	assert.False(t, fulfillment.IsRetryable(err))

	var fErr *fulfillment.FulfillmentError
	require.True(t, errors.As(err, &fErr))
	assert.Equal(t, 400, fErr.StatusCode)
}

func TestClient_CreateFulfillment_RequiresOrder(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	client := newTestClient(mockAPI)

	_, err := client.CreateFulfillment(context.Background(), &fulfillment.CreateFulfillmentRequest{})

	assert.True(t, errors.Is(err, fulfillment.ErrInvalidRequest))
	assert.Zero(t, mockAPI.TotalCalls())
}

func TestClient_CancelFulfillment_AlreadyCancelled(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	client := newTestClient(mockAPI)

	resp, err := client.CancelFulfillment(context.Background(), &fulfillment.CancelFulfillmentRequest{
		ParcelID: 123,
		Status:   &fulfillment.ParcelStatus{ID: 2000, Message: "Cancelled"},
	})

	require.NoError(t, err)
	assert.True(t, resp.AlreadyFinal)
	assert.Equal(t, 0, mockAPI.Calls(sendcloud.CallCancelParcel))
}

func TestClient_CancelFulfillment_CallsCarrier(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	var cancelled int64
	mockAPI.OnCancelParcel = func(ctx context.Context, parcelID int64) (*sendcloud.CancelResponse, error) {
		cancelled = parcelID
		return &sendcloud.CancelResponse{Status: "queued", Message: "Parcel cancellation has been queued"}, nil
	}
	client := newTestClient(mockAPI)

	resp, err := client.CancelFulfillment(context.Background(), &fulfillment.CancelFulfillmentRequest{
		ParcelID: 123,
		Status:   &fulfillment.ParcelStatus{ID: 1000},
	})

	require.NoError(t, err)
	assert.False(t, resp.AlreadyFinal)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, int64(123), cancelled)
	assert.Equal(t, 1, mockAPI.Calls(sendcloud.CallCancelParcel))
}

func TestClient_CancelFulfillment_Errors(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	client := newTestClient(mockAPI)
	ctx := context.Background()

	_, err := client.CancelFulfillment(ctx, &fulfillment.CancelFulfillmentRequest{})
	assert.True(t, errors.Is(err, fulfillment.ErrInvalidRequest))

	mockAPI.SimulateErrors = true
	_, err = client.CancelFulfillment(ctx, &fulfillment.CancelFulfillmentRequest{ParcelID: 7})
	assert.True(t, errors.Is(err, fulfillment.ErrCancelFailed))
}

func TestClient_ListParcels(t *testing.T) {
	client := newTestClient(sendcloud.NewMockAPIClient())

	parcels, err := client.ListParcels(context.Background())

	require.NoError(t, err)
	require.Len(t, parcels, 2)
	assert.Equal(t, "ada@example.com", parcels[0].Email)
	assert.True(t, parcels[1].Status.IsFinal())
}

func TestClient_GetParcel(t *testing.T) {
	client := newTestClient(sendcloud.NewMockAPIClient())

	parcel, err := client.GetParcel(context.Background(), 12)

	require.NoError(t, err)
	assert.Equal(t, int64(12), parcel.ID)
	assert.Equal(t, 1000, parcel.Status.ID)
}

func TestClient_GetParcel_EmptyResponse(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	mockAPI.OnGetParcel = func(ctx context.Context, parcelID int64) (*sendcloud.ParcelResponse, error) {
		return nil, nil
	}
	client := newTestClient(mockAPI)

	parcel, err := client.GetParcel(context.Background(), 12)

	assert.Nil(t, parcel)
	assert.True(t, errors.Is(err, fulfillment.ErrParcelNotFound))
}

func TestClient_Documents_NotImplemented(t *testing.T) {
	client := newTestClient(sendcloud.NewMockAPIClient())
	ctx := context.Background()

	_, err := client.GetFulfillmentDocuments(ctx, nil)
	assert.True(t, errors.Is(err, fulfillment.ErrNotImplemented))
	_, err = client.GetReturnDocuments(ctx, nil)
	assert.True(t, errors.Is(err, fulfillment.ErrNotImplemented))
	_, err = client.GetShipmentDocuments(ctx, nil)
	assert.True(t, errors.Is(err, fulfillment.ErrNotImplemented))
	_, err = client.RetrieveDocuments(ctx, nil, fulfillment.DocumentLabel)
	assert.True(t, errors.Is(err, fulfillment.ErrNotImplemented))
}

type staticOrders map[string]*fulfillment.Order

func (s staticOrders) GetByID(ctx context.Context, id string) (*fulfillment.Order, error) {
	if o, ok := s[id]; ok {
		return o, nil
	}
	return nil, fulfillment.ErrOrderNotFound
}

func TestClient_CreateReturn_ResolvesSwapFirst(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	var sent *sendcloud.ReturnRequest
	mockAPI.OnCreateReturn = func(ctx context.Context, req *sendcloud.ReturnRequest) ([]byte, error) {
		sent = req
		return []byte(`{"return":{"id":9}}`), nil
	}

	order := testOrder()
	order.ID = "order_swap"
	client := sendcloud.NewWithAPIClient(
		sendcloud.Config{},
		mockAPI,
		staticOrders{"order_swap": order},
		otelzap.New(zap.NewNop()),
		nil,
	)

	resp, err := client.CreateReturn(context.Background(), &fulfillment.CreateReturnRequest{
		Return: fulfillment.ReturnOrder{
			ID:         "ret_1",
			OrderID:    "order_direct",
			Swap:       &fulfillment.OrderRef{OrderID: "order_swap"},
			ClaimOrder: &fulfillment.OrderRef{OrderID: "order_claim"},
			Items:      []fulfillment.ReturnItem{{ID: "item_1", Quantity: 1, Description: "Pen", Price: 1999}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "order_swap", resp.OrderID)
	assert.JSONEq(t, `{"return":{"id":9}}`, string(resp.Result))

	require.NotNil(t, sent)
	assert.Equal(t, 0, sent.Reason)
	require.NotNil(t, sent.ServicePoint)
	assert.Equal(t, int64(10875349), sent.ServicePoint.ID)
	assert.Equal(t, "money", sent.Refund.RefundType.Code)
	assert.Equal(t, "drop_off_point", sent.DeliveryOption)
	assert.Equal(t, "NL", sent.IncomingParcel.FromCountry)
	assert.Equal(t, "Ada Lovelace", sent.IncomingParcel.FromName)
	assert.Equal(t, "ada@example.com", sent.IncomingParcel.FromEmail)
	require.Len(t, sent.Products, 1)
	assert.True(t, decimal.RequireFromString("19.99").Equal(sent.Products[0].Value))

	payload, err := json.Marshal(resp.Payload)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"first_mile":"dropoff"`)
}

func TestClient_CreateReturn_ClaimThenDirect(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	orders := staticOrders{"order_claim": testOrder(), "order_direct": testOrder()}
	client := sendcloud.NewWithAPIClient(sendcloud.Config{}, mockAPI, orders, otelzap.New(zap.NewNop()), nil)
	ctx := context.Background()

	resp, err := client.CreateReturn(ctx, &fulfillment.CreateReturnRequest{Return: fulfillment.ReturnOrder{
		OrderID:    "order_direct",
		ClaimOrder: &fulfillment.OrderRef{OrderID: "order_claim"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "order_claim", resp.OrderID)

	resp, err = client.CreateReturn(ctx, &fulfillment.CreateReturnRequest{Return: fulfillment.ReturnOrder{
		OrderID: "order_direct",
	}})
	require.NoError(t, err)
	assert.Equal(t, "order_direct", resp.OrderID)
}

func TestClient_CreateReturn_OrderNotFound(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	client := sendcloud.NewWithAPIClient(sendcloud.Config{}, mockAPI, staticOrders{}, otelzap.New(zap.NewNop()), nil)

	_, err := client.CreateReturn(context.Background(), &fulfillment.CreateReturnRequest{Return: fulfillment.ReturnOrder{OrderID: "missing"}})

	assert.True(t, errors.Is(err, fulfillment.ErrOrderNotFound))
	assert.Equal(t, 0, mockAPI.Calls(sendcloud.CallCreateReturn))
}
