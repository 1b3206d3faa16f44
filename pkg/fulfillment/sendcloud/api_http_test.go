package sendcloud_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment/sendcloud"
)

func newHTTPTestClient(t *testing.T, handler http.HandlerFunc) *sendcloud.HTTPAPIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return sendcloud.NewHTTPAPIClient(sendcloud.HTTPAPIClientConfig{
		BaseURL:     srv.URL,
		Token:       "dG9rZW46c2VjcmV0",
		ToCountry:   "NL",
		BrandDomain: "tournevent",
	})
}

func TestHTTPAPIClient_GetShippingMethods(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/shipping_methods", r.URL.Path)
		assert.Equal(t, "NL", r.URL.Query().Get("to_country"))
		assert.Equal(t, "true", r.URL.Query().Get("is_return"))
		assert.Equal(t, "Basic dG9rZW46c2VjcmV0", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		_, _ = io.WriteString(w, `{"shipping_methods":[{"id":1316,"name":"PostNL Return","carrier":"postnl","max_weight":"23.001","countries":[{"iso_2":"NL","price":5.25}]}]}`)
	})

	resp, err := client.GetShippingMethods(context.Background(), true)

	require.NoError(t, err)
	require.Len(t, resp.ShippingMethods, 1)
	m := resp.ShippingMethods[0]
	assert.Equal(t, int64(1316), m.ID)
	assert.True(t, decimal.RequireFromString("23.001").Equal(m.MaxWeight))
	assert.Equal(t, "NL", m.Countries[0].ISO2)
}

func TestHTTPAPIClient_GetShippingPrice_Query(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/shipping-price", r.URL.Path)
		assert.Equal(t, "1315", q.Get("shipping_method_id"))
		assert.Equal(t, "NL", q.Get("from_country"))
		assert.Equal(t, "BE", q.Get("to_country"))
		assert.Equal(t, "1000", q.Get("weight"))
		assert.Equal(t, "gram", q.Get("weight_unit"))
		assert.Equal(t, "42", q.Get("contract"))
		assert.False(t, q.Has("from_postal_code"))

		_, _ = io.WriteString(w, `[{"price":"12.34","currency":"EUR","to_country":"BE"}]`)
	})

	contract := int64(42)
	quotes, err := client.GetShippingPrice(context.Background(), &sendcloud.PriceRequest{
		ShippingMethodID: 1315,
		FromCountry:      "NL",
		ToCountry:        "BE",
		ToPostalCode:     "1000",
		Weight:           decimal.NewFromInt(1000),
		WeightUnit:       sendcloud.WeightUnitGram,
		ContractID:       &contract,
	})

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.NotNil(t, quotes[0].Price)
	assert.Equal(t, "12.34", quotes[0].Price.String())
}

func TestHTTPAPIClient_GetShippingPrice_NullPrice(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"price":null,"currency":null,"to_country":"NL"}]`)
	})

	quotes, err := client.GetShippingPrice(context.Background(), &sendcloud.PriceRequest{ShippingMethodID: 8, ToCountry: "NL"})

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Nil(t, quotes[0].Price)
}

func TestHTTPAPIClient_CreateParcel(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/parcels", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ada Lovelace", body["parcel"]["name"])
		assert.Equal(t, true, body["parcel"]["request_label"])

		_, _ = io.WriteString(w, `{"parcel":{"id":555,"tracking_number":"3SXYZ","status":{"id":1000,"message":"Ready to send"},"country":{"iso_2":"NL"}}}`)
	})

	resp, err := client.CreateParcel(context.Background(), &sendcloud.ParcelRequest{Parcel: sendcloud.NewParcel{
		Name:         "Ada Lovelace",
		RequestLabel: true,
	}})

	require.NoError(t, err)
	assert.Equal(t, int64(555), resp.Parcel.ID)
	assert.Equal(t, 1000, resp.Parcel.Status.ID)
	assert.Equal(t, "NL", resp.Parcel.Country.ISO2)
}

func TestHTTPAPIClient_CancelParcel(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/parcels/555/cancel", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"status":"queued","message":"Parcel cancellation has been queued"}`)
	})

	resp, err := client.CancelParcel(context.Background(), 555)

	require.NoError(t, err)
	assert.Equal(t, "queued", resp.Status)
}

func TestHTTPAPIClient_ErrorEnvelope(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = io.WriteString(w, `{"error":{"code":410,"request":"api/v2/parcels/555/cancel","message":"Shipped parcels, or parcels being shipped, can no longer be cancelled."}}`)
	})

	_, err := client.CancelParcel(context.Background(), 555)

	require.Error(t, err)
	var apiErr *sendcloud.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusGone, apiErr.StatusCode)
	assert.Equal(t, "410", apiErr.Code)
	assert.Contains(t, apiErr.Message, "can no longer be cancelled")
	assert.False(t, apiErr.Temporary())
}

func TestHTTPAPIClient_ErrorRawBody(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	})

	_, err := client.ListParcels(context.Background())

	var apiErr *sendcloud.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "HTTP_502", apiErr.Code)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.True(t, apiErr.Temporary())
}

func TestHTTPAPIClient_CreateReturn(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/brand/tournevent/return-portal/incoming", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"return":{"id":9}}`)
	})

	body, err := client.CreateReturn(context.Background(), &sendcloud.ReturnRequest{DeliveryOption: "drop_off_point"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"return":{"id":9}}`, string(body))
}

func TestHTTPAPIClient_CreateReturn_RequiresBrand(t *testing.T) {
	client := sendcloud.NewHTTPAPIClient(sendcloud.HTTPAPIClientConfig{BaseURL: "http://127.0.0.1:1"})

	_, err := client.CreateReturn(context.Background(), &sendcloud.ReturnRequest{})

	var apiErr *sendcloud.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "CONFIG", apiErr.Code)
}
