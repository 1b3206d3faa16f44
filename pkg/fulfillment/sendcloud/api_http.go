package sendcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the Sendcloud REST API v2 endpoint.
const DefaultBaseURL = "https://panel.sendcloud.sc/api/v2"

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL     string
	token       string
	toCountry   string
	brandDomain string
	httpClient  *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL     string
	Token       string // pre-encoded Basic credential
	ToCountry   string // destination filter for shipping methods
	BrandDomain string // return portal brand
	Timeout     time.Duration
	HTTPClient  *http.Client // optional, overrides Timeout
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &HTTPAPIClient{
		baseURL:     baseURL,
		token:       cfg.Token,
		toCountry:   cfg.ToCountry,
		brandDomain: cfg.BrandDomain,
		httpClient:  httpClient,
	}
}

// GetShippingMethods lists shipping methods.
// GET /shipping_methods?to_country=..[&is_return=true]
func (c *HTTPAPIClient) GetShippingMethods(ctx context.Context, isReturn bool) (*ShippingMethodsResponse, error) {
	q := url.Values{}
	if c.toCountry != "" {
		q.Set("to_country", c.toCountry)
	}
	if isReturn {
		q.Set("is_return", "true")
	}

	var result ShippingMethodsResponse
	if err := c.getJSON(ctx, withQuery("/shipping_methods", q), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetContracts lists the carrier contracts.
// GET /contracts
func (c *HTTPAPIClient) GetContracts(ctx context.Context) (*ContractsResponse, error) {
	var result ContractsResponse
	if err := c.getJSON(ctx, "/contracts", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSenderAddresses lists the sender addresses.
// GET /user/addresses/sender
func (c *HTTPAPIClient) GetSenderAddresses(ctx context.Context) (*SenderAddressesResponse, error) {
	var result SenderAddressesResponse
	if err := c.getJSON(ctx, "/user/addresses/sender", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetShippingPrice fetches a price quote.
// GET /shipping-price
func (c *HTTPAPIClient) GetShippingPrice(ctx context.Context, req *PriceRequest) ([]PriceQuote, error) {
	var result []PriceQuote
	if err := c.getJSON(ctx, withQuery("/shipping-price", priceQuery(req)), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateParcel creates a parcel.
// POST /parcels
func (c *HTTPAPIClient) CreateParcel(ctx context.Context, req *ParcelRequest) (*ParcelResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/parcels", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.parseError(resp)
	}

	var result ParcelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode parcel response: %w", err)
	}
	return &result, nil
}

// CancelParcel cancels a parcel.
// POST /parcels/{id}/cancel
func (c *HTTPAPIClient) CancelParcel(ctx context.Context, parcelID int64) (*CancelResponse, error) {
	path := fmt.Sprintf("/parcels/%d/cancel", parcelID)

	resp, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 202 means the cancellation was queued, 200 that it happened.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, c.parseError(resp)
	}

	var result CancelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &CancelResponse{Status: "cancelled"}, nil
	}
	return &result, nil
}

// GetParcel retrieves a parcel.
// GET /parcels/{id}
func (c *HTTPAPIClient) GetParcel(ctx context.Context, parcelID int64) (*ParcelResponse, error) {
	var result ParcelResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/parcels/%d", parcelID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListParcels retrieves all parcels.
// GET /parcels
func (c *HTTPAPIClient) ListParcels(ctx context.Context) (*ParcelsResponse, error) {
	var result ParcelsResponse
	if err := c.getJSON(ctx, "/parcels", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateReturn registers an incoming return and returns the raw response.
// POST /brand/{brand_domain}/return-portal/incoming
func (c *HTTPAPIClient) CreateReturn(ctx context.Context, req *ReturnRequest) ([]byte, error) {
	if c.brandDomain == "" {
		return nil, &APIError{Code: "CONFIG", Message: "brand domain is not configured"}
	}
	path := fmt.Sprintf("/brand/%s/return-portal/incoming", url.PathEscape(c.brandDomain))

	resp, err := c.doRequest(ctx, http.MethodPost, path, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read return response: %w", err)
	}
	return body, nil
}

// getJSON performs a GET and decodes a 200 response into out.
func (c *HTTPAPIClient) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", strings.SplitN(path, "?", 2)[0], err)
	}
	return nil
}

// doRequest performs an HTTP request with proper headers and authentication.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+c.token)
	req.Header.Set("User-Agent", "sendcloud-fulfillment/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Code: "TRANSPORT", Message: err.Error()}
	}
	return resp, nil
}

// parseError extracts error information from an HTTP response.
// Sendcloud wraps errors as {"error": {"code": .., "message": ..}}.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error struct {
			Code    json.RawMessage `json:"code"`
			Message string          `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		code := strings.Trim(string(envelope.Error.Code), `"`)
		if code == "" || code == "null" {
			code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       code,
			Message:    envelope.Error.Message,
		}
	}

	// Try to parse as a simple error message
	var simpleErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &simpleErr); err == nil {
		msg := simpleErr.Error
		if msg == "" {
			msg = simpleErr.Message
		}
		if msg != "" {
			return &APIError{
				StatusCode: resp.StatusCode,
				Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
				Message:    msg,
			}
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    string(body),
	}
}

func priceQuery(req *PriceRequest) url.Values {
	q := url.Values{}
	q.Set("shipping_method_id", strconv.FormatInt(req.ShippingMethodID, 10))
	if req.FromCountry != "" {
		q.Set("from_country", req.FromCountry)
	}
	if req.FromPostalCode != "" {
		q.Set("from_postal_code", req.FromPostalCode)
	}
	q.Set("to_country", req.ToCountry)
	q.Set("to_postal_code", req.ToPostalCode)
	q.Set("weight", req.Weight.String())
	unit := req.WeightUnit
	if unit == "" {
		unit = WeightUnitGram
	}
	q.Set("weight_unit", unit)
	if req.ContractID != nil {
		q.Set("contract", strconv.FormatInt(*req.ContractID, 10))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
