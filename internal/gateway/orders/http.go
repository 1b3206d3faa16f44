package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
)

// StatusError is a non-2xx answer from the platform.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform returned %d: %s", e.StatusCode, e.Body)
}

// HTTPGateway reads orders from the platform admin API.
type HTTPGateway struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPGateway creates a gateway for the platform at baseURL.
func NewHTTPGateway(baseURL, token string, timeout time.Duration) *HTTPGateway {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetByID fetches GET /admin/orders/{id}.
func (g *HTTPGateway) GetByID(ctx context.Context, id string) (*fulfillment.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/admin/orders/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", fulfillment.ErrOrderNotFound, id)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Order *fulfillment.Order `json:"order"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	if payload.Order == nil {
		return nil, fmt.Errorf("%w: %s", fulfillment.ErrOrderNotFound, id)
	}
	return payload.Order, nil
}
