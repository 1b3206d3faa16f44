package sendcloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// BreakerConfig configures BreakerAPIClient.
type BreakerConfig struct {
	MaxRequests      uint32        // requests allowed while half-open
	Interval         time.Duration // closed-state counter reset period
	Timeout          time.Duration // open-state duration
	FailureThreshold uint32        // consecutive failures before opening
}

// BreakerAPIClient wraps an APIClient with a circuit breaker. Client errors
// (4xx) do not count against the carrier.
type BreakerAPIClient struct {
	next APIClient
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerAPIClient wraps next in a circuit breaker.
func NewBreakerAPIClient(next APIClient, cfg BreakerConfig, logger *otelzap.Logger) *BreakerAPIClient {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "sendcloud",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}
		},
	}

	return &BreakerAPIClient{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// State returns the current breaker state.
func (b *BreakerAPIClient) State() gobreaker.State {
	return b.cb.State()
}

func execute[T any](b *BreakerAPIClient, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &APIError{Code: "CIRCUIT_OPEN", Message: fmt.Sprintf("%v; breaker %s", err, b.State())}
		}
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

func (b *BreakerAPIClient) GetShippingMethods(ctx context.Context, isReturn bool) (*ShippingMethodsResponse, error) {
	return execute(b, func() (*ShippingMethodsResponse, error) { return b.next.GetShippingMethods(ctx, isReturn) })
}

func (b *BreakerAPIClient) GetContracts(ctx context.Context) (*ContractsResponse, error) {
	return execute(b, func() (*ContractsResponse, error) { return b.next.GetContracts(ctx) })
}

func (b *BreakerAPIClient) GetSenderAddresses(ctx context.Context) (*SenderAddressesResponse, error) {
	return execute(b, func() (*SenderAddressesResponse, error) { return b.next.GetSenderAddresses(ctx) })
}

func (b *BreakerAPIClient) GetShippingPrice(ctx context.Context, req *PriceRequest) ([]PriceQuote, error) {
	return execute(b, func() ([]PriceQuote, error) { return b.next.GetShippingPrice(ctx, req) })
}

func (b *BreakerAPIClient) CreateParcel(ctx context.Context, req *ParcelRequest) (*ParcelResponse, error) {
	return execute(b, func() (*ParcelResponse, error) { return b.next.CreateParcel(ctx, req) })
}

func (b *BreakerAPIClient) CancelParcel(ctx context.Context, parcelID int64) (*CancelResponse, error) {
	return execute(b, func() (*CancelResponse, error) { return b.next.CancelParcel(ctx, parcelID) })
}

func (b *BreakerAPIClient) GetParcel(ctx context.Context, parcelID int64) (*ParcelResponse, error) {
	return execute(b, func() (*ParcelResponse, error) { return b.next.GetParcel(ctx, parcelID) })
}

func (b *BreakerAPIClient) ListParcels(ctx context.Context) (*ParcelsResponse, error) {
	return execute(b, func() (*ParcelsResponse, error) { return b.next.ListParcels(ctx) })
}

func (b *BreakerAPIClient) CreateReturn(ctx context.Context, req *ReturnRequest) ([]byte, error) {
	return execute(b, func() ([]byte, error) { return b.next.CreateReturn(ctx, req) })
}

var _ APIClient = (*BreakerAPIClient)(nil)
