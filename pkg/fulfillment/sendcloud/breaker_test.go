package sendcloud_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment/sendcloud"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func TestBreakerAPIClient_OpensOnServerErrors(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	breaker := sendcloud.NewBreakerAPIClient(mockAPI, sendcloud.BreakerConfig{
		FailureThreshold: 2,
		Timeout:          time.Minute,
	}, otelzap.New(zap.NewNop()))
	ctx := context.Background()

	_, err := breaker.ListParcels(ctx)
	require.Error(t, err)
	_, err = breaker.ListParcels(ctx)
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	_, err = breaker.ListParcels(ctx)
	var apiErr *sendcloud.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "CIRCUIT_OPEN", apiErr.Code)
	assert.Contains(t, apiErr.Message, "breaker open")
	assert.Equal(t, 2, mockAPI.Calls(sendcloud.CallListParcels), "open breaker must not reach the carrier")
}

func TestBreakerAPIClient_ClientErrorsDoNotTrip(t *testing.T) {
	mockAPI := sendcloud.NewMockAPIClient()
	mockAPI.OnCancelParcel = func(ctx context.Context, parcelID int64) (*sendcloud.CancelResponse, error) {
		return nil, &sendcloud.APIError{StatusCode: 410, Code: "410", Message: "gone"}
	}
	breaker := sendcloud.NewBreakerAPIClient(mockAPI, sendcloud.BreakerConfig{FailureThreshold: 1}, nil)

	for i := 0; i < 3; i++ {
		_, err := breaker.CancelParcel(context.Background(), 1)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, breaker.State())
	assert.Equal(t, 3, mockAPI.Calls(sendcloud.CallCancelParcel))
}

func TestBreakerAPIClient_PassesResults(t *testing.T) {
	breaker := sendcloud.NewBreakerAPIClient(sendcloud.NewMockAPIClient(), sendcloud.BreakerConfig{}, nil)

	resp, err := breaker.GetContracts(context.Background())

	require.NoError(t, err)
	require.Len(t, resp.Contracts, 1)
	assert.Equal(t, int64(42), resp.Contracts[0].ID)
}
