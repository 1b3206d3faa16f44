package fulfillment

import (
	"errors"
	"fmt"
)

// FulfillmentError represents an error from a fulfillment provider.
type FulfillmentError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *FulfillmentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Provider, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *FulfillmentError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for FulfillmentError.
func (e *FulfillmentError) Is(target error) bool {
	t, ok := target.(*FulfillmentError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewFulfillmentError creates a new FulfillmentError.
func NewFulfillmentError(provider, code, message string) *FulfillmentError {
	return &FulfillmentError{
		Provider: provider,
		Code:     code,
		Message:  message,
	}
}

// WithCause adds a cause to the error.
func (e *FulfillmentError) WithCause(err error) *FulfillmentError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *FulfillmentError) WithStatusCode(code int) *FulfillmentError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *FulfillmentError) WithRetryable(retryable bool) *FulfillmentError {
	e.Retryable = retryable
	return e
}

// Sentinel errors for common fulfillment scenarios.
var (
	// ErrNotImplemented indicates the provider does not support the operation.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidRequest indicates the request is missing required data.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownOption indicates the option is not offered by the provider.
	ErrUnknownOption = errors.New("unknown fulfillment option")

	// ErrOrderNotFound indicates the originating order could not be resolved.
	ErrOrderNotFound = errors.New("order not found")

	// ErrParcelNotCreated indicates the carrier did not create the parcel.
	ErrParcelNotCreated = errors.New("parcel not created")

	// ErrParcelNotFound indicates the carrier has no such parcel.
	ErrParcelNotFound = errors.New("parcel not found")

	// ErrCancelFailed indicates the carrier rejected the cancellation.
	ErrCancelFailed = errors.New("cancellation failed")

	// ErrCarrierUnavailable indicates the carrier API is temporarily unavailable.
	ErrCarrierUnavailable = errors.New("carrier unavailable")

	// ErrProviderNotFound indicates the requested provider is not registered.
	ErrProviderNotFound = errors.New("provider not found")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var fErr *FulfillmentError
	if errors.As(err, &fErr) {
		return fErr.Retryable
	}
	return errors.Is(err, ErrCarrierUnavailable)
}
