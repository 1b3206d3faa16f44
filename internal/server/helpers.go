package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const bodyLimit = 1 << 20

type errResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, logger *otelzap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// Raw payloads go out unchanged.
	if raw, ok := v.(json.RawMessage); ok {
		_, _ = w.Write(raw)
		return
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.Ctx(r.Context()).Error("json encode error",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *otelzap.Logger, status int, msg string) {
	writeJSON(w, r, logger, status, errResponse{Error: msg})
}

// decodeJSON reads the request body into a T. An empty body decodes to the
// zero value.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (*T, error) {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	var dst T
	if err := json.NewDecoder(r.Body).Decode(&dst); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &dst, nil
}

// statusFor maps provider errors to HTTP status codes.
func statusFor(err error) int {
	var fErr *fulfillment.FulfillmentError
	switch {
	case errors.Is(err, fulfillment.ErrProviderNotFound), errors.Is(err, fulfillment.ErrOrderNotFound),
		errors.Is(err, fulfillment.ErrParcelNotFound):
		return http.StatusNotFound
	case errors.Is(err, fulfillment.ErrInvalidRequest), errors.Is(err, fulfillment.ErrUnknownOption):
		return http.StatusBadRequest
	case errors.Is(err, fulfillment.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.As(err, &fErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorType is the carrier error metric label for err.
func errorType(err error) string {
	var fErr *fulfillment.FulfillmentError
	if errors.As(err, &fErr) && fErr.Code != "" {
		return fErr.Code
	}
	switch statusFor(err) {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusNotImplemented:
		return "not_implemented"
	default:
		return "internal"
	}
}
