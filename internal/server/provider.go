package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"go.uber.org/zap"
)

type validateDataRequest struct {
	OptionData fulfillment.Data  `json:"option_data"`
	Data       fulfillment.Data  `json:"data"`
	Cart       *fulfillment.Cart `json:"cart"`
}

// handleProvider resolves the {provider} URL parameter, runs op and records
// the outcome.
func handleProvider[T any](s *Server, operation string, op func(ctx context.Context, p fulfillment.Provider) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		providerID := chi.URLParam(r, "provider")
		start := time.Now()

		p, err := s.registry.Get(providerID)
		if err != nil {
			writeError(w, r, s.logger, http.StatusNotFound, err.Error())
			return
		}

		result, err := op(ctx, p)
		duration := time.Since(start).Seconds()
		if err != nil {
			s.metrics.RecordRequest(operation, providerID, "error", duration)
			s.metrics.RecordError(providerID, errorType(err))
			status := statusFor(err)
			log := s.logger.Ctx(ctx)
			fields := []zap.Field{
				zap.String("operation", operation),
				zap.String("provider", providerID),
				zap.Int("status", status),
				zap.Bool("retryable", fulfillment.IsRetryable(err)),
				zap.Error(err),
			}
			if status >= http.StatusInternalServerError {
				log.Error("Provider operation failed", fields...)
			} else {
				log.Warn("Provider operation rejected", fields...)
			}
			writeError(w, r, s.logger, status, err.Error())
			return
		}

		s.metrics.RecordRequest(operation, providerID, "success", duration)
		writeJSON(w, r, s.logger, http.StatusOK, result)
	}
}

// withBody decodes the request body before running op.
func withBody[Req, Resp any](s *Server, operation string, op func(ctx context.Context, p fulfillment.Provider, req *Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeJSON[Req](w, r)
		if err != nil {
			writeError(w, r, s.logger, http.StatusBadRequest, "invalid json")
			return
		}
		handleProvider(s, operation, func(ctx context.Context, p fulfillment.Provider) (Resp, error) {
			return op(ctx, p, req)
		})(w, r)
	}
}

func (s *Server) handleAllOptions(w http.ResponseWriter, r *http.Request) {
	results, errs := s.registry.AllOptions(r.Context())
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		s.logger.Ctx(r.Context()).Warn("Failed to list provider options", zap.Error(err))
		messages = append(messages, err.Error())
	}
	writeJSON(w, r, s.logger, http.StatusOK, map[string]any{
		"providers": results,
		"errors":    messages,
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	handleProvider(s, "get_fulfillment_options", func(ctx context.Context, p fulfillment.Provider) (map[string]any, error) {
		opts, err := p.GetFulfillmentOptions(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"options": opts}, nil
	})(w, r)
}

func (s *Server) handleValidateOption(w http.ResponseWriter, r *http.Request) {
	withBody(s, "validate_option", func(ctx context.Context, p fulfillment.Provider, opt *fulfillment.FulfillmentOption) (map[string]bool, error) {
		ok, err := p.ValidateOption(ctx, *opt)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"valid": ok}, nil
	})(w, r)
}

func (s *Server) handleCanCalculate(w http.ResponseWriter, r *http.Request) {
	withBody(s, "can_calculate", func(ctx context.Context, p fulfillment.Provider, opt *fulfillment.FulfillmentOption) (map[string]bool, error) {
		ok, err := p.CanCalculate(ctx, *opt)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"can_calculate": ok}, nil
	})(w, r)
}

func (s *Server) handleValidateData(w http.ResponseWriter, r *http.Request) {
	withBody(s, "validate_fulfillment_data", func(ctx context.Context, p fulfillment.Provider, req *validateDataRequest) (map[string]fulfillment.Data, error) {
		data, err := p.ValidateFulfillmentData(ctx, req.OptionData, req.Data, req.Cart)
		if err != nil {
			return nil, err
		}
		return map[string]fulfillment.Data{"data": data}, nil
	})(w, r)
}

func (s *Server) handleCalculatePrice(w http.ResponseWriter, r *http.Request) {
	withBody(s, "calculate_price", func(ctx context.Context, p fulfillment.Provider, req *fulfillment.CalculatePriceRequest) (*fulfillment.CalculatePriceResponse, error) {
		return p.CalculatePrice(ctx, req)
	})(w, r)
}

func (s *Server) handleCreateFulfillment(w http.ResponseWriter, r *http.Request) {
	withBody(s, "create_fulfillment", func(ctx context.Context, p fulfillment.Provider, req *fulfillment.CreateFulfillmentRequest) (*fulfillment.CreateFulfillmentResponse, error) {
		return p.CreateFulfillment(ctx, req)
	})(w, r)
}

func (s *Server) handleCancelFulfillment(w http.ResponseWriter, r *http.Request) {
	withBody(s, "cancel_fulfillment", func(ctx context.Context, p fulfillment.Provider, req *fulfillment.CancelFulfillmentRequest) (*fulfillment.CancelFulfillmentResponse, error) {
		return p.CancelFulfillment(ctx, req)
	})(w, r)
}

func (s *Server) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	withBody(s, "create_return", func(ctx context.Context, p fulfillment.Provider, req *fulfillment.CreateReturnRequest) (*fulfillment.CreateReturnResponse, error) {
		return p.CreateReturn(ctx, req)
	})(w, r)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	withBody(s, "documents", func(ctx context.Context, p fulfillment.Provider, data *fulfillment.Data) (map[string][]fulfillment.Document, error) {
		var (
			docs []fulfillment.Document
			err  error
		)
		switch kind {
		case "fulfillment":
			docs, err = p.GetFulfillmentDocuments(ctx, *data)
		case "return":
			docs, err = p.GetReturnDocuments(ctx, *data)
		case "shipment":
			docs, err = p.GetShipmentDocuments(ctx, *data)
		default:
			docs, err = p.RetrieveDocuments(ctx, *data, fulfillment.DocumentKind(kind))
		}
		if err != nil {
			return nil, err
		}
		return map[string][]fulfillment.Document{"documents": docs}, nil
	})(w, r)
}
