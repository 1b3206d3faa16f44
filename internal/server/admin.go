package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tournevent/sendcloud-fulfillment/internal/admin"
	"github.com/tournevent/sendcloud-fulfillment/internal/webhook"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"go.uber.org/zap"
)

const defaultEventLimit = 50

type messageResponse struct {
	Message string `json:"message"`
}

type parcelGetter interface {
	GetParcel(ctx context.Context, parcelID int64) (*fulfillment.Parcel, error)
}

func (s *Server) listParcels(r *http.Request) ([]fulfillment.Parcel, error) {
	p, err := s.registry.Get(s.cfg.AdminProvider)
	if err != nil {
		return nil, err
	}
	return p.ListParcels(r.Context())
}

func (s *Server) handleParcels(w http.ResponseWriter, r *http.Request) {
	parcels, err := s.listParcels(r)
	if err != nil {
		s.logger.Ctx(r.Context()).Error("Failed to list parcels", zap.Error(err))
	}
	if err != nil || parcels == nil {
		writeJSON(w, r, s.logger, http.StatusNotFound, messageResponse{Message: "not found"})
		return
	}
	writeJSON(w, r, s.logger, http.StatusOK, map[string]any{"parcels": parcels})
}

func (s *Server) handleParcel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, s.logger, http.StatusBadRequest, "invalid parcel id")
		return
	}

	p, err := s.registry.Get(s.cfg.AdminProvider)
	if err != nil {
		writeError(w, r, s.logger, statusFor(err), err.Error())
		return
	}
	getter, ok := p.(parcelGetter)
	if !ok {
		writeError(w, r, s.logger, http.StatusNotImplemented, "parcel lookup not supported")
		return
	}

	parcel, err := getter.GetParcel(r.Context(), id)
	if err != nil {
		s.logger.Ctx(r.Context()).Error("Failed to get parcel",
			zap.Int64("parcel_id", id),
			zap.Bool("retryable", fulfillment.IsRetryable(err)),
			zap.Error(err),
		)
		writeError(w, r, s.logger, statusFor(err), err.Error())
		return
	}
	writeJSON(w, r, s.logger, http.StatusOK, parcel)
}

func (s *Server) handleShipments(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	parcels, err := s.listParcels(r)
	if err != nil {
		s.logger.Ctx(r.Context()).Error("Failed to list parcels", zap.Error(err))
		http.Error(w, "failed to load shipments", http.StatusBadGateway)
		return
	}

	var buf bytes.Buffer
	if err := admin.RenderHTML(&buf, admin.Paginate(parcels, page, admin.DefaultPageSize), r.URL.Path); err != nil {
		s.logger.Ctx(r.Context()).Error("Failed to render shipments", zap.Error(err))
		http.Error(w, "failed to render shipments", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleWebhookEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, r, s.logger, http.StatusOK, map[string]any{"events": []any{}})
		return
	}

	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, s.logger, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := s.events.Recent(limit)
	if err != nil {
		s.logger.Ctx(r.Context()).Error("Failed to read webhook journal", zap.Error(err))
		writeError(w, r, s.logger, http.StatusInternalServerError, "failed to read journal")
		return
	}
	writeJSON(w, r, s.logger, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.logger, http.StatusBadRequest, "invalid event id")
		return
	}
	if s.events == nil {
		writeError(w, r, s.logger, http.StatusNotFound, "not found")
		return
	}

	event, err := s.events.Get(id)
	if errors.Is(err, badger.ErrKeyNotFound) {
		writeError(w, r, s.logger, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.logger.Ctx(r.Context()).Error("Failed to read webhook journal", zap.Error(err))
		writeError(w, r, s.logger, http.StatusInternalServerError, "failed to read journal")
		return
	}
	writeJSON(w, r, s.logger, http.StatusOK, event)
}

// handleWebhook always answers 200 once the payload parses, so the carrier
// does not redeliver events whose handling failed. The journal entry keeps
// the failure.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, bodyLimit))
	if err != nil {
		writeError(w, r, s.logger, http.StatusBadRequest, "invalid body")
		return
	}

	res, err := s.dispatcher.Dispatch(r.Context(), raw)
	if errors.Is(err, webhook.ErrInvalidPayload) {
		writeError(w, r, s.logger, http.StatusBadRequest, "invalid json")
		return
	}
	writeJSON(w, r, s.logger, http.StatusOK, res.Body)
}
