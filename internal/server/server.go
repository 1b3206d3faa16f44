package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/sendcloud-fulfillment/internal/journal"
	"github.com/tournevent/sendcloud-fulfillment/internal/telemetry"
	"github.com/tournevent/sendcloud-fulfillment/internal/webhook"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// EventLister reads journaled webhook events.
type EventLister interface {
	Recent(limit int) ([]journal.Event, error)
	Get(id uuid.UUID) (*journal.Event, error)
}

// Server is the HTTP server for the fulfillment service.
type Server struct {
	cfg        Config
	registry   *fulfillment.Registry
	dispatcher *webhook.Dispatcher
	events     EventLister
	metrics    *telemetry.Metrics
	gatherer   prometheus.Gatherer
	logger     *otelzap.Logger
}

// Config holds server configuration.
type Config struct {
	Port int

	// AdminProvider is the provider whose parcels the admin listing shows.
	AdminProvider string

	// AdminJWTSecret enables bearer-token checks on admin routes when set.
	AdminJWTSecret string
}

// Deps are the collaborators the server routes to. Events and Gatherer may
// be nil.
type Deps struct {
	Registry   *fulfillment.Registry
	Dispatcher *webhook.Dispatcher
	Events     EventLister
	Metrics    *telemetry.Metrics
	Gatherer   prometheus.Gatherer
	Logger     *otelzap.Logger
}

// New creates a new server instance.
func New(cfg Config, deps Deps) *Server {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics(nil)
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:        cfg,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		events:     deps.Events,
		metrics:    metrics,
		gatherer:   gatherer,
		logger:     deps.Logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observability)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Failed cancellations still answer 200; look for outcome "failed" under
	// /sendcloud/webhook-events.
	r.Post("/sendcloud/fulfillment-webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Get("/sendcloud/parcels", s.handleParcels)
		r.Get("/sendcloud/parcels/{id}", s.handleParcel)
		r.Get("/sendcloud/webhook-events", s.handleWebhookEvents)
		r.Get("/sendcloud/webhook-events/{id}", s.handleWebhookEvent)
		r.Get("/admin/shipments", s.handleShipments)
	})

	r.Get("/fulfillment/options", s.handleAllOptions)
	r.Route("/fulfillment/{provider}", func(r chi.Router) {
		r.Get("/options", s.handleOptions)
		r.Post("/options/validate", s.handleValidateOption)
		r.Post("/options/can-calculate", s.handleCanCalculate)
		r.Post("/data/validate", s.handleValidateData)
		r.Post("/price", s.handleCalculatePrice)
		r.Post("/fulfillments", s.handleCreateFulfillment)
		r.Post("/fulfillments/cancel", s.handleCancelFulfillment)
		r.Post("/returns", s.handleCreateReturn)
		r.Post("/documents/{kind}", s.handleDocuments)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, s.logger, http.StatusNotFound, "not found")
	})

	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
