package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tournevent/sendcloud-fulfillment/internal/config"
	"github.com/tournevent/sendcloud-fulfillment/internal/gateway/orders"
	"github.com/tournevent/sendcloud-fulfillment/internal/journal"
	"github.com/tournevent/sendcloud-fulfillment/internal/telemetry"
	"github.com/tournevent/sendcloud-fulfillment/internal/webhook"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment/sendcloud"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel,
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.Version),
	)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return telemetry.NoopTracerProvider().Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}

	tp, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
	if err != nil {
		return nil, nil, err
	}
	return tp.Tracer(cfg.ServiceName), shutdown, nil
}

// app holds the long-lived collaborators of the serve command.
type app struct {
	provider   *sendcloud.Client
	registry   *fulfillment.Registry
	dispatcher *webhook.Dispatcher
	journal    *journal.Store
	metrics    *telemetry.Metrics
	gatherer   prometheus.Gatherer
}

func newApp(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	store, err := journal.Open(cfg.JournalPath, cfg.JournalInMemory, logger)
	if err != nil {
		return nil, err
	}

	client := newSendcloudClient(cfg, initOrderGateway(cfg, logger, metrics), logger, tracer)

	registry := fulfillment.NewRegistry()
	registry.Register(client)

	return &app{
		provider:   client,
		registry:   registry,
		dispatcher: webhook.NewDispatcher(client, store, metrics, logger),
		journal:    store,
		metrics:    metrics,
		gatherer:   reg,
	}, nil
}

func (a *app) Close() error {
	return a.journal.Close()
}

// initOrderGateway returns nil when no platform URL is configured; return
// creation then fails with ErrOrderNotFound.
func initOrderGateway(cfg *config.Config, logger *otelzap.Logger, metrics *telemetry.Metrics) sendcloud.OrderLookup {
	if cfg.PlatformBaseURL == "" {
		return nil
	}
	gw := orders.NewHTTPGateway(cfg.PlatformBaseURL, cfg.PlatformAPIToken, cfg.SendcloudTimeout)
	return orders.NewRetryingGateway(gw, logger, metrics.OrderLookupRetries, orders.RetryConfig{
		MaxAttempts: cfg.PlatformRetryMax + 1,
		BaseDelay:   cfg.PlatformRetryBackoff,
	})
}

func newSendcloudClient(cfg *config.Config, lookup sendcloud.OrderLookup, logger *otelzap.Logger, tracer trace.Tracer) *sendcloud.Client {
	return sendcloud.New(sendcloud.Config{
		Token:          cfg.SendcloudAPIToken,
		BaseURL:        cfg.SendcloudBaseURL,
		ToCountry:      cfg.SendcloudToCountry,
		BrandDomain:    cfg.SendcloudBrandDomain,
		Timeout:        cfg.SendcloudTimeout,
		UseMock:        cfg.SendcloudUseMock,
		BreakerEnabled: cfg.BreakerEnabled,
		Breaker: sendcloud.BreakerConfig{
			MaxRequests:      cfg.BreakerHalfOpenRequests,
			Interval:         cfg.BreakerInterval,
			Timeout:          cfg.BreakerOpenTimeout,
			FailureThreshold: cfg.BreakerFailureThreshold,
		},
		Return: sendcloud.ReturnDefaults{
			Reason:              cfg.ReturnReason,
			Message:             cfg.ReturnMessage,
			ServicePointID:      cfg.ReturnServicePointID,
			RefundType:          cfg.ReturnRefundType,
			DeliveryOption:      cfg.ReturnDeliveryOption,
			ProductReturnReason: cfg.ReturnProductReason,
			FirstMile:           cfg.ReturnFirstMile,
		},
	}, lookup, logger, tracer)
}
