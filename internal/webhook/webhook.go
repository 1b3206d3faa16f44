// Package webhook dispatches carrier webhook deliveries by action.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/sendcloud-fulfillment/internal/journal"
	"github.com/tournevent/sendcloud-fulfillment/internal/telemetry"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Webhook actions sent by the carrier.
const (
	ActionIntegrationConnected = "integration_connected"
	ActionIntegrationUpdated   = "integration_updated"
	ActionParcelStatusChanged  = "parcel_status_changed"
	ActionReturnCreated        = "return_created"
)

// Outcomes recorded per dispatched event.
const (
	OutcomeAcknowledged   = "acknowledged"
	OutcomeCancelled      = "cancelled"
	OutcomeAlreadyFinal   = "already_final"
	OutcomeNoParcel       = "no_parcel"
	OutcomeEchoed         = "echoed"
	OutcomeNotImplemented = "not_implemented"
	OutcomeFailed         = "failed"
)

// ErrInvalidPayload is returned when the body is not a JSON object.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// Canceller cancels a shipment. fulfillment.Provider satisfies it.
type Canceller interface {
	CancelFulfillment(ctx context.Context, req *fulfillment.CancelFulfillmentRequest) (*fulfillment.CancelFulfillmentResponse, error)
}

// Journal records dispatched events.
type Journal interface {
	Append(e journal.Event) (journal.Event, error)
}

// Result is the response body for one delivery.
type Result struct {
	Action  string
	Outcome string
	Body    any
}

type payload struct {
	Action string                               `json:"action"`
	Parcel *fulfillment.CancelFulfillmentRequest `json:"parcel"`
}

// Dispatcher routes webhook payloads. It keeps no state between deliveries.
type Dispatcher struct {
	canceller Canceller
	journal   Journal
	metrics   *telemetry.Metrics
	logger    *otelzap.Logger
}

// NewDispatcher creates a dispatcher. journal and metrics may be nil.
func NewDispatcher(canceller Canceller, j Journal, metrics *telemetry.Metrics, logger *otelzap.Logger) *Dispatcher {
	return &Dispatcher{
		canceller: canceller,
		journal:   j,
		metrics:   metrics,
		logger:    logger,
	}
}

// Dispatch handles one raw webhook body. A cancellation failure is returned
// as an error together with a Result whose body carries the message.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) (Result, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	log := d.logger.Ctx(ctx)
	res := Result{Action: p.Action}
	var err error

	switch p.Action {
	case ActionIntegrationConnected:
		log.Info("Sendcloud integration connected")
		res.Outcome, res.Body = OutcomeAcknowledged, ack()

	case ActionIntegrationUpdated:
		log.Info("Sendcloud integration updated")
		res.Outcome, res.Body = OutcomeAcknowledged, ack()

	case ActionParcelStatusChanged:
		if p.Parcel == nil {
			res.Outcome, res.Body = OutcomeNoParcel, map[string]any{"parcel": nil}
			break
		}
		res, err = d.cancel(ctx, p.Parcel)
		res.Action = p.Action

	case ActionReturnCreated:
		log.Warn("Return webhook not implemented", zap.String("action", p.Action))
		res.Outcome, res.Body = OutcomeNotImplemented, ack()

	default:
		res.Outcome, res.Body = OutcomeEchoed, json.RawMessage(raw)
	}

	d.record(ctx, p, res, raw)
	return res, err
}

func (d *Dispatcher) cancel(ctx context.Context, parcel *fulfillment.CancelFulfillmentRequest) (Result, error) {
	log := d.logger.Ctx(ctx)

	resp, err := d.canceller.CancelFulfillment(ctx, parcel)
	if err != nil {
		log.Error("Parcel cancellation from webhook failed",
			zap.Int64("parcel_id", parcel.ParcelID),
			zap.Bool("retryable", fulfillment.IsRetryable(err)),
			zap.Error(err),
		)
		return Result{Outcome: OutcomeFailed, Body: map[string]string{"error": err.Error()}}, err
	}

	outcome := OutcomeCancelled
	if resp.AlreadyFinal {
		outcome = OutcomeAlreadyFinal
	}
	log.Info("Parcel status change handled",
		zap.Int64("parcel_id", parcel.ParcelID),
		zap.String("outcome", outcome),
	)
	return Result{Outcome: outcome, Body: resp}, nil
}

func (d *Dispatcher) record(ctx context.Context, p payload, res Result, raw []byte) {
	action := p.Action
	if action == "" {
		action = "unknown"
	}
	if d.metrics != nil {
		d.metrics.RecordWebhook(action, res.Outcome)
	}
	if d.journal == nil {
		return
	}

	e := journal.Event{
		Action:     action,
		Outcome:    res.Outcome,
		ReceivedAt: time.Now().UTC(),
		Payload:    json.RawMessage(raw),
	}
	if p.Parcel != nil {
		e.ParcelID = p.Parcel.ParcelID
		if p.Parcel.Status != nil {
			e.StatusID = p.Parcel.Status.ID
		}
	}
	if _, err := d.journal.Append(e); err != nil {
		d.logger.Ctx(ctx).Warn("Failed to journal webhook event", zap.String("action", action), zap.Error(err))
	}
}

func ack() map[string]bool {
	return map[string]bool{"acknowledged": true}
}
