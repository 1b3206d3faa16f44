// Package sendcloud provides integration with the Sendcloud parcel-shipping API.
package sendcloud

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProviderID is the identifier the host platform knows this provider by.
const ProviderID = "sendcloud-fulfillment"

// Config holds Sendcloud configuration.
type Config struct {
	Token       string
	BaseURL     string
	ToCountry   string
	BrandDomain string
	Timeout     time.Duration
	UseMock     bool // When true, uses mock API client

	BreakerEnabled bool
	Breaker        BreakerConfig

	Return ReturnDefaults
}

// OrderLookup resolves platform orders by id.
type OrderLookup interface {
	GetByID(ctx context.Context, id string) (*fulfillment.Order, error)
}

// Client is the Sendcloud fulfillment provider.
// It implements the fulfillment.Provider interface and delegates
// API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	orders    OrderLookup
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Sendcloud client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, orders OrderLookup, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:     cfg.BaseURL,
			Token:       cfg.Token,
			ToCountry:   cfg.ToCountry,
			BrandDomain: cfg.BrandDomain,
			Timeout:     cfg.Timeout,
		})
	}

	if cfg.BreakerEnabled {
		apiClient = NewBreakerAPIClient(apiClient, cfg.Breaker, logger)
	}

	return NewWithAPIClient(cfg, apiClient, orders, logger, tracer)
}

// NewWithAPIClient creates a new Sendcloud client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, orders OrderLookup, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(ProviderID)
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		orders:    orders,
		logger:    logger,
		tracer:    tracer,
	}
}

// Identifier returns the provider identifier.
func (c *Client) Identifier() string {
	return ProviderID
}

// GetFulfillmentOptions returns normal and return shipping methods merged by id.
func (c *Client) GetFulfillmentOptions(ctx context.Context) ([]fulfillment.FulfillmentOption, error) {
	ctx, span := c.startSpan(ctx, "GetFulfillmentOptions")
	defer span.End()

	c.logger.Ctx(ctx).Info("Getting Sendcloud shipping methods",
		zap.String("to_country", c.config.ToCountry),
	)

	var normal, returns []ShippingMethod
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := c.apiClient.GetShippingMethods(gctx, false)
		if resp != nil {
			normal = resp.ShippingMethods
		}
		return err
	})
	g.Go(func() error {
		resp, err := c.apiClient.GetShippingMethods(gctx, true)
		if resp != nil {
			returns = resp.ShippingMethods
		}
		return err
	})
	if err := g.Wait(); err != nil {
		c.logger.Ctx(ctx).Error("Sendcloud API error", zap.String("operation", "GetShippingMethods"), zap.Error(err))
		return nil, c.fail(span, carrierError("GetShippingMethods", err))
	}

	options := mergeMethods(normal, returns)
	span.SetAttributes(attribute.Int("sendcloud.options", len(options)))
	return options, nil
}

// ValidateOption reports whether the option id is one of the merged methods.
func (c *Client) ValidateOption(ctx context.Context, option fulfillment.FulfillmentOption) (bool, error) {
	options, err := c.GetFulfillmentOptions(ctx)
	if err != nil {
		return false, err
	}
	return containsOption(options, option.ID), nil
}

// ValidateFulfillmentData returns data overlaid with optionData.
func (c *Client) ValidateFulfillmentData(ctx context.Context, optionData, data fulfillment.Data, cart *fulfillment.Cart) (fulfillment.Data, error) {
	merged := make(fulfillment.Data, len(data)+len(optionData))
	for k, v := range data {
		merged[k] = v
	}
	for k, v := range optionData {
		merged[k] = v
	}
	return merged, nil
}

// CanCalculate reports whether prices for the option are computed by the carrier.
func (c *Client) CanCalculate(ctx context.Context, option fulfillment.FulfillmentOption) (bool, error) {
	return c.ValidateOption(ctx, option)
}

// CreateFulfillment creates a parcel for the order and requests its label.
func (c *Client) CreateFulfillment(ctx context.Context, req *fulfillment.CreateFulfillmentRequest) (*fulfillment.CreateFulfillmentResponse, error) {
	ctx, span := c.startSpan(ctx, "CreateFulfillment")
	defer span.End()

	if req == nil || req.Order == nil {
		return nil, c.fail(span, fmt.Errorf("%w: order is required", fulfillment.ErrInvalidRequest))
	}
	order := req.Order
	if order.ShippingAddress == nil {
		return nil, c.fail(span, fmt.Errorf("%w: order %s has no shipping address", fulfillment.ErrInvalidRequest, order.ID))
	}
	if len(order.ShippingMethods) == 0 {
		return nil, c.fail(span, fmt.Errorf("%w: order %s has no shipping method", fulfillment.ErrInvalidRequest, order.ID))
	}

	c.logger.Ctx(ctx).Info("Creating Sendcloud parcel",
		zap.String("order_id", order.ID),
		zap.Int64("display_id", order.DisplayID),
		zap.Int("item_count", len(req.Items)),
	)

	apiReq := &ParcelRequest{Parcel: orderToParcel(order, req.Items)}

	apiResp, err := c.apiClient.CreateParcel(ctx, apiReq)
	if err != nil {
		c.logger.Ctx(ctx).Error("Sendcloud API error",
			zap.String("operation", "CreateParcel"),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return nil, c.fail(span, carrierError("CreateParcel", fmt.Errorf("%w: %w", fulfillment.ErrParcelNotCreated, err)))
	}
	if apiResp == nil || apiResp.Parcel.ID == 0 {
		return nil, c.fail(span, carrierError("CreateParcel", fulfillment.ErrParcelNotCreated))
	}

	span.SetAttributes(attribute.Int64("sendcloud.parcel_id", apiResp.Parcel.ID))
	c.logger.Ctx(ctx).Info("Sendcloud parcel created",
		zap.Int64("parcel_id", apiResp.Parcel.ID),
		zap.String("tracking_number", apiResp.Parcel.TrackingNumber),
	)

	return &fulfillment.CreateFulfillmentResponse{Parcel: parcelToFulfillment(apiResp.Parcel)}, nil
}

// CancelFulfillment cancels a parcel. A parcel already in the cancelled state
// is reported as done without contacting the carrier.
func (c *Client) CancelFulfillment(ctx context.Context, req *fulfillment.CancelFulfillmentRequest) (*fulfillment.CancelFulfillmentResponse, error) {
	ctx, span := c.startSpan(ctx, "CancelFulfillment")
	defer span.End()

	if req == nil {
		return nil, c.fail(span, fmt.Errorf("%w: parcel is required", fulfillment.ErrInvalidRequest))
	}

	if req.Status != nil && req.Status.IsFinal() {
		c.logger.Ctx(ctx).Info("Sendcloud parcel already cancelled",
			zap.Int64("parcel_id", req.ParcelID),
			zap.Int("status_id", req.Status.ID),
		)
		return &fulfillment.CancelFulfillmentResponse{
			ParcelID:     req.ParcelID,
			AlreadyFinal: true,
			Status:       "cancelled",
			Message:      req.Status.Message,
		}, nil
	}

	if req.ParcelID == 0 {
		return nil, c.fail(span, fmt.Errorf("%w: parcel id is required", fulfillment.ErrInvalidRequest))
	}

	c.logger.Ctx(ctx).Info("Cancelling Sendcloud parcel", zap.Int64("parcel_id", req.ParcelID))

	apiResp, err := c.apiClient.CancelParcel(ctx, req.ParcelID)
	if err != nil {
		c.logger.Ctx(ctx).Error("Sendcloud API error",
			zap.String("operation", "CancelParcel"),
			zap.Int64("parcel_id", req.ParcelID),
			zap.Error(err),
		)
		return nil, c.fail(span, carrierError("CancelParcel", fmt.Errorf("%w: %w", fulfillment.ErrCancelFailed, err)))
	}

	resp := &fulfillment.CancelFulfillmentResponse{ParcelID: req.ParcelID}
	if apiResp != nil {
		resp.Status = apiResp.Status
		resp.Message = apiResp.Message
	}
	return resp, nil
}

// ListParcels returns every parcel of the account.
func (c *Client) ListParcels(ctx context.Context) ([]fulfillment.Parcel, error) {
	ctx, span := c.startSpan(ctx, "ListParcels")
	defer span.End()

	apiResp, err := c.apiClient.ListParcels(ctx)
	if err != nil {
		c.logger.Ctx(ctx).Error("Sendcloud API error", zap.String("operation", "ListParcels"), zap.Error(err))
		return nil, c.fail(span, carrierError("ListParcels", err))
	}
	if apiResp == nil {
		return nil, nil
	}

	parcels := make([]fulfillment.Parcel, len(apiResp.Parcels))
	for i, p := range apiResp.Parcels {
		parcels[i] = parcelToFulfillment(p)
	}
	return parcels, nil
}

// GetParcel returns a single parcel.
func (c *Client) GetParcel(ctx context.Context, parcelID int64) (*fulfillment.Parcel, error) {
	ctx, span := c.startSpan(ctx, "GetParcel")
	defer span.End()

	apiResp, err := c.apiClient.GetParcel(ctx, parcelID)
	if err != nil {
		c.logger.Ctx(ctx).Error("Sendcloud API error",
			zap.String("operation", "GetParcel"),
			zap.Int64("parcel_id", parcelID),
			zap.Error(err),
		)
		return nil, c.fail(span, carrierError("GetParcel", err))
	}
	if apiResp == nil {
		return nil, fmt.Errorf("GetParcel %d: %w", parcelID, fulfillment.ErrParcelNotFound)
	}
	parcel := parcelToFulfillment(apiResp.Parcel)
	return &parcel, nil
}

// GetFulfillmentDocuments is not supported by Sendcloud integration.
func (c *Client) GetFulfillmentDocuments(ctx context.Context, data fulfillment.Data) ([]fulfillment.Document, error) {
	return nil, fmt.Errorf("GetFulfillmentDocuments: %w", fulfillment.ErrNotImplemented)
}

// GetReturnDocuments is not supported by Sendcloud integration.
func (c *Client) GetReturnDocuments(ctx context.Context, data fulfillment.Data) ([]fulfillment.Document, error) {
	return nil, fmt.Errorf("GetReturnDocuments: %w", fulfillment.ErrNotImplemented)
}

// GetShipmentDocuments is not supported by Sendcloud integration.
func (c *Client) GetShipmentDocuments(ctx context.Context, data fulfillment.Data) ([]fulfillment.Document, error) {
	return nil, fmt.Errorf("GetShipmentDocuments: %w", fulfillment.ErrNotImplemented)
}

// RetrieveDocuments is not supported by Sendcloud integration.
func (c *Client) RetrieveDocuments(ctx context.Context, data fulfillment.Data, kind fulfillment.DocumentKind) ([]fulfillment.Document, error) {
	return nil, fmt.Errorf("RetrieveDocuments(%s): %w", kind, fulfillment.ErrNotImplemented)
}

func (c *Client) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "sendcloud."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("fulfillment.provider", ProviderID),
			attribute.String("fulfillment.operation", operation),
		),
	)
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// ============================================================================
// Conversion helpers
// ============================================================================

// mergeMethods merges normal and return methods by id. Return methods are
// tagged and replace a normal method with the same id in place.
func mergeMethods(normal, returns []ShippingMethod) []fulfillment.FulfillmentOption {
	options := make([]fulfillment.FulfillmentOption, 0, len(normal)+len(returns))
	index := make(map[int64]int, len(normal)+len(returns))

	add := func(m ShippingMethod, isReturn bool) {
		opt := methodToOption(m, isReturn)
		if i, ok := index[m.ID]; ok {
			options[i] = opt
			return
		}
		index[m.ID] = len(options)
		options = append(options, opt)
	}

	for _, m := range normal {
		add(m, false)
	}
	for _, m := range returns {
		add(m, true)
	}
	return options
}

func methodToOption(m ShippingMethod, isReturn bool) fulfillment.FulfillmentOption {
	countries := make([]fulfillment.Country, len(m.Countries))
	for i, ct := range m.Countries {
		countries[i] = fulfillment.Country{
			ID:    ct.ID,
			Name:  ct.Name,
			ISO2:  ct.ISO2,
			ISO3:  ct.ISO3,
			Price: ct.Price,
		}
	}
	return fulfillment.FulfillmentOption{
		ID:                m.ID,
		Name:              m.Name,
		Carrier:           m.Carrier,
		MinWeight:         m.MinWeight,
		MaxWeight:         m.MaxWeight,
		ServicePointInput: m.ServicePointInput,
		Countries:         countries,
		IsReturn:          isReturn,
	}
}

func containsOption(options []fulfillment.FulfillmentOption, id int64) bool {
	for _, o := range options {
		if o.ID == id {
			return true
		}
	}
	return false
}

var gramsPerKilogram = decimal.NewFromInt(1000)

// orderToParcel builds the parcel for an order. The first shipping method
// selects the Sendcloud shipment.
func orderToParcel(order *fulfillment.Order, items []fulfillment.LineItem) NewParcel {
	addr := order.ShippingAddress
	option := order.ShippingMethods[0].ShippingOption.Data

	parcel := NewParcel{
		Name:                       addr.FullName(),
		CompanyName:                addr.Company,
		Address:                    addr.Address1,
		HouseNumber:                addr.Address2,
		City:                       addr.City,
		PostalCode:                 addr.PostalCode,
		Country:                    strings.ToUpper(addr.CountryCode),
		Email:                      order.Email,
		ParcelItems:                lineItemsToParcelItems(items),
		RequestLabel:               true,
		OrderNumber:                strconv.FormatInt(order.DisplayID, 10),
		ShippingMethodCheckoutName: option.Name,
		Shipment:                   &Shipment{ID: option.ID},
		ExternalReference:          order.ID,
	}
	if order.BillingAddress != nil {
		parcel.Telephone = order.BillingAddress.Phone
	}
	return parcel
}

func lineItemsToParcelItems(items []fulfillment.LineItem) []ParcelItem {
	out := make([]ParcelItem, len(items))
	for i, item := range items {
		product := item.Variant.Product
		out[i] = ParcelItem{
			Description:   fmt.Sprintf("%s - %s", product.Title, product.Description),
			Quantity:      item.Quantity,
			// Product weights are stored in grams; Sendcloud takes kilograms.
			Weight:        decimal.NewFromFloat(product.Weight).Div(gramsPerKilogram),
			Value:         decimal.New(item.UnitPrice, -2),
			HSCode:        product.HSCode,
			OriginCountry: product.OriginCountry,
			ProductID:     product.ID,
			Properties:    map[string]string{"title": product.Title},
		}
	}
	return out
}

func parcelToFulfillment(p Parcel) fulfillment.Parcel {
	items := make([]fulfillment.ParcelItem, len(p.ParcelItems))
	for i, it := range p.ParcelItems {
		items[i] = fulfillment.ParcelItem{
			Description:   it.Description,
			Quantity:      it.Quantity,
			Weight:        it.Weight,
			Value:         it.Value,
			HSCode:        it.HSCode,
			OriginCountry: it.OriginCountry,
			ProductID:     it.ProductID,
			Properties:    it.Properties,
		}
	}

	out := fulfillment.Parcel{
		ID:                p.ID,
		Name:              p.Name,
		Email:             p.Email,
		OrderNumber:       p.OrderNumber,
		PostalCode:        p.PostalCode,
		Country:           p.Country.ISO2,
		TrackingNumber:    p.TrackingNumber,
		TrackingURL:       p.TrackingURL,
		Status:            fulfillment.ParcelStatus{ID: p.Status.ID, Message: p.Status.Message},
		ParcelItems:       items,
		ExternalReference: p.ExternalReference,
		CreatedAt:         p.DateCreated,
	}
	if p.Carrier != nil {
		out.CarrierCode = p.Carrier.Code
	}
	if p.Label != nil {
		if len(p.Label.NormalPrinter) > 0 {
			out.LabelURL = p.Label.NormalPrinter[0]
		} else {
			out.LabelURL = p.Label.LabelPrinter
		}
	}
	return out
}

// carrierError wraps a carrier failure as a FulfillmentError.
func carrierError(operation string, err error) error {
	fErr := fulfillment.NewFulfillmentError(ProviderID, "CARRIER_ERROR", operation+" failed").WithCause(err)

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		fErr.Code = apiErr.Code
		fErr.WithStatusCode(apiErr.StatusCode).WithRetryable(apiErr.Temporary())
	}
	return fErr
}

// Ensure Client implements fulfillment.Provider interface
var _ fulfillment.Provider = (*Client)(nil)
