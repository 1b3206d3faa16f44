package sendcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReturnDefaults holds the return-portal fields that are not derived from
// the platform return.
type ReturnDefaults struct {
	Reason              int
	Message             string
	ServicePointID      int64 // 0 omits the service point
	RefundType          string
	RefundMessage       string
	DeliveryOption      string
	ProductReturnReason int
	FirstMile           string
}

// DefaultReturnDefaults returns the values the return portal was first
// integrated with.
func DefaultReturnDefaults() ReturnDefaults {
	return ReturnDefaults{
		Reason:              0,
		ServicePointID:      10875349,
		RefundType:          "money",
		DeliveryOption:      "drop_off_point",
		ProductReturnReason: 1,
		FirstMile:           "dropoff",
	}
}

// CreateReturn registers the return on the Sendcloud return portal.
func (c *Client) CreateReturn(ctx context.Context, req *fulfillment.CreateReturnRequest) (*fulfillment.CreateReturnResponse, error) {
	ctx, span := c.startSpan(ctx, "CreateReturn")
	defer span.End()

	if req == nil {
		return nil, c.fail(span, fmt.Errorf("%w: return is required", fulfillment.ErrInvalidRequest))
	}

	orderID := originatingOrderID(req.Return)
	if orderID == "" {
		return nil, c.fail(span, fmt.Errorf("%w: return %s references no order", fulfillment.ErrInvalidRequest, req.Return.ID))
	}
	if c.orders == nil {
		return nil, c.fail(span, fmt.Errorf("%w: no order lookup configured", fulfillment.ErrOrderNotFound))
	}
	span.SetAttributes(attribute.String("fulfillment.order_id", orderID))

	c.logger.Ctx(ctx).Info("Creating Sendcloud return",
		zap.String("return_id", req.Return.ID),
		zap.String("order_id", orderID),
		zap.Int("item_count", len(req.Return.Items)),
	)

	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		c.logger.Ctx(ctx).Error("Order lookup failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, c.fail(span, err)
	}
	if order.ShippingAddress == nil {
		return nil, c.fail(span, fmt.Errorf("%w: order %s has no shipping address", fulfillment.ErrInvalidRequest, orderID))
	}

	apiReq := buildReturnRequest(c.returnDefaults(), req.Return, order)

	result, err := c.apiClient.CreateReturn(ctx, apiReq)
	if err != nil {
		c.logger.Ctx(ctx).Error("Sendcloud API error",
			zap.String("operation", "CreateReturn"),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, c.fail(span, carrierError("CreateReturn", err))
	}

	resp := &fulfillment.CreateReturnResponse{OrderID: orderID, Payload: apiReq}
	if json.Valid(result) {
		resp.Result = json.RawMessage(result)
	}
	return resp, nil
}

func (c *Client) returnDefaults() ReturnDefaults {
	d := c.config.Return
	if d == (ReturnDefaults{}) {
		return DefaultReturnDefaults()
	}
	return d
}

// originatingOrderID resolves the order a return belongs to: the swap's
// order first, then the claim's, then the direct reference.
func originatingOrderID(r fulfillment.ReturnOrder) string {
	switch {
	case r.Swap != nil && r.Swap.OrderID != "":
		return r.Swap.OrderID
	case r.ClaimOrder != nil && r.ClaimOrder.OrderID != "":
		return r.ClaimOrder.OrderID
	default:
		return r.OrderID
	}
}

func buildReturnRequest(d ReturnDefaults, r fulfillment.ReturnOrder, order *fulfillment.Order) *ReturnRequest {
	addr := order.ShippingAddress

	products := make([]ReturnProduct, len(r.Items))
	for i, item := range r.Items {
		products[i] = ReturnProduct{
			ProductID:    item.ID,
			Quantity:     item.Quantity,
			Description:  item.Description,
			Value:        decimal.New(item.Price, -2),
			ReturnReason: d.ProductReturnReason,
		}
	}

	req := &ReturnRequest{
		Reason:         d.Reason,
		Message:        d.Message,
		Refund:         Refund{RefundType: RefundType{Code: d.RefundType}, Message: d.RefundMessage},
		DeliveryOption: d.DeliveryOption,
		Products:       products,
		IncomingParcel: IncomingParcel{
			ColloCount:       1,
			FromAddress1:     addr.Address1,
			FromAddress2:     addr.Address2,
			FromCity:         addr.City,
			FromCompanyName:  addr.FullName(),
			FromCountry:      strings.ToUpper(addr.CountryCode),
			FromEmail:        order.Email,
			FromHouseNumber:  addr.Address2,
			FromCountryState: addr.Province,
			FromName:         addr.FullName(),
			FromPostalCode:   addr.PostalCode,
			FromTelephone:    addr.Phone,
		},
		SelectedFunctionalities: SelectedFunctionalities{FirstMile: d.FirstMile},
	}
	if d.ServicePointID != 0 {
		req.ServicePoint = &ServicePoint{ID: d.ServicePointID}
	}
	return req
}
