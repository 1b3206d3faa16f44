package sendcloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var minorUnitsPerMajor = decimal.NewFromInt(100)

// CalculatePrice prices a cart against a shipping option. A cart heavier than
// the option's maximum weight is not priceable and makes no carrier calls.
func (c *Client) CalculatePrice(ctx context.Context, req *fulfillment.CalculatePriceRequest) (*fulfillment.CalculatePriceResponse, error) {
	ctx, span := c.startSpan(ctx, "CalculatePrice")
	defer span.End()

	if req == nil || req.Cart == nil {
		return nil, c.fail(span, fmt.Errorf("%w: cart is required", fulfillment.ErrInvalidRequest))
	}
	if req.Cart.ShippingAddress == nil {
		return nil, c.fail(span, fmt.Errorf("%w: cart %s has no shipping address", fulfillment.ErrInvalidRequest, req.Cart.ID))
	}

	option := req.Option
	grams := cartWeightGrams(req.Cart.Items)
	span.SetAttributes(
		attribute.Int64("sendcloud.shipping_method_id", option.ID),
		attribute.String("sendcloud.weight_grams", grams.String()),
	)

	if exceedsMaxWeight(grams, option.MaxWeight) {
		c.logger.Ctx(ctx).Info("Cart exceeds shipping method max weight",
			zap.Int64("shipping_method_id", option.ID),
			zap.String("weight_grams", grams.String()),
			zap.String("max_weight_kg", option.MaxWeight.String()),
		)
		return &fulfillment.CalculatePriceResponse{
			Calculable:  false,
			Reason:      fulfillment.ReasonExceedsMaxWeight,
			WeightGrams: grams.String(),
		}, nil
	}

	senders, err := c.apiClient.GetSenderAddresses(ctx)
	if err != nil {
		c.logger.Ctx(ctx).Error("Sendcloud API error", zap.String("operation", "GetSenderAddresses"), zap.Error(err))
		return nil, c.fail(span, carrierError("GetSenderAddresses", err))
	}
	contracts, err := c.apiClient.GetContracts(ctx)
	if err != nil {
		c.logger.Ctx(ctx).Error("Sendcloud API error", zap.String("operation", "GetContracts"), zap.Error(err))
		return nil, c.fail(span, carrierError("GetContracts", err))
	}

	priceReq := &PriceRequest{
		ShippingMethodID: option.ID,
		ToCountry:        strings.ToUpper(req.Cart.ShippingAddress.CountryCode),
		ToPostalCode:     req.Cart.ShippingAddress.PostalCode,
		Weight:           grams,
		WeightUnit:       WeightUnitGram,
	}
	if senders != nil && len(senders.SenderAddresses) == 1 {
		priceReq.FromCountry = senders.SenderAddresses[0].Country
		priceReq.FromPostalCode = senders.SenderAddresses[0].PostalCode
	}
	var all []Contract
	if contracts != nil {
		all = contracts.Contracts
	}
	if matching := matchContracts(all, option); len(matching) == 1 {
		id := matching[0].ID
		priceReq.ContractID = &id
	}

	quotes, err := c.apiClient.GetShippingPrice(ctx, priceReq)
	if err != nil {
		c.logger.Ctx(ctx).Error("Sendcloud API error", zap.String("operation", "GetShippingPrice"), zap.Error(err))
		return nil, c.fail(span, carrierError("GetShippingPrice", err))
	}
	if len(quotes) == 0 || quotes[0].Price == nil {
		c.logger.Ctx(ctx).Warn("Sendcloud returned no price",
			zap.Int64("shipping_method_id", option.ID),
			zap.String("to_country", priceReq.ToCountry),
		)
		return &fulfillment.CalculatePriceResponse{
			Calculable:  false,
			Reason:      fulfillment.ReasonNoQuote,
			WeightGrams: grams.String(),
		}, nil
	}

	amount := quotes[0].Price.Mul(minorUnitsPerMajor).Round(0).IntPart()
	c.logger.Ctx(ctx).Info("Sendcloud price calculated",
		zap.Int64("shipping_method_id", option.ID),
		zap.Int64("amount", amount),
		zap.String("currency", quotes[0].Currency),
	)

	return &fulfillment.CalculatePriceResponse{
		Amount:      amount,
		Currency:    quotes[0].Currency,
		Calculable:  true,
		WeightGrams: grams.String(),
	}, nil
}

// cartWeightGrams sums quantity times product weight over the cart items.
func cartWeightGrams(items []fulfillment.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		w := decimal.NewFromFloat(item.Variant.Product.Weight)
		total = total.Add(w.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// exceedsMaxWeight compares grams with a limit in kilograms. A zero limit
// means the method declares none.
func exceedsMaxWeight(grams, maxKg decimal.Decimal) bool {
	if maxKg.IsZero() {
		return false
	}
	return grams.GreaterThan(maxKg.Mul(gramsPerKilogram))
}

// matchContracts returns the active contracts for one of the option's
// countries and the option's carrier.
func matchContracts(contracts []Contract, option fulfillment.FulfillmentOption) []Contract {
	countries := make(map[string]struct{}, len(option.Countries))
	for _, code := range option.CountryCodes() {
		countries[strings.ToUpper(code)] = struct{}{}
	}

	var matching []Contract
	for _, ct := range contracts {
		if !ct.IsActive || ct.Carrier.Code != option.Carrier {
			continue
		}
		if _, ok := countries[strings.ToUpper(ct.Country)]; ok {
			matching = append(matching, ct)
		}
	}
	return matching
}
