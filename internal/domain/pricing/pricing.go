// Package pricing turns a cart subtotal, an optional coupon, fees and a tip
// selection into a checkout breakdown.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/courier-pricing/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// TipSelection holds the customer's tip choice. A positive ManualAmount
// supersedes Percent; Percent is kept so it can be shown again when the
// manual amount is reset to zero.
type TipSelection struct {
	Percent      decimal.Decimal `json:"percent"`
	ManualAmount decimal.Decimal `json:"manualAmount"`
}

// Input is everything ComputeTotals needs. A nil Coupon means no discount.
type Input struct {
	Subtotal    decimal.Decimal
	Coupon      *coupon.Coupon
	ShippingFee decimal.Decimal
	ServiceFee  decimal.Decimal
	Tip         TipSelection
}

// Totals is the checkout breakdown.
type Totals struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	Discount         decimal.Decimal `json:"discount"`
	NetAfterDiscount decimal.Decimal `json:"netAfterDiscount"`
	ShippingFee      decimal.Decimal `json:"shippingFee"`
	ServiceFee       decimal.Decimal `json:"serviceFee"`
	Tip              decimal.Decimal `json:"tip"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
}

// ComputeTotals calculates the checkout breakdown. It never fails: negative
// amounts are treated as zero and an unknown discount type yields no
// discount. Shipping, service fee and tip apply even when the coupon covers
// the whole subtotal.
func ComputeTotals(in Input) Totals {
	subtotal := floorAtZero(in.Subtotal)
	shipping := floorAtZero(in.ShippingFee)
	service := floorAtZero(in.ServiceFee)

	discount := Discount(subtotal, in.Coupon)
	tip := Tip(subtotal, in.Tip)

	net := floorAtZero(subtotal.Sub(discount))

	return Totals{
		Subtotal:         subtotal.Round(2),
		Discount:         discount,
		NetAfterDiscount: net.Round(2),
		ShippingFee:      shipping.Round(2),
		ServiceFee:       service.Round(2),
		Tip:              tip,
		GrandTotal:       net.Add(shipping).Add(service).Add(tip).Round(2),
	}
}

// Discount returns the amount c takes off subtotal, rounded to 2 places.
func Discount(subtotal decimal.Decimal, c *coupon.Coupon) decimal.Decimal {
	if c == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}
	value := floorAtZero(c.DiscountValue)

	var amount decimal.Decimal
	switch c.DiscountType {
	case coupon.DiscountPercentage:
		amount = subtotal.Mul(value).Div(hundred)
	case coupon.DiscountFixedAmount:
		amount = decimal.Min(subtotal, value)
	default:
		return decimal.Zero
	}
	return amount.Round(2)
}

// Tip returns the tip for subtotal, rounded to 2 places.
func Tip(subtotal decimal.Decimal, sel TipSelection) decimal.Decimal {
	if sel.ManualAmount.IsPositive() {
		return sel.ManualAmount.Round(2)
	}
	return floorAtZero(subtotal.Mul(floorAtZero(sel.Percent)).Div(hundred)).Round(2)
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
