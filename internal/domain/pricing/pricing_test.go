package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/courier-pricing/internal/domain/coupon"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func percent(v string) *coupon.Coupon {
	return &coupon.Coupon{Code: "PCT", DiscountType: coupon.DiscountPercentage, DiscountValue: d(v)}
}

func fixed(v string) *coupon.Coupon {
	return &coupon.Coupon{Code: "FIX", DiscountType: coupon.DiscountFixedAmount, DiscountValue: d(v)}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name         string
		in           Input
		wantDiscount string
		wantNet      string
		wantTip      string
		wantTotal    string
	}{
		{
			name: "percentage coupon with percent tip",
			in: Input{
				Subtotal:    d("100"),
				Coupon:      percent("10"),
				ShippingFee: d("5"),
				ServiceFee:  d("2"),
				Tip:         TipSelection{Percent: d("9")},
			},
			wantDiscount: "10",
			wantNet:      "90",
			wantTip:      "9",
			wantTotal:    "106",
		},
		{
			name: "manual tip supersedes percent",
			in: Input{
				Subtotal: d("100"),
				Tip:      TipSelection{Percent: d("9"), ManualAmount: d("5")},
			},
			wantDiscount: "0",
			wantNet:      "100",
			wantTip:      "5",
			wantTotal:    "105",
		},
		{
			name: "zero manual tip falls back to percent",
			in: Input{
				Subtotal: d("50"),
				Tip:      TipSelection{Percent: d("10"), ManualAmount: d("0")},
			},
			wantDiscount: "0",
			wantNet:      "50",
			wantTip:      "5",
			wantTotal:    "55",
		},
		{
			name: "fixed coupon capped at subtotal still pays fees",
			in: Input{
				Subtotal:    d("20"),
				Coupon:      fixed("50"),
				ShippingFee: d("5"),
				ServiceFee:  d("2"),
			},
			wantDiscount: "20",
			wantNet:      "0",
			wantTip:      "0",
			wantTotal:    "7",
		},
		{
			name: "fixed coupon below subtotal",
			in: Input{
				Subtotal: d("30"),
				Coupon:   fixed("7.5"),
			},
			wantDiscount: "7.5",
			wantNet:      "22.5",
			wantTip:      "0",
			wantTotal:    "22.5",
		},
		{
			name: "percentage over 100 floors net at zero",
			in: Input{
				Subtotal:   d("40"),
				Coupon:     percent("150"),
				ServiceFee: d("1"),
			},
			wantDiscount: "60",
			wantNet:      "0",
			wantTip:      "0",
			wantTotal:    "1",
		},
		{
			name: "unknown discount type gives no discount",
			in: Input{
				Subtotal: d("40"),
				Coupon:   &coupon.Coupon{Code: "BOGO", DiscountType: "buy_one_get_one", DiscountValue: d("10")},
			},
			wantDiscount: "0",
			wantNet:      "40",
			wantTip:      "0",
			wantTotal:    "40",
		},
		{
			name: "empty cart gets no discount",
			in: Input{
				Subtotal:    d("0"),
				Coupon:      fixed("10"),
				ShippingFee: d("5"),
			},
			wantDiscount: "0",
			wantNet:      "0",
			wantTip:      "0",
			wantTotal:    "5",
		},
		{
			name: "negative inputs are treated as zero",
			in: Input{
				Subtotal:    d("10"),
				ShippingFee: d("-3"),
				ServiceFee:  d("-1"),
				Tip:         TipSelection{Percent: d("-5"), ManualAmount: d("-2")},
			},
			wantDiscount: "0",
			wantNet:      "10",
			wantTip:      "0",
			wantTotal:    "10",
		},
		{
			name: "results are rounded to cents",
			in: Input{
				Subtotal: d("33.33"),
				Coupon:   percent("15"),
				Tip:      TipSelection{Percent: d("12.5")},
			},
			wantDiscount: "5",
			wantNet:      "28.33",
			wantTip:      "4.17",
			wantTotal:    "32.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.in)

			assert.True(t, d(tt.wantDiscount).Equal(got.Discount), "discount: got %s", got.Discount)
			assert.True(t, d(tt.wantNet).Equal(got.NetAfterDiscount), "net: got %s", got.NetAfterDiscount)
			assert.True(t, d(tt.wantTip).Equal(got.Tip), "tip: got %s", got.Tip)
			assert.True(t, d(tt.wantTotal).Equal(got.GrandTotal), "total: got %s", got.GrandTotal)
		})
	}
}

func TestComputeTotals_Idempotent(t *testing.T) {
	in := Input{
		Subtotal:    d("87.40"),
		Coupon:      percent("12"),
		ShippingFee: d("4.20"),
		ServiceFee:  d("1.99"),
		Tip:         TipSelection{Percent: d("10")},
	}

	first := ComputeTotals(in)
	second := ComputeTotals(in)

	assert.Equal(t, first, second)
	assert.True(t, d("12").Equal(in.Coupon.DiscountValue), "coupon must not be mutated")
}

func TestDiscount_FixedCap(t *testing.T) {
	subtotal := d("15")
	got := Discount(subtotal, fixed("25"))

	assert.True(t, subtotal.Equal(got))
	assert.True(t, ComputeTotals(Input{Subtotal: subtotal, Coupon: fixed("25")}).NetAfterDiscount.IsZero())
}
