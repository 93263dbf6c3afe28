package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/courier-pricing/internal/domain/cart"
	"github.com/xenking/courier-pricing/internal/domain/checkout"
	"github.com/xenking/courier-pricing/internal/domain/coupon"
	"github.com/xenking/courier-pricing/internal/domain/pricing"
	"github.com/xenking/courier-pricing/internal/domain/shipment"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cartResponse struct {
	CartID    string          `json:"cartId"`
	PartnerID string          `json:"partnerId,omitempty"`
	Cart      cart.Ledger     `json:"cart"`
	Charges   cart.Charges    `json:"charges"`
	Units     int             `json:"units"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func newCartResponse(cartID string, snap cart.Snapshot) cartResponse {
	ledger := snap.Cart
	if ledger.Lines == nil {
		ledger.Lines = []cart.Line{}
	}
	return cartResponse{
		CartID:    cartID,
		PartnerID: snap.Cart.PartnerID(),
		Cart:      ledger,
		Charges:   snap.Charges,
		Units:     snap.Cart.Units(),
		Subtotal:  snap.Cart.Subtotal().Round(2),
	}
}

type couponResponse struct {
	Valid   bool           `json:"valid"`
	Message string         `json:"message,omitempty"`
	Coupon  *coupon.Coupon `json:"coupon,omitempty"`
}

func newCouponResponse(res *coupon.Result) *couponResponse {
	if res == nil {
		return nil
	}
	return &couponResponse{Valid: res.Valid, Message: res.Message, Coupon: res.Coupon}
}

type checkoutResponse struct {
	Cart   cartResponse    `json:"cart"`
	Coupon *couponResponse `json:"coupon,omitempty"`
	Quote  *shipment.Quote `json:"quote,omitempty"`
	Totals pricing.Totals  `json:"totals"`
}

func newCheckoutResponse(cartID string, res *checkout.Result) checkoutResponse {
	return checkoutResponse{
		Cart:   newCartResponse(cartID, res.Snapshot),
		Coupon: newCouponResponse(res.Coupon),
		Quote:  res.Quote,
		Totals: res.Totals,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Debug("Write response", zap.Error(err))
	}
}
