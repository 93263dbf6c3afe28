package handler

import (
	"net/http"

	"github.com/xenking/courier-pricing/internal/domain/checkout"
)

// cartTotals prices the cart with its stored charges, an optional coupon and
// a tip.
func (h *Handler) cartTotals(w http.ResponseWriter, r *http.Request) {
	var req totalsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id := cartID(r)
	res, err := h.checkout.Preview(r.Context(), checkout.PreviewRequest{
		CartID:     id,
		CouponCode: req.CouponCode,
		Tip:        req.Tip.domain(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCheckoutResponse(id, res))
}

// validateCoupon answers 200 for both valid and invalid codes.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.coupons.Validate(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCouponResponse(res))
}

func (h *Handler) quoteShipment(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	quote, err := h.quoter.Quote(r.Context(), req.PartnerID, req.AddressID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, quote)
}

func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.checkout.Start(r.Context(), checkout.StartRequest{
		CartID:     req.CartID,
		AddressID:  req.AddressID,
		CouponCode: req.CouponCode,
		Tip:        req.Tip.domain(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCheckoutResponse(req.CartID, res))
}
