package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/courier-pricing/internal/domain/cart"
)

func cartID(r *http.Request) string {
	return chi.URLParam(r, "cartID")
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, snap cart.Snapshot, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCartResponse(cartID(r), snap))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.Get(r.Context(), cartID(r))
	h.respondCart(w, r, snap, err)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.Clear(r.Context(), cartID(r))
	h.respondCart(w, r, snap, err)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, err := h.carts.AddItem(r.Context(), cartID(r), req.domain())
	h.respondCart(w, r, snap, err)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, err := h.carts.SetQuantity(r.Context(), cartID(r), chi.URLParam(r, "lineID"), req.Quantity)
	h.respondCart(w, r, snap, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.RemoveItem(r.Context(), cartID(r), chi.URLParam(r, "lineID"))
	h.respondCart(w, r, snap, err)
}

func (h *Handler) addExtra(w http.ResponseWriter, r *http.Request) {
	var req extraRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, err := h.carts.AddExtra(r.Context(), cartID(r), chi.URLParam(r, "lineID"), req.domain())
	h.respondCart(w, r, snap, err)
}

func (h *Handler) incrementExtra(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.IncrementExtra(r.Context(), cartID(r), chi.URLParam(r, "lineID"), chi.URLParam(r, "extraID"))
	h.respondCart(w, r, snap, err)
}

func (h *Handler) decrementExtra(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.DecrementExtra(r.Context(), cartID(r), chi.URLParam(r, "lineID"), chi.URLParam(r, "extraID"))
	h.respondCart(w, r, snap, err)
}

func (h *Handler) removeExtra(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.RemoveExtra(r.Context(), cartID(r), chi.URLParam(r, "lineID"), chi.URLParam(r, "extraID"))
	h.respondCart(w, r, snap, err)
}

func (h *Handler) setCharges(w http.ResponseWriter, r *http.Request) {
	var req chargesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, err := h.carts.SetCharges(r.Context(), cartID(r), cart.Charges{
		ShippingFee: req.ShippingFee,
		ServiceFee:  req.ServiceFee,
	})
	h.respondCart(w, r, snap, err)
}
