// Package handler exposes the cart, pricing, coupon, shipment and checkout
// services over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/courier-pricing/internal/domain/cart"
	"github.com/xenking/courier-pricing/internal/domain/checkout"
	"github.com/xenking/courier-pricing/internal/domain/coupon"
	"github.com/xenking/courier-pricing/internal/domain/shipment"
)

// CartService is the cart session service.
type CartService interface {
	Get(ctx context.Context, cartID string) (cart.Snapshot, error)
	AddItem(ctx context.Context, cartID string, req cart.AddItemRequest) (cart.Snapshot, error)
	RemoveItem(ctx context.Context, cartID, lineID string) (cart.Snapshot, error)
	SetQuantity(ctx context.Context, cartID, lineID string, quantity int) (cart.Snapshot, error)
	AddExtra(ctx context.Context, cartID, lineID string, extra cart.Extra) (cart.Snapshot, error)
	IncrementExtra(ctx context.Context, cartID, lineID, extraID string) (cart.Snapshot, error)
	DecrementExtra(ctx context.Context, cartID, lineID, extraID string) (cart.Snapshot, error)
	RemoveExtra(ctx context.Context, cartID, lineID, extraID string) (cart.Snapshot, error)
	Clear(ctx context.Context, cartID string) (cart.Snapshot, error)
	SetCharges(ctx context.Context, cartID string, charges cart.Charges) (cart.Snapshot, error)
}

// CheckoutService prices carts and starts orders.
type CheckoutService interface {
	Preview(ctx context.Context, req checkout.PreviewRequest) (*checkout.Result, error)
	Start(ctx context.Context, req checkout.StartRequest) (*checkout.Result, error)
}

// Handler serves the /api routes.
type Handler struct {
	carts    CartService
	coupons  coupon.Validator
	quoter   checkout.Quoter
	checkout CheckoutService
}

// NewHandler creates a Handler.
func NewHandler(carts CartService, coupons coupon.Validator, quoter checkout.Quoter, co CheckoutService) *Handler {
	return &Handler{
		carts:    carts,
		coupons:  coupons,
		quoter:   quoter,
		checkout: co,
	}
}

var _ checkout.Quoter = (*shipment.Resolver)(nil)

// Mount registers the API under /api on r. throttle guards the routes that
// call paid upstream services; it may be nil.
func (h *Handler) Mount(r chi.Router, throttle func(http.Handler) http.Handler) {
	if throttle == nil {
		throttle = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/carts/{cartID}", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Put("/charges", h.setCharges)
			r.Post("/totals", h.cartTotals)

			r.Post("/items", h.addItem)
			r.Route("/items/{lineID}", func(r chi.Router) {
				r.Patch("/", h.setQuantity)
				r.Delete("/", h.removeItem)
				r.Post("/extras", h.addExtra)
				r.Post("/extras/{extraID}/increment", h.incrementExtra)
				r.Post("/extras/{extraID}/decrement", h.decrementExtra)
				r.Delete("/extras/{extraID}", h.removeExtra)
			})
		})

		r.Post("/coupons/validate", h.validateCoupon)
		r.With(throttle).Post("/shipments/quote", h.quoteShipment)
		r.With(throttle).Post("/checkout/start", h.startCheckout)
	})
}
