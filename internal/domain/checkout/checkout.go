// Package checkout composes the cart, coupon, shipment and pricing
// components into the order-start flow.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/courier-pricing/internal/domain/cart"
	"github.com/xenking/courier-pricing/internal/domain/coupon"
	"github.com/xenking/courier-pricing/internal/domain/pricing"
	"github.com/xenking/courier-pricing/internal/domain/shipment"
)

// ErrEmptyCart is returned when checkout starts on a cart without lines.
var ErrEmptyCart = errors.New("cart is empty")

// Carts is the part of the cart session service checkout needs.
type Carts interface {
	Get(ctx context.Context, cartID string) (cart.Snapshot, error)
	SetCharges(ctx context.Context, cartID string, charges cart.Charges) (cart.Snapshot, error)
}

// Quoter prices the delivery from a partner to an address.
type Quoter interface {
	Quote(ctx context.Context, partnerID, addressID string) (*shipment.Quote, error)
}

// PreviewRequest holds the input for recomputing a cart's totals.
type PreviewRequest struct {
	CartID     string
	CouponCode string
	Tip        pricing.TipSelection
}

// StartRequest holds the input for starting an order.
type StartRequest struct {
	CartID     string
	AddressID  string
	CouponCode string
	Tip        pricing.TipSelection
}

// Result is the priced state of a cart. Coupon is nil when no code was
// given; an invalid code is reported there and contributes no discount.
type Result struct {
	Snapshot cart.Snapshot
	Coupon   *coupon.Result
	Quote    *shipment.Quote
	Totals   pricing.Totals
}

// Service runs checkout flows.
type Service struct {
	carts   Carts
	coupons coupon.Validator
	quoter  Quoter
}

// NewService creates a checkout Service with the required domain
// dependencies.
func NewService(carts Carts, coupons coupon.Validator, quoter Quoter) *Service {
	return &Service{
		carts:   carts,
		coupons: coupons,
		quoter:  quoter,
	}
}

// Preview computes the totals of a cart with its stored charges.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (*Result, error) {
	snap, err := s.carts.Get(ctx, req.CartID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	subtotal := snap.Cart.Subtotal()
	res, err := s.validateCoupon(ctx, req.CouponCode, subtotal)
	if err != nil {
		return nil, err
	}

	return &Result{
		Snapshot: snap,
		Coupon:   res,
		Totals:   computeTotals(subtotal, res, snap.Charges, req.Tip),
	}, nil
}

// Start validates the coupon and quotes the shipment concurrently, stores
// the quoted shipping fee in the cart charges and returns the totals.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Result, error) {
	snap, err := s.carts.Get(ctx, req.CartID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if snap.Cart.Empty() {
		return nil, ErrEmptyCart
	}
	subtotal := snap.Cart.Subtotal()

	var (
		couponRes *coupon.Result
		quote     *shipment.Quote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.validateCoupon(gctx, req.CouponCode, subtotal)
		couponRes = res
		return err
	})
	g.Go(func() error {
		q, err := s.quoter.Quote(gctx, snap.Cart.PartnerID(), req.AddressID)
		if err != nil {
			return errors.Wrap(err, "quote shipment")
		}
		quote = q
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap, err = s.carts.SetCharges(ctx, req.CartID, cart.Charges{
		ShippingFee: quote.ShippingCost,
		ServiceFee:  snap.Charges.ServiceFee,
	})
	if err != nil {
		return nil, errors.Wrap(err, "store shipping fee")
	}

	zctx.From(ctx).Info("Checkout started",
		zap.String("cart_id", req.CartID),
		zap.String("partner_id", snap.Cart.PartnerID()),
		zap.Float64("distance_m", quote.DistanceMeters),
		zap.Stringer("shipping_cost", quote.ShippingCost),
	)

	return &Result{
		Snapshot: snap,
		Coupon:   couponRes,
		Quote:    quote,
		Totals:   computeTotals(snap.Cart.Subtotal(), couponRes, snap.Charges, req.Tip),
	}, nil
}

func (s *Service) validateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (*coupon.Result, error) {
	if code == "" {
		return nil, nil
	}
	res, err := s.coupons.Validate(ctx, code, subtotal)
	if err != nil {
		return nil, errors.Wrap(err, "validate coupon")
	}
	return res, nil
}

func computeTotals(subtotal decimal.Decimal, res *coupon.Result, charges cart.Charges, tip pricing.TipSelection) pricing.Totals {
	in := pricing.Input{
		Subtotal:    subtotal,
		ShippingFee: charges.ShippingFee,
		ServiceFee:  charges.ServiceFee,
		Tip:         tip,
	}
	if res != nil && res.Valid {
		in.Coupon = res.Coupon
	}
	return pricing.ComputeTotals(in)
}
