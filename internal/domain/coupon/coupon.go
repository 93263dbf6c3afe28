// Package coupon describes discount coupons as returned by the external
// coupon validation service.
package coupon

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount applies a fixed amount capped at the subtotal.
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// Coupon is a validated discount descriptor. It is never mutated after
// validation; a new code replaces it as a whole.
type Coupon struct {
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
}

// Result is the outcome of a validation call that reached the service.
// An invalid or expired code is a normal result with Valid set to false.
type Result struct {
	Valid   bool
	Message string
	Coupon  *Coupon
}

// Validator checks a coupon code against the current merchandise subtotal.
//
// Implementations return *UnavailableError when the service could not give
// an answer, so callers never mistake an outage for an invalid code.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Result, error)
}

// UnavailableError indicates the coupon could not be validated because the
// validation service timed out, was unreachable or failed.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("coupon validation unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
