package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/courier-pricing/internal/domain/cart"
	"github.com/xenking/courier-pricing/internal/domain/pricing"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Compare money fields numerically in gte/lte tags.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// RequestError is a malformed or invalid request body.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &RequestError{Message: "invalid request body: " + err.Error()}
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestError{Message: err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldPath(fe)+" "+validationMessage(fe))
	}
	return &RequestError{Message: strings.Join(msgs, "; ")}
}

// fieldPath drops the top-level struct name, e.g. "tip.percent".
func fieldPath(fe validator.FieldError) string {
	_, path, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return path
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}

type extraRequest struct {
	ExtraID  string          `json:"extraId" validate:"required"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity int             `json:"quantity" validate:"gte=0"`
}

func (e extraRequest) domain() cart.Extra {
	return cart.Extra{
		ExtraID:  e.ExtraID,
		Name:     e.Name,
		Price:    e.Price,
		Quantity: max(e.Quantity, 1),
	}
}

type addItemRequest struct {
	ProductID string          `json:"productId" validate:"required"`
	PartnerID string          `json:"partnerId" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	Quantity  int             `json:"quantity" validate:"gte=0"`
	Extras    []extraRequest  `json:"extras" validate:"omitempty,dive"`
	// MergeByProduct defaults to true.
	MergeByProduct *bool `json:"mergeByProduct"`
	ReplaceCart    bool  `json:"replaceCart"`
}

func (req addItemRequest) domain() cart.AddItemRequest {
	extras := make([]cart.Extra, 0, len(req.Extras))
	for _, e := range req.Extras {
		extras = append(extras, e.domain())
	}
	merge := true
	if req.MergeByProduct != nil {
		merge = *req.MergeByProduct
	}
	return cart.AddItemRequest{
		Item: cart.Item{
			ProductID: req.ProductID,
			PartnerID: req.PartnerID,
			Name:      req.Name,
			ImageRef:  req.Image,
			UnitPrice: req.UnitPrice,
		},
		Quantity:       req.Quantity,
		Extras:         extras,
		MergeByProduct: merge,
		ReplaceCart:    req.ReplaceCart,
	}
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type chargesRequest struct {
	ShippingFee decimal.Decimal `json:"shippingFee" validate:"gte=0"`
	ServiceFee  decimal.Decimal `json:"serviceFee" validate:"gte=0"`
}

type tipRequest struct {
	Percent      decimal.Decimal `json:"percent" validate:"gte=0,lte=100"`
	ManualAmount decimal.Decimal `json:"manualAmount" validate:"gte=0"`
}

func (t tipRequest) domain() pricing.TipSelection {
	return pricing.TipSelection{Percent: t.Percent, ManualAmount: t.ManualAmount}
}

type totalsRequest struct {
	CouponCode string     `json:"couponCode" validate:"max=64"`
	Tip        tipRequest `json:"tip"`
}

type validateCouponRequest struct {
	Code     string          `json:"code" validate:"required,max=64"`
	Subtotal decimal.Decimal `json:"subtotal" validate:"gte=0"`
}

type quoteRequest struct {
	PartnerID string `json:"partnerId" validate:"required"`
	AddressID string `json:"addressId" validate:"required"`
}

type checkoutRequest struct {
	CartID     string     `json:"cartId" validate:"required"`
	AddressID  string     `json:"addressId" validate:"required"`
	CouponCode string     `json:"couponCode" validate:"max=64"`
	Tip        tipRequest `json:"tip"`
}
