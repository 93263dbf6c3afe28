package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/courier-pricing/internal/domain/cart"
	"github.com/xenking/courier-pricing/internal/domain/checkout"
	"github.com/xenking/courier-pricing/internal/domain/coupon"
	"github.com/xenking/courier-pricing/internal/domain/shipment"
)

const (
	msgRouteUnavailable = "no se pudo calcular la ruta"
	msgNoRoute          = "no existe una ruta de entrega"
)

// mapError converts a service error to an HTTP status and a client-facing
// message.
func mapError(err error) (int, string) {
	var (
		reqErr      *RequestError
		mismatch    *cart.PartnerMismatchError
		unavailable *shipment.RouteUnavailableError
		configErr   *shipment.ConfigurationError
		notFound    *shipment.NotFoundError
		transient   *shipment.TransientError
		couponDown  *coupon.UnavailableError
		routing     *shipment.RoutingError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.Message
	case errors.As(err, &mismatch):
		return http.StatusConflict, mismatch.Error()
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict, checkout.ErrEmptyCart.Error()
	// Checked before the transient types it may wrap.
	case errors.As(err, &unavailable):
		return http.StatusUnprocessableEntity, msgRouteUnavailable
	case errors.Is(err, shipment.ErrNoRouteFound):
		return http.StatusUnprocessableEntity, msgNoRoute
	case errors.As(err, &configErr):
		return http.StatusInternalServerError, configErr.Reason
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error()
	case errors.As(err, &transient):
		return http.StatusServiceUnavailable, transient.Service + " is temporarily unavailable"
	case errors.As(err, &couponDown):
		return http.StatusServiceUnavailable, "coupon validation is temporarily unavailable"
	case errors.As(err, &routing):
		return http.StatusBadGateway, "directions service failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "upstream timeout"
	}
	return http.StatusInternalServerError, "internal server error"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapError(err)

	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, r, status, errorResponse{Code: status, Message: msg})
}
