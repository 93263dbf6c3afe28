package shipment

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// FallbackResolver reads stored coordinates and geocodes the record's
// address when the stored point is missing. Geocoded points are written back
// on a best-effort basis.
type FallbackResolver struct {
	store    LocationStore
	geocoder Geocoder
	region   string
}

// NewFallbackResolver creates a FallbackResolver. region is appended to
// delivery address queries, e.g. "Lima, Peru".
func NewFallbackResolver(store LocationStore, geocoder Geocoder, region string) *FallbackResolver {
	return &FallbackResolver{store: store, geocoder: geocoder, region: region}
}

var _ CoordinateResolver = (*FallbackResolver)(nil)

// Origin resolves the partner's coordinates.
func (r *FallbackResolver) Origin(ctx context.Context, partnerID string) (Coordinates, error) {
	p, err := r.store.Partner(ctx, partnerID)
	if err != nil {
		return Coordinates{}, errors.Wrap(err, "get partner")
	}
	if p.Location != nil {
		return *p.Location, nil
	}

	c, err := r.geocode(ctx, SideOrigin, strings.TrimSpace(p.Address))
	if err != nil {
		return Coordinates{}, err
	}
	r.persist(ctx, SideOrigin, partnerID, func(ctx context.Context) error {
		return r.store.SetPartnerLocation(ctx, partnerID, c)
	})
	return c, nil
}

// Destination resolves the delivery address coordinates.
func (r *FallbackResolver) Destination(ctx context.Context, addressID string) (Coordinates, error) {
	a, err := r.store.DeliveryAddress(ctx, addressID)
	if err != nil {
		return Coordinates{}, errors.Wrap(err, "get delivery address")
	}
	if a.Location != nil {
		return *a.Location, nil
	}

	c, err := r.geocode(ctx, SideDestination, DestinationQuery(a, r.region))
	if err != nil {
		return Coordinates{}, err
	}
	r.persist(ctx, SideDestination, addressID, func(ctx context.Context) error {
		return r.store.SetDeliveryAddressLocation(ctx, addressID, c)
	})
	return c, nil
}

// DestinationQuery builds the geocoding query for a delivery address:
// "{location_type} {location_number}, {region}".
func DestinationQuery(a *DeliveryAddress, region string) string {
	street := strings.Join(strings.Fields(a.LocationType+" "+a.LocationNumber), " ")
	if street == "" {
		return ""
	}
	if region = strings.TrimSpace(region); region == "" {
		return street
	}
	return street + ", " + region
}

func (r *FallbackResolver) geocode(ctx context.Context, side Side, query string) (Coordinates, error) {
	if query == "" {
		return Coordinates{}, &RouteUnavailableError{Side: side, Err: errors.New("no address to geocode")}
	}

	c, err := r.geocoder.Geocode(ctx, query)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return Coordinates{}, err
		}
		zctx.From(ctx).Warn("Geocoding fallback failed",
			zap.String("side", string(side)),
			zap.String("query", query),
			zap.Error(err),
		)
		return Coordinates{}, &RouteUnavailableError{Side: side, Err: err}
	}
	return c, nil
}

func (r *FallbackResolver) persist(ctx context.Context, side Side, id string, save func(context.Context) error) {
	if err := save(ctx); err != nil {
		zctx.From(ctx).Warn("Persist geocoded location failed",
			zap.String("side", string(side)),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}
