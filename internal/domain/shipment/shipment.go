// Package shipment quotes the delivery cost between a partner and a delivery
// address: it resolves both coordinates, asks a directions service for a
// driving route and prices the distance with the active pricing rule.
package shipment

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
)

// Coordinates is a WGS84 point in longitude, latitude order.
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

// Route is the first route returned by the directions service.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	Geometry        []Coordinates
}

// PricingRule is the distance-based fee schedule.
type PricingRule struct {
	ID              int64
	BaseFee         decimal.Decimal
	FeePerKilometer decimal.Decimal
	MinFee          decimal.Decimal
	IsActive        bool
}

// Quote is the priced route between a partner and a delivery address.
type Quote struct {
	DistanceMeters  float64         `json:"distanceMeters"`
	DurationSeconds float64         `json:"durationSeconds"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	Origin          Coordinates     `json:"origin"`
	Destination     Coordinates     `json:"destination"`
	Geometry        []Coordinates   `json:"geometry,omitempty"`
}

// Partner is the merchant side of a shipment. Location is nil when the
// stored point is absent or unreadable.
type Partner struct {
	ID       string
	Address  string
	Location *Coordinates
}

// DeliveryAddress is the customer side of a shipment.
type DeliveryAddress struct {
	ID             string
	LocationType   string
	LocationNumber string
	Location       *Coordinates
}

// CoordinateResolver resolves the two ends of a shipment. A side that cannot
// be resolved is reported as an error.
type CoordinateResolver interface {
	Origin(ctx context.Context, partnerID string) (Coordinates, error)
	Destination(ctx context.Context, addressID string) (Coordinates, error)
}

// Geocoder turns a free-text address into the coordinates of its first match.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Coordinates, error)
}

// RouteProvider requests a driving route with full geometry.
type RouteProvider interface {
	Route(ctx context.Context, origin, destination Coordinates) (*Route, error)
}

// PricingRuleStore returns the active pricing rule, or ErrNoActiveRule.
type PricingRuleStore interface {
	ActiveRule(ctx context.Context) (*PricingRule, error)
}

// LocationStore reads partner and delivery address records and stores
// coordinates resolved for them.
type LocationStore interface {
	Partner(ctx context.Context, id string) (*Partner, error)
	DeliveryAddress(ctx context.Context, id string) (*DeliveryAddress, error)
	SetPartnerLocation(ctx context.Context, id string, c Coordinates) error
	SetDeliveryAddressLocation(ctx context.Context, id string, c Coordinates) error
}
