package shipment

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNoRouteFound is returned when the directions service reports that
	// no drivable path exists between the two points.
	ErrNoRouteFound = errors.New("no route found")
	// ErrNoActiveRule is returned by a PricingRuleStore without an active rule.
	ErrNoActiveRule = errors.New("no active pricing rule")
	// ErrNoMatch is returned by a Geocoder when the query has no result.
	ErrNoMatch = errors.New("no geocoding match")
)

// ConfigurationError reports a deployment problem such as a missing pricing
// rule or geocoder credentials. It is not retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Side names one end of a shipment.
type Side string

const (
	SideOrigin      Side = "origin"
	SideDestination Side = "destination"
)

// RouteUnavailableError indicates the coordinates of one side could not be
// resolved even after geocoding.
type RouteUnavailableError struct {
	Side Side
	Err  error
}

func (e *RouteUnavailableError) Error() string {
	return fmt.Sprintf("route unavailable: %s unresolved: %v", e.Side, e.Err)
}

func (e *RouteUnavailableError) Unwrap() error { return e.Err }

// TransientError wraps network failures and timeouts talking to the
// geocoder or the directions service. Callers may retry.
type TransientError struct {
	Service string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RoutingError is a non-transient failure reported by the directions
// service, or a response that could not be used.
type RoutingError struct {
	Code   string
	Status int
	Reason string
}

func (e *RoutingError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("routing failed: code %s: %s", e.Code, e.Reason)
	case e.Status != 0:
		return fmt.Sprintf("routing failed: status %d: %s", e.Status, e.Reason)
	default:
		return "routing failed: " + e.Reason
	}
}

// NotFoundError indicates the partner or delivery address does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}
