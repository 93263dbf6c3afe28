package shipment

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/xenking/courier-pricing/internal/domain/shipment"

var thousand = decimal.NewFromInt(1000)

// Resolver produces shipment quotes.
type Resolver struct {
	coords CoordinateResolver
	routes RouteProvider
	rules  PricingRuleStore

	tracer  trace.Tracer
	quotes  metric.Int64Counter
	latency metric.Float64Histogram
}

// Option configures a Resolver.
type Option func(*resolverOptions)

type resolverOptions struct {
	tp trace.TracerProvider
	mp metric.MeterProvider
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *resolverOptions) { o.tp = tp }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *resolverOptions) { o.mp = mp }
}

// NewResolver creates a Resolver.
func NewResolver(coords CoordinateResolver, routes RouteProvider, rules PricingRuleStore, opts ...Option) (*Resolver, error) {
	o := resolverOptions{
		tp: otel.GetTracerProvider(),
		mp: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.mp.Meter(instrumentationName)
	quotes, err := meter.Int64Counter("shipment.quotes",
		metric.WithDescription("Shipment quote requests by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create quotes counter")
	}
	latency, err := meter.Float64Histogram("shipment.quote.duration",
		metric.WithDescription("Shipment quote latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create latency histogram")
	}

	return &Resolver{
		coords:  coords,
		routes:  routes,
		rules:   rules,
		tracer:  o.tp.Tracer(instrumentationName),
		quotes:  quotes,
		latency: latency,
	}, nil
}

// Quote resolves both ends, requests a route and prices it. Origin and
// destination are resolved concurrently; routing waits for both.
func (r *Resolver) Quote(ctx context.Context, partnerID, addressID string) (_ *Quote, rerr error) {
	ctx, span := r.tracer.Start(ctx, "shipment.Quote", trace.WithAttributes(
		attribute.String("partner.id", partnerID),
		attribute.String("address.id", addressID),
	))
	start := time.Now()
	defer func() {
		outcome := Outcome(rerr)
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		r.quotes.Add(ctx, 1, attrs)
		r.latency.Record(ctx, time.Since(start).Seconds(), attrs)
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	var origin, destination Coordinates
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := r.coords.Origin(gctx, partnerID)
		if err != nil {
			return errors.Wrap(err, "resolve origin")
		}
		origin = c
		return nil
	})
	g.Go(func() error {
		c, err := r.coords.Destination(gctx, addressID)
		if err != nil {
			return errors.Wrap(err, "resolve destination")
		}
		destination = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	route, err := r.routes.Route(ctx, origin, destination)
	if err != nil {
		return nil, errors.Wrap(err, "request route")
	}
	if !finite(route.DistanceMeters) || !finite(route.DurationSeconds) {
		return nil, &RoutingError{Reason: "route metrics are not finite numbers"}
	}

	rule, err := r.rules.ActiveRule(ctx)
	if err != nil {
		if errors.Is(err, ErrNoActiveRule) {
			return nil, &ConfigurationError{Reason: "no active pricing rule"}
		}
		return nil, errors.Wrap(err, "get pricing rule")
	}

	span.SetAttributes(attribute.Float64("route.distance_m", route.DistanceMeters))
	return &Quote{
		DistanceMeters:  route.DistanceMeters,
		DurationSeconds: route.DurationSeconds,
		ShippingCost:    Price(*rule, route.DistanceMeters),
		Origin:          origin,
		Destination:     destination,
		Geometry:        route.Geometry,
	}, nil
}

// Price applies rule to a distance: max(base + km × perKm, min), rounded to
// 2 places.
func Price(rule PricingRule, distanceMeters float64) decimal.Decimal {
	km := decimal.NewFromFloat(distanceMeters).Div(thousand)
	cost := rule.BaseFee.Add(km.Mul(rule.FeePerKilometer))
	return decimal.Max(cost, rule.MinFee).Round(2)
}

// Outcome classifies a Quote error for metrics and logs.
func Outcome(err error) string {
	var (
		cfgErr      *ConfigurationError
		unavailable *RouteUnavailableError
		transient   *TransientError
		routingErr  *RoutingError
		notFoundErr *NotFoundError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoRouteFound):
		return "no_route"
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &notFoundErr):
		return "not_found"
	case errors.As(err, &unavailable):
		return "route_unavailable"
	case errors.As(err, &transient), errors.Is(err, context.DeadlineExceeded):
		return "transient"
	case errors.As(err, &routingErr):
		return "routing"
	default:
		return "error"
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
