// Package osrm implements shipment.RouteProvider against an OSRM-compatible
// directions API.
package osrm

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/courier-pricing/internal/domain/shipment"
)

const (
	defaultBaseURL       = "https://router.project-osrm.org"
	defaultProfile       = "driving"
	defaultTimeout       = 5 * time.Second
	serviceName          = "directions"
	bodyLimit      int64 = 8 << 20

	codeOk      = "Ok"
	codeNoRoute = "NoRoute"
)

// Client requests driving routes.
type Client struct {
	httpClient *http.Client
	baseURL    string
	profile    string
	timeout    time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the directions service base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithProfile sets the routing profile. Defaults to "driving".
func WithProfile(profile string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(profile); trimmed != "" {
			c.profile = trimmed
		}
	}
}

// WithTimeout bounds each route request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a directions client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		profile: defaultProfile,
		timeout: defaultTimeout,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

var _ shipment.RouteProvider = (*Client)(nil)

// Route returns the first route between origin and destination with its
// full GeoJSON geometry.
func (c *Client) Route(ctx context.Context, origin, destination shipment.Coordinates) (*shipment.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("overview", "full")
	params.Set("geometries", "geojson")
	u := fmt.Sprintf("%s/route/v1/%s/%s;%s?%s",
		c.baseURL, url.PathEscape(c.profile), origin, destination, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build route request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &shipment.TransientError{Service: serviceName, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return nil, &shipment.TransientError{Service: serviceName, Err: err}
	}

	parsed, decodeErr := decodeResponse(body)
	if decodeErr == nil && parsed.code == codeNoRoute {
		return nil, shipment.ErrNoRouteFound
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &shipment.TransientError{
			Service: serviceName,
			Err:     errors.Errorf("status %d: %s", resp.StatusCode, snippet(body)),
		}
	}
	if decodeErr != nil {
		return nil, &shipment.RoutingError{Status: resp.StatusCode, Reason: decodeErr.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &shipment.RoutingError{Status: resp.StatusCode, Code: parsed.code, Reason: parsed.message}
	}
	if parsed.code != codeOk {
		return nil, &shipment.RoutingError{Code: parsed.code, Reason: parsed.message}
	}
	if len(parsed.routes) == 0 {
		return nil, &shipment.RoutingError{Code: parsed.code, Reason: "response has no routes"}
	}

	route := parsed.routes[0]
	if !finite(route.DistanceMeters) || !finite(route.DurationSeconds) {
		return nil, &shipment.RoutingError{Code: parsed.code, Reason: "route distance or duration is not a finite number"}
	}
	return &route, nil
}

type response struct {
	code    string
	message string
	routes  []shipment.Route
}

func decodeResponse(body []byte) (response, error) {
	var r response
	d := jx.DecodeBytes(body)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "code":
			v, err := d.Str()
			r.code = v
			return err
		case "message":
			v, err := d.Str()
			r.message = v
			return err
		case "routes":
			return d.Arr(func(d *jx.Decoder) error {
				route, err := decodeRoute(d)
				if err != nil {
					return err
				}
				r.routes = append(r.routes, route)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return response{}, errors.Wrap(err, "decode route response")
	}
	return r, nil
}

// decodeRoute reads one route object. Missing distance or duration decode as
// NaN so the caller rejects them like any other non-finite value.
func decodeRoute(d *jx.Decoder) (shipment.Route, error) {
	route := shipment.Route{
		DistanceMeters:  math.NaN(),
		DurationSeconds: math.NaN(),
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "distance":
			v, err := number(d)
			if err != nil {
				return errors.Wrap(err, "distance")
			}
			route.DistanceMeters = v
			return nil
		case "duration":
			v, err := number(d)
			if err != nil {
				return errors.Wrap(err, "duration")
			}
			route.DurationSeconds = v
			return nil
		case "geometry":
			geometry, err := decodeGeometry(d)
			route.Geometry = geometry
			return err
		default:
			return d.Skip()
		}
	})
	return route, err
}

// decodeGeometry reads a GeoJSON LineString's coordinates.
func decodeGeometry(d *jx.Decoder) ([]shipment.Coordinates, error) {
	if d.Next() != jx.Object {
		return nil, d.Skip()
	}
	var coords []shipment.Coordinates
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "coordinates" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var pair []float64
			if err := d.Arr(func(d *jx.Decoder) error {
				v, err := d.Float64()
				pair = append(pair, v)
				return err
			}); err != nil {
				return err
			}
			if len(pair) < 2 {
				return errors.New("coordinate pair too short")
			}
			coords = append(coords, shipment.Coordinates{Lon: pair[0], Lat: pair[1]})
			return nil
		})
	})
	return coords, err
}

// number accepts a JSON number or a string holding one.
func number(d *jx.Decoder) (float64, error) {
	switch d.Next() {
	case jx.Number:
		return d.Float64()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	default:
		if err := d.Skip(); err != nil {
			return 0, err
		}
		return math.NaN(), nil
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
