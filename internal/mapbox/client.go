// Package mapbox implements shipment.Geocoder on top of the Mapbox
// Geocoding v5 API.
package mapbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/courier-pricing/internal/domain/shipment"
)

const (
	defaultBaseURL       = "https://api.mapbox.com"
	defaultTimeout       = 5 * time.Second
	serviceName          = "geocoder"
	errorBodyLimit int64 = 1024
	bodyLimit      int64 = 1 << 20
)

// Client resolves free-text addresses to coordinates.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	country    string
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

// WithBaseURL overrides the Mapbox API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithCountry restricts results to the given ISO 3166 country codes,
// comma separated.
func WithCountry(country string) Option {
	return func(c *Client) { c.country = strings.TrimSpace(country) }
}

// WithTimeout bounds each geocoding call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a geocoding client. An empty token is accepted so the
// service can start; every Geocode call then fails with a
// *shipment.ConfigurationError.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		token:   strings.TrimSpace(token),
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

var _ shipment.Geocoder = (*Client)(nil)

// Geocode returns the center of the first feature matching query.
func (c *Client) Geocode(ctx context.Context, query string) (shipment.Coordinates, error) {
	if c.token == "" {
		return shipment.Coordinates{}, &shipment.ConfigurationError{Reason: "geocoder access token is not set"}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return shipment.Coordinates{}, shipment.ErrNoMatch
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("access_token", c.token)
	params.Set("limit", "1")
	if c.country != "" {
		params.Set("country", c.country)
	}
	u := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", c.baseURL, url.PathEscape(query), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return shipment.Coordinates{}, errors.Wrap(err, "build geocode request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shipment.Coordinates{}, &shipment.TransientError{Service: serviceName, Err: redact(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return shipment.Coordinates{}, &shipment.ConfigurationError{
			Reason: fmt.Sprintf("geocoder rejected access token: status %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return shipment.Coordinates{}, &shipment.TransientError{Service: serviceName, Err: statusError(resp)}
	case resp.StatusCode != http.StatusOK:
		return shipment.Coordinates{}, errors.Wrap(statusError(resp), "geocode request failed")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return shipment.Coordinates{}, &shipment.TransientError{Service: serviceName, Err: err}
	}
	return decodeFirstCenter(body)
}

// decodeFirstCenter reads features[0].center from a geocoding response.
func decodeFirstCenter(body []byte) (shipment.Coordinates, error) {
	var (
		center []float64
		seen   int
	)
	d := jx.DecodeBytes(body)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "features" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			seen++
			if seen > 1 {
				return d.Skip()
			}
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "center" {
					return d.Skip()
				}
				return d.Arr(func(d *jx.Decoder) error {
					v, err := d.Float64()
					if err != nil {
						return err
					}
					center = append(center, v)
					return nil
				})
			})
		})
	})
	if err != nil {
		return shipment.Coordinates{}, errors.Wrap(err, "decode geocode response")
	}
	if seen == 0 {
		return shipment.Coordinates{}, shipment.ErrNoMatch
	}
	if len(center) < 2 {
		return shipment.Coordinates{}, errors.New("geocode response: first feature has no center")
	}
	return shipment.Coordinates{Lon: center[0], Lat: center[1]}, nil
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return errors.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

// redact strips the query string, which carries the access token, from
// transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, perr := url.Parse(urlErr.URL); perr == nil {
			u.RawQuery = ""
			urlErr.URL = u.String()
		}
	}
	return err
}
