// Package couponapi implements coupon.Validator by calling the external
// coupon validation service.
package couponapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/courier-pricing/internal/domain/coupon"
)

const (
	defaultTimeout       = 3 * time.Second
	bodyLimit      int64 = 64 << 10
	errorBodyLimit int64 = 1024
)

// Client validates coupon codes over HTTP.
type Client struct {
	httpClient *http.Client
	url        string
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

// WithTimeout bounds each validation call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client posting to endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("coupon validation URL is required")
	}
	c := &Client{
		url:     endpoint,
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
	return c, nil
}

var _ coupon.Validator = (*Client)(nil)

// Validate asks the service whether code applies to subtotal. The service
// is authoritative: its answer is returned as is. Outages, timeouts and
// unreadable answers are reported as *coupon.UnavailableError.
func (c *Client) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*coupon.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("subtotal")
	e.Raw([]byte(subtotal.Round(2).String()))
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(e.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "build coupon request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &coupon.UnavailableError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &coupon.UnavailableError{
			Err: errors.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return nil, &coupon.UnavailableError{Err: err}
	}
	res, err := decodeResult(body)
	if err != nil {
		return nil, &coupon.UnavailableError{Err: errors.Wrapf(err, "status %d", resp.StatusCode)}
	}

	// A 4xx is an answer only when it carries an explicit negative result.
	if resp.StatusCode >= http.StatusMultipleChoices && res.Valid {
		return nil, &coupon.UnavailableError{Err: errors.Errorf("status %d with a valid result", resp.StatusCode)}
	}
	if res.Valid && res.Coupon == nil {
		return nil, &coupon.UnavailableError{Err: errors.New("valid result without coupon")}
	}
	return res, nil
}

func decodeResult(body []byte) (*coupon.Result, error) {
	var (
		res      coupon.Result
		hasValid bool
	)
	d := jx.DecodeBytes(body)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "valid":
			v, err := d.Bool()
			res.Valid, hasValid = v, err == nil
			return err
		case "message":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			res.Message = v
			return err
		case "coupon":
			if d.Next() == jx.Null {
				return d.Null()
			}
			c, err := decodeCoupon(d)
			res.Coupon = c
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode coupon response")
	}
	if !hasValid {
		return nil, errors.New("coupon response has no valid field")
	}
	if !res.Valid {
		res.Coupon = nil
	}
	return &res, nil
}

func decodeCoupon(d *jx.Decoder) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "code":
			v, err := d.Str()
			c.Code = v
			return err
		case "discount_type":
			v, err := d.Str()
			c.DiscountType = coupon.DiscountType(v)
			return err
		case "discount_value":
			v, err := decimalValue(d)
			if err != nil {
				return errors.Wrap(err, "discount_value")
			}
			c.DiscountValue = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// decimalValue accepts a JSON number or a string holding one, as NUMERIC
// columns are often serialized as strings.
func decimalValue(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	default:
		return decimal.Zero, errors.Errorf("unexpected %s", d.Next())
	}
}
