package postgres

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/courier-pricing/internal/domain/shipment"
)

const srid = 4326

// FormatPoint encodes c as EWKT, e.g. "SRID=4326;POINT(-77.03 -12.12)".
func FormatPoint(c shipment.Coordinates) string {
	return "SRID=" + strconv.Itoa(srid) + ";POINT(" +
		strconv.FormatFloat(c.Lon, 'f', -1, 64) + " " +
		strconv.FormatFloat(c.Lat, 'f', -1, 64) + ")"
}

// ParsePoint decodes a WKT or EWKT point in lon lat order.
func ParsePoint(raw string) (shipment.Coordinates, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToUpper(text), "SRID=") {
		idx := strings.Index(text, ";")
		if idx == -1 {
			return shipment.Coordinates{}, errors.Errorf("point: missing ';' after SRID in %q", raw)
		}
		text = strings.TrimSpace(text[idx+1:])
	}

	upper := strings.ToUpper(text)
	if !strings.HasPrefix(upper, "POINT") || !strings.HasSuffix(text, ")") {
		return shipment.Coordinates{}, errors.Errorf("point: unsupported text %q", raw)
	}
	open := strings.Index(text, "(")
	if open == -1 || strings.TrimSpace(text[len("POINT"):open]) != "" {
		return shipment.Coordinates{}, errors.Errorf("point: unsupported text %q", raw)
	}

	fields := strings.Fields(text[open+1 : len(text)-1])
	if len(fields) != 2 {
		return shipment.Coordinates{}, errors.Errorf("point: expected 2 coordinates in %q", raw)
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return shipment.Coordinates{}, errors.Wrap(err, "point: parse longitude")
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return shipment.Coordinates{}, errors.Wrap(err, "point: parse latitude")
	}
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return shipment.Coordinates{}, errors.Errorf("point: coordinates out of range in %q", raw)
	}
	return shipment.Coordinates{Lon: lon, Lat: lat}, nil
}

// scanPoint turns a nullable location column into coordinates. NULL and
// unreadable values are both treated as absent.
func scanPoint(raw *string) *shipment.Coordinates {
	if raw == nil {
		return nil
	}
	c, err := ParsePoint(*raw)
	if err != nil {
		return nil
	}
	return &c
}
