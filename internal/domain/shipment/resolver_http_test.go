package shipment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/courier-pricing/internal/domain/shipment"
	"github.com/xenking/courier-pricing/internal/mapbox"
	"github.com/xenking/courier-pricing/internal/osrm"
)

type memLocations struct {
	mu        sync.Mutex
	partners  map[string]*shipment.Partner
	addresses map[string]*shipment.DeliveryAddress
}

func (m *memLocations) Partner(_ context.Context, id string) (*shipment.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[id]
	if !ok {
		return nil, &shipment.NotFoundError{Kind: "partner", ID: id}
	}
	cp := *p
	return &cp, nil
}

func (m *memLocations) DeliveryAddress(_ context.Context, id string) (*shipment.DeliveryAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[id]
	if !ok {
		return nil, &shipment.NotFoundError{Kind: "delivery address", ID: id}
	}
	cp := *a
	return &cp, nil
}

func (m *memLocations) SetPartnerLocation(_ context.Context, id string, c shipment.Coordinates) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partners[id].Location = &c
	return nil
}

func (m *memLocations) SetDeliveryAddressLocation(_ context.Context, id string, c shipment.Coordinates) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[id].Location = &c
	return nil
}

type staticRule struct{ rule shipment.PricingRule }

func (s staticRule) ActiveRule(context.Context) (*shipment.PricingRule, error) {
	r := s.rule
	return &r, nil
}

// newHTTPResolver wires the resolver to Mapbox and OSRM clients talking to
// local servers that answer with geocodeBody and routeBody.
func newHTTPResolver(t *testing.T, locations *memLocations, geocodeBody, routeBody string) (*shipment.Resolver, *string) {
	t.Helper()

	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geocodeBody))
	}))
	t.Cleanup(geocoder.Close)

	var routePath string
	var mu sync.Mutex
	directions := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		routePath = r.URL.Path
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(routeBody))
	}))
	t.Cleanup(directions.Close)

	rule := staticRule{rule: shipment.PricingRule{
		ID:              1,
		BaseFee:         decimal.NewFromInt(2),
		FeePerKilometer: decimal.NewFromInt(1),
		MinFee:          decimal.NewFromInt(5),
		IsActive:        true,
	}}
	r, err := shipment.NewResolver(
		shipment.NewFallbackResolver(locations, mapbox.NewClient("pk.test", mapbox.WithBaseURL(geocoder.URL)), "Lima, Peru"),
		osrm.NewClient(osrm.WithBaseURL(directions.URL)),
		rule,
	)
	require.NoError(t, err)
	return r, &routePath
}

func newMemLocations() *memLocations {
	return &memLocations{
		partners: map[string]*shipment.Partner{
			"p1": {ID: "p1", Location: &shipment.Coordinates{Lon: -77.0428, Lat: -12.0464}},
		},
		addresses: map[string]*shipment.DeliveryAddress{
			"a1": {ID: "a1", LocationType: "Av. Larco", LocationNumber: "123"},
		},
	}
}

func TestResolver_QuoteOverHTTP(t *testing.T) {
	locations := newMemLocations()
	r, routePath := newHTTPResolver(t, locations,
		`{"type":"FeatureCollection","features":[{"id":"address.1","center":[-77.0282,-12.1211]}]}`,
		`{"code":"Ok","routes":[{"distance":10000,"duration":900,"geometry":{"type":"LineString","coordinates":[[-77.0428,-12.0464],[-77.0282,-12.1211]]}}]}`,
	)

	q, err := r.Quote(context.Background(), "p1", "a1")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(12).Equal(q.ShippingCost), "got %s", q.ShippingCost)
	assert.Equal(t, 10000.0, q.DistanceMeters)
	assert.Equal(t, 900.0, q.DurationSeconds)
	assert.Equal(t, shipment.Coordinates{Lon: -77.0282, Lat: -12.1211}, q.Destination)
	assert.Len(t, q.Geometry, 2)
	assert.Equal(t, "/route/v1/driving/-77.0428,-12.0464;-77.0282,-12.1211", *routePath)

	a, err := locations.DeliveryAddress(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, a.Location, "geocoded destination is stored")
	assert.Equal(t, q.Destination, *a.Location)
}

func TestResolver_QuoteOverHTTPFailures(t *testing.T) {
	tests := []struct {
		name        string
		geocodeBody string
		routeBody   string
		outcome     string
	}{
		{
			name:        "route without metrics",
			geocodeBody: `{"features":[{"center":[-77.0282,-12.1211]}]}`,
			routeBody:   `{"code":"Ok","routes":[{}]}`,
			outcome:     "routing",
		},
		{
			name:        "no route",
			geocodeBody: `{"features":[{"center":[-77.0282,-12.1211]}]}`,
			routeBody:   `{"code":"NoRoute","message":"Impossible route"}`,
			outcome:     "no_route",
		},
		{
			name:        "destination not geocoded",
			geocodeBody: `{"features":[]}`,
			routeBody:   `{"code":"Ok","routes":[{"distance":1,"duration":1}]}`,
			outcome:     "route_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newHTTPResolver(t, newMemLocations(), tt.geocodeBody, tt.routeBody)

			q, err := r.Quote(context.Background(), "p1", "a1")
			require.Error(t, err)
			assert.Nil(t, q)
			assert.Equal(t, tt.outcome, shipment.Outcome(err))
		})
	}
}
