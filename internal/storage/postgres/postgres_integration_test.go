//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/courier-pricing/internal/domain/shipment"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "courier",
				"POSTGRES_PASSWORD": "courier",
				"POSTGRES_DB":       "courier",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		return 1
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "container host: %v\n", err)
		return 1
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "mapped port: %v\n", err)
		return 1
	}

	dsn := fmt.Sprintf("postgres://courier:courier@%s:%s/courier?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create pool: %v\n", err)
		return 1
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return 1
	}
	return m.Run()
}

func TestPricingRuleRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPricingRuleRepository(testPool)

	_, err := testPool.Exec(ctx, "DELETE FROM pricing_rules")
	require.NoError(t, err)

	_, err = repo.ActiveRule(ctx)
	require.ErrorIs(t, err, shipment.ErrNoActiveRule)

	_, err = repo.Activate(ctx, shipment.PricingRule{
		BaseFee:         decimal.NewFromInt(1),
		FeePerKilometer: decimal.NewFromInt(1),
		MinFee:          decimal.NewFromInt(3),
	})
	require.NoError(t, err)

	id, err := repo.Activate(ctx, shipment.PricingRule{
		BaseFee:         decimal.NewFromInt(2),
		FeePerKilometer: decimal.RequireFromString("1.50"),
		MinFee:          decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	rule, err := repo.ActiveRule(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, rule.ID)
	assert.True(t, rule.IsActive)
	assert.True(t, decimal.NewFromInt(2).Equal(rule.BaseFee))
	assert.True(t, decimal.RequireFromString("1.5").Equal(rule.FeePerKilometer))
	assert.True(t, decimal.NewFromInt(5).Equal(rule.MinFee))

	var active int
	require.NoError(t, testPool.QueryRow(ctx, "SELECT count(*) FROM pricing_rules WHERE is_active").Scan(&active))
	assert.Equal(t, 1, active)
}

func TestLocationRepository_Partner(t *testing.T) {
	ctx := context.Background()
	repo := NewLocationRepository(testPool)

	require.NoError(t, repo.UpsertPartner(ctx, PartnerRecord{ID: "p-int-1", Name: "Tacos", Address: "Av. Larco 123"}))

	p, err := repo.Partner(ctx, "p-int-1")
	require.NoError(t, err)
	assert.Equal(t, "Av. Larco 123", p.Address)
	assert.Nil(t, p.Location)

	c := shipment.Coordinates{Lon: -77.0301, Lat: -12.1203}
	require.NoError(t, repo.SetPartnerLocation(ctx, "p-int-1", c))

	p, err = repo.Partner(ctx, "p-int-1")
	require.NoError(t, err)
	require.NotNil(t, p.Location)
	assert.Equal(t, c, *p.Location)

	_, err = repo.Partner(ctx, "missing")
	var notFound *shipment.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestLocationRepository_DeliveryAddress(t *testing.T) {
	ctx := context.Background()
	repo := NewLocationRepository(testPool)

	require.NoError(t, repo.UpsertDeliveryAddress(ctx, shipment.DeliveryAddress{
		ID: "a-int-1", LocationType: "Calle", LocationNumber: "45",
	}))

	_, err := testPool.Exec(ctx, "UPDATE delivery_addresses SET location = 'not a point' WHERE id = 'a-int-1'")
	require.NoError(t, err)

	a, err := repo.DeliveryAddress(ctx, "a-int-1")
	require.NoError(t, err)
	assert.Equal(t, "Calle", a.LocationType)
	assert.Equal(t, "45", a.LocationNumber)
	assert.Nil(t, a.Location, "malformed point is treated as absent")

	c := shipment.Coordinates{Lon: -77.0282, Lat: -12.1211}
	require.NoError(t, repo.SetDeliveryAddressLocation(ctx, "a-int-1", c))

	a, err = repo.DeliveryAddress(ctx, "a-int-1")
	require.NoError(t, err)
	require.NotNil(t, a.Location)
	assert.Equal(t, c, *a.Location)
}
