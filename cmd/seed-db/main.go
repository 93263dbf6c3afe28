package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/courier-pricing/internal/domain/shipment"
	"github.com/xenking/courier-pricing/internal/storage/postgres"
)

// seedFile is the layout of the fixtures file.
type seedFile struct {
	Partners []struct {
		ID       string                `json:"id"`
		Name     string                `json:"name"`
		Address  string                `json:"address"`
		Location *shipment.Coordinates `json:"location"`
	} `json:"partners"`
	DeliveryAddresses []struct {
		ID             string                `json:"id"`
		LocationType   string                `json:"locationType"`
		LocationNumber string                `json:"locationNumber"`
		Location       *shipment.Coordinates `json:"location"`
	} `json:"deliveryAddresses"`
	PricingRule *struct {
		BaseFee         decimal.Decimal `json:"baseFee"`
		FeePerKilometer decimal.Decimal `json:"feePerKilometer"`
		MinFee          decimal.Decimal `json:"minFee"`
	} `json:"pricingRule"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "file", "db/seed/fixtures.json", "path to fixtures JSON file")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, seedPath); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, seedPath string) error {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read fixtures")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse fixtures")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	locations := postgres.NewLocationRepository(pool)
	for _, p := range seed.Partners {
		if err := locations.UpsertPartner(ctx, postgres.PartnerRecord{
			ID:       p.ID,
			Name:     p.Name,
			Address:  p.Address,
			Location: p.Location,
		}); err != nil {
			return err
		}
	}
	lg.Info("Seeded partners", zap.Int("count", len(seed.Partners)))

	for _, a := range seed.DeliveryAddresses {
		if err := locations.UpsertDeliveryAddress(ctx, shipment.DeliveryAddress{
			ID:             a.ID,
			LocationType:   a.LocationType,
			LocationNumber: a.LocationNumber,
			Location:       a.Location,
		}); err != nil {
			return err
		}
	}
	lg.Info("Seeded delivery addresses", zap.Int("count", len(seed.DeliveryAddresses)))

	if r := seed.PricingRule; r != nil {
		id, err := postgres.NewPricingRuleRepository(pool).Activate(ctx, shipment.PricingRule{
			BaseFee:         r.BaseFee,
			FeePerKilometer: r.FeePerKilometer,
			MinFee:          r.MinFee,
			IsActive:        true,
		})
		if err != nil {
			return errors.Wrap(err, "activate pricing rule")
		}
		lg.Info("Activated pricing rule", zap.Int64("id", id))
	}
	return nil
}
