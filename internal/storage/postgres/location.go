package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/courier-pricing/internal/domain/shipment"
)

const (
	getPartnerSQL = `SELECT id, address, location FROM partners WHERE id = $1`

	getDeliveryAddressSQL = `SELECT id, location_type, location_number, location
		FROM delivery_addresses WHERE id = $1`

	setPartnerLocationSQL = `UPDATE partners SET location = $2, updated_at = now() WHERE id = $1`

	setDeliveryAddressLocationSQL = `UPDATE delivery_addresses SET location = $2, updated_at = now() WHERE id = $1`

	upsertPartnerSQL = `INSERT INTO partners (id, name, address, location)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address,
			location = EXCLUDED.location, updated_at = now()`

	upsertDeliveryAddressSQL = `INSERT INTO delivery_addresses (id, location_type, location_number, location)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET location_type = EXCLUDED.location_type,
			location_number = EXCLUDED.location_number, location = EXCLUDED.location, updated_at = now()`
)

var _ shipment.LocationStore = (*LocationRepository)(nil)

// LocationRepository implements shipment.LocationStore backed by PostgreSQL.
type LocationRepository struct {
	pool *pgxpool.Pool
}

// NewLocationRepository returns a LocationRepository that uses the given pool.
func NewLocationRepository(pool *pgxpool.Pool) *LocationRepository {
	return &LocationRepository{pool: pool}
}

// Partner returns the partner record. A NULL or unreadable location is
// reported as a nil Location.
func (r *LocationRepository) Partner(ctx context.Context, id string) (*shipment.Partner, error) {
	var (
		p   shipment.Partner
		loc *string
	)
	err := r.pool.QueryRow(ctx, getPartnerSQL, id).Scan(&p.ID, &p.Address, &loc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &shipment.NotFoundError{Kind: "partner", ID: id}
		}
		return nil, errors.Wrapf(err, "get partner %q", id)
	}
	p.Location = scanPoint(loc)
	return &p, nil
}

// DeliveryAddress returns the delivery address record.
func (r *LocationRepository) DeliveryAddress(ctx context.Context, id string) (*shipment.DeliveryAddress, error) {
	var (
		a   shipment.DeliveryAddress
		loc *string
	)
	err := r.pool.QueryRow(ctx, getDeliveryAddressSQL, id).Scan(&a.ID, &a.LocationType, &a.LocationNumber, &loc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &shipment.NotFoundError{Kind: "delivery address", ID: id}
		}
		return nil, errors.Wrapf(err, "get delivery address %q", id)
	}
	a.Location = scanPoint(loc)
	return &a, nil
}

// SetPartnerLocation stores geocoded coordinates on the partner.
func (r *LocationRepository) SetPartnerLocation(ctx context.Context, id string, c shipment.Coordinates) error {
	if _, err := r.pool.Exec(ctx, setPartnerLocationSQL, id, FormatPoint(c)); err != nil {
		return errors.Wrapf(err, "set location of partner %q", id)
	}
	return nil
}

// SetDeliveryAddressLocation stores geocoded coordinates on the address.
func (r *LocationRepository) SetDeliveryAddressLocation(ctx context.Context, id string, c shipment.Coordinates) error {
	if _, err := r.pool.Exec(ctx, setDeliveryAddressLocationSQL, id, FormatPoint(c)); err != nil {
		return errors.Wrapf(err, "set location of delivery address %q", id)
	}
	return nil
}

// PartnerRecord is a partner row as loaded by the seeder.
type PartnerRecord struct {
	ID       string
	Name     string
	Address  string
	Location *shipment.Coordinates
}

// UpsertPartner inserts or replaces a partner.
func (r *LocationRepository) UpsertPartner(ctx context.Context, p PartnerRecord) error {
	if _, err := r.pool.Exec(ctx, upsertPartnerSQL, p.ID, p.Name, p.Address, formatOptional(p.Location)); err != nil {
		return errors.Wrapf(err, "upsert partner %q", p.ID)
	}
	return nil
}

// UpsertDeliveryAddress inserts or replaces a delivery address.
func (r *LocationRepository) UpsertDeliveryAddress(ctx context.Context, a shipment.DeliveryAddress) error {
	_, err := r.pool.Exec(ctx, upsertDeliveryAddressSQL, a.ID, a.LocationType, a.LocationNumber, formatOptional(a.Location))
	if err != nil {
		return errors.Wrapf(err, "upsert delivery address %q", a.ID)
	}
	return nil
}

func formatOptional(c *shipment.Coordinates) *string {
	if c == nil {
		return nil
	}
	s := FormatPoint(*c)
	return &s
}
