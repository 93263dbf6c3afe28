package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrSnapshotNotFound is returned by a Store when no snapshot exists for the
// cart yet.
var ErrSnapshotNotFound = errors.New("cart snapshot not found")

// Charges holds the fees applied on top of the merchandise subtotal.
type Charges struct {
	ShippingFee decimal.Decimal `json:"shippingFee"`
	ServiceFee  decimal.Decimal `json:"serviceFee"`
}

// Snapshot is the persisted state of one cart session.
type Snapshot struct {
	Cart    Ledger  `json:"cart"`
	Charges Charges `json:"charges"`
}

// Store loads and saves cart snapshots.
type Store interface {
	Load(ctx context.Context, cartID string) (*Snapshot, error)
	Save(ctx context.Context, cartID string, snap Snapshot) error
}

// PartnerMismatchError is returned when an item from another partner is added
// to a non-empty cart without asking to replace it.
type PartnerMismatchError struct {
	Current   string
	Requested string
}

func (e *PartnerMismatchError) Error() string {
	return fmt.Sprintf("cart belongs to partner %s, cannot add items from partner %s", e.Current, e.Requested)
}
