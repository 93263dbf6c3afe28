// Package cart holds the cart line model and the rules that keep it
// consistent when quantities or extras change.
//
// A Ledger is an immutable snapshot: every operation returns a new Ledger and
// leaves the receiver untouched, so snapshots can be shared between goroutines
// without locking. Callers that own a cart must still apply mutations in the
// order they were issued.
package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// newID produces identifiers for lines and extras created by the ledger.
var newID = uuid.NewString

// Extra is a single customization attached to one physical unit of a line.
type Extra struct {
	ID      string          `json:"id"`
	ExtraID string          `json:"extraId"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	// Quantity is how many of this extra are attached to the unit.
	Quantity int `json:"quantity"`
}

// Total returns Price × Quantity.
func (e Extra) Total() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// Line is one purchasable entry in the cart.
//
// A line that carries one or more extras always has Quantity 1: several
// customized units are represented as several lines.
type Line struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	PartnerID string          `json:"partnerId"`
	Name      string          `json:"name"`
	ImageRef  string          `json:"image,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Extras    []Extra         `json:"extras"`
}

// Customized reports whether the line carries any extras.
func (l Line) Customized() bool {
	return len(l.Extras) > 0
}

// Item describes the product being added to the cart.
type Item struct {
	ProductID string
	PartnerID string
	Name      string
	ImageRef  string
	UnitPrice decimal.Decimal
}

// LineTotal returns (unit price + Σ extra price × extra quantity) × quantity.
func LineTotal(l Line) decimal.Decimal {
	unit := l.UnitPrice
	for _, e := range l.Extras {
		unit = unit.Add(e.Total())
	}
	return unit.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// copyExtras returns a deep copy of extras. A nil or empty input yields nil so
// plain lines never share a backing array with anything.
func copyExtras(extras []Extra) []Extra {
	if len(extras) == 0 {
		return nil
	}
	out := make([]Extra, len(extras))
	copy(out, extras)
	return out
}

// normalizeExtras deep-copies extras, assigns missing IDs and clamps
// quantities to at least one.
func normalizeExtras(extras []Extra) []Extra {
	out := copyExtras(extras)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = newID()
		}
		if out[i].Quantity < 1 {
			out[i].Quantity = 1
		}
	}
	return out
}
