package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Ledger is an immutable snapshot of the cart lines.
type Ledger struct {
	Lines []Line `json:"items"`
}

// clone returns a Ledger whose lines and extras share no memory with l.
func (l Ledger) clone() Ledger {
	lines := make([]Line, len(l.Lines))
	for i, line := range l.Lines {
		line.Extras = copyExtras(line.Extras)
		lines[i] = line
	}
	return Ledger{Lines: lines}
}

func (l Ledger) index(lineID string) int {
	return slices.IndexFunc(l.Lines, func(line Line) bool {
		return line.ID == lineID
	})
}

// Line returns the line with the given ID.
func (l Ledger) Line(lineID string) (Line, bool) {
	i := l.index(lineID)
	if i < 0 {
		return Line{}, false
	}
	line := l.Lines[i]
	line.Extras = copyExtras(line.Extras)
	return line, true
}

// Empty reports whether the ledger has no lines.
func (l Ledger) Empty() bool {
	return len(l.Lines) == 0
}

// PartnerID returns the partner the cart currently belongs to, or "" for an
// empty cart.
func (l Ledger) PartnerID() string {
	if len(l.Lines) == 0 {
		return ""
	}
	return l.Lines[0].PartnerID
}

// Units returns the number of physical units across all lines.
func (l Ledger) Units() int {
	n := 0
	for _, line := range l.Lines {
		n += line.Quantity
	}
	return n
}

// Subtotal returns the sum of LineTotal over all lines.
func (l Ledger) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range l.Lines {
		sum = sum.Add(LineTotal(line))
	}
	return sum
}

// Clear returns an empty ledger.
func (l Ledger) Clear() Ledger {
	return Ledger{}
}

func plainLine(item Item, quantity int) Line {
	return Line{
		ID:        newID(),
		ProductID: item.ProductID,
		PartnerID: item.PartnerID,
		Name:      item.Name,
		ImageRef:  item.ImageRef,
		UnitPrice: item.UnitPrice,
		Quantity:  quantity,
	}
}

func itemOf(line Line) Item {
	return Item{
		ProductID: line.ProductID,
		PartnerID: line.PartnerID,
		Name:      line.Name,
		ImageRef:  line.ImageRef,
		UnitPrice: line.UnitPrice,
	}
}

// AddItem adds quantity units of item.
//
// With extras, quantity separate lines are emitted, each with quantity 1 and
// its own copy of extras; mergeByProduct is ignored. Without extras and with
// mergeByProduct, an existing plain line for the same product and partner is
// incremented. Otherwise a new line is appended.
func (l Ledger) AddItem(item Item, quantity int, extras []Extra, mergeByProduct bool) Ledger {
	if quantity < 1 {
		quantity = 1
	}
	out := l.clone()

	if len(extras) > 0 {
		for range quantity {
			line := plainLine(item, 1)
			line.Extras = normalizeExtras(extras)
			out.Lines = append(out.Lines, line)
		}
		return out
	}

	if mergeByProduct {
		for i, line := range out.Lines {
			if line.ProductID == item.ProductID && line.PartnerID == item.PartnerID && !line.Customized() {
				out.Lines[i].Quantity += quantity
				return out
			}
		}
	}

	out.Lines = append(out.Lines, plainLine(item, quantity))
	return out
}

// RemoveItem deletes the line. Removing a missing line is a no-op.
func (l Ledger) RemoveItem(lineID string) Ledger {
	out := l.clone()
	out.Lines = slices.DeleteFunc(out.Lines, func(line Line) bool {
		return line.ID == lineID
	})
	return out
}

// SetQuantity changes a line's quantity, clamped to a minimum of 1.
//
// Growing a customized line never duplicates its extras: the difference is
// appended as plain lines of quantity 1 and the customized line keeps its
// quantity. Shrinking, or any change on a plain line, is applied directly.
func (l Ledger) SetQuantity(lineID string, quantity int) Ledger {
	i := l.index(lineID)
	if i < 0 {
		return l
	}
	if quantity < 1 {
		quantity = 1
	}
	out := l.clone()
	line := out.Lines[i]

	if line.Customized() && quantity > line.Quantity {
		item := itemOf(line)
		for range quantity - line.Quantity {
			out.Lines = append(out.Lines, plainLine(item, 1))
		}
		return out
	}

	out.Lines[i].Quantity = quantity
	return out
}

// mergeExtra adds extra to extras, summing quantities when the same catalog
// extra is already present.
func mergeExtra(extras []Extra, extra Extra) []Extra {
	for i := range extras {
		if extras[i].ExtraID == extra.ExtraID {
			extras[i].Quantity += extra.Quantity
			return extras
		}
	}
	return append(extras, extra)
}

// AddExtra attaches extra to one unit of the line.
//
// On a single-unit line the extra is merged in place. On a multi-unit line
// one unit is split off: the original keeps quantity-1 units with its extras
// unchanged, and a new single-unit line carries a copy of those extras plus
// the added one.
func (l Ledger) AddExtra(lineID string, extra Extra) Ledger {
	i := l.index(lineID)
	if i < 0 {
		return l
	}
	added := normalizeExtras([]Extra{extra})[0]
	out := l.clone()

	if out.Lines[i].Quantity <= 1 {
		out.Lines[i].Extras = mergeExtra(out.Lines[i].Extras, added)
		return out
	}

	out.Lines[i].Quantity--
	split := plainLine(itemOf(out.Lines[i]), 1)
	split.Extras = mergeExtra(copyExtras(out.Lines[i].Extras), added)
	out.Lines = append(out.Lines, split)
	return out
}

// updateExtra applies fn to the extra identified by extraID on the line. fn
// returns false to drop the extra.
func (l Ledger) updateExtra(lineID, extraID string, fn func(e *Extra) bool) Ledger {
	i := l.index(lineID)
	if i < 0 {
		return l
	}
	j := slices.IndexFunc(l.Lines[i].Extras, func(e Extra) bool {
		return e.ExtraID == extraID
	})
	if j < 0 {
		return l
	}
	out := l.clone()
	extras := out.Lines[i].Extras
	if !fn(&extras[j]) {
		extras = slices.Delete(extras, j, j+1)
	}
	if len(extras) == 0 {
		extras = nil
	}
	out.Lines[i].Extras = extras
	return out
}

// IncrementExtra adds one to the extra's count on the line.
func (l Ledger) IncrementExtra(lineID, extraID string) Ledger {
	return l.updateExtra(lineID, extraID, func(e *Extra) bool {
		e.Quantity++
		return true
	})
}

// DecrementExtra removes one from the extra's count on the line. Reaching
// zero removes the extra, never the line.
func (l Ledger) DecrementExtra(lineID, extraID string) Ledger {
	return l.updateExtra(lineID, extraID, func(e *Extra) bool {
		e.Quantity--
		return e.Quantity > 0
	})
}

// RemoveExtra removes the extra from the line regardless of its count.
func (l Ledger) RemoveExtra(lineID, extraID string) Ledger {
	return l.updateExtra(lineID, extraID, func(*Extra) bool {
		return false
	})
}
