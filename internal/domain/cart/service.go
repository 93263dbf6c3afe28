package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// AddItemRequest holds the input for adding a product to a cart session.
type AddItemRequest struct {
	Item           Item
	Quantity       int
	Extras         []Extra
	MergeByProduct bool
	// ReplaceCart clears a cart that belongs to another partner instead of
	// failing with PartnerMismatchError.
	ReplaceCart bool
}

// session is the in-memory state of a cart that has been loaded once.
type session struct {
	mu       sync.Mutex
	snap     Snapshot
	loaded   bool
	evicted  bool
	lastUsed time.Time
}

// Service owns cart sessions: each cart is loaded from the Store once, mutated
// in memory by one writer at a time, and written back through a debounced
// Saver.
type Service struct {
	store Store
	saver *Saver
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService creates a cart Service backed by store and saver.
func NewService(store Store, saver *Saver) *Service {
	return &Service{
		store:    store,
		saver:    saver,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// acquire returns the locked session of the cart, creating it on first use.
func (s *Service) acquire(cartID string) *session {
	for {
		s.mu.Lock()
		sess, ok := s.sessions[cartID]
		if !ok {
			sess = &session{}
			s.sessions[cartID] = sess
		}
		s.mu.Unlock()

		sess.mu.Lock()
		if !sess.evicted {
			return sess
		}
		sess.mu.Unlock()
	}
}

// load must be called with sess.mu held.
func (s *Service) load(ctx context.Context, cartID string, sess *session) error {
	sess.lastUsed = s.now()
	if sess.loaded {
		return nil
	}
	snap, err := s.store.Load(ctx, cartID)
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		sess.snap = Snapshot{}
	case err != nil:
		return errors.Wrap(err, "load cart snapshot")
	default:
		sess.snap = *snap
	}
	sess.loaded = true
	return nil
}

// Get returns the current snapshot of the cart.
func (s *Service) Get(ctx context.Context, cartID string) (Snapshot, error) {
	sess := s.acquire(cartID)
	defer sess.mu.Unlock()

	if err := s.load(ctx, cartID, sess); err != nil {
		return Snapshot{}, err
	}
	return sess.snap, nil
}

// mutate applies fn to the cart under its session lock and schedules a save
// when fn succeeds.
func (s *Service) mutate(ctx context.Context, cartID string, fn func(Snapshot) (Snapshot, error)) (Snapshot, error) {
	sess := s.acquire(cartID)
	defer sess.mu.Unlock()

	if err := s.load(ctx, cartID, sess); err != nil {
		return Snapshot{}, err
	}
	next, err := fn(sess.snap)
	if err != nil {
		return sess.snap, err
	}
	sess.snap = next
	s.saver.Schedule(cartID, next)
	return next, nil
}

// AddItem adds a product to the cart. A cart holds items from one partner
// only; adding from another partner fails unless ReplaceCart is set.
func (s *Service) AddItem(ctx context.Context, cartID string, req AddItemRequest) (Snapshot, error) {
	return s.mutate(ctx, cartID, func(snap Snapshot) (Snapshot, error) {
		if current := snap.Cart.PartnerID(); current != "" && current != req.Item.PartnerID {
			if !req.ReplaceCart {
				return snap, &PartnerMismatchError{Current: current, Requested: req.Item.PartnerID}
			}
			snap = Snapshot{Charges: Charges{ServiceFee: snap.Charges.ServiceFee}}
		}
		snap.Cart = snap.Cart.AddItem(req.Item, req.Quantity, req.Extras, req.MergeByProduct)
		return snap, nil
	})
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, lineID string) (Snapshot, error) {
	return s.apply(ctx, cartID, func(l Ledger) Ledger { return l.RemoveItem(lineID) })
}

// SetQuantity changes the quantity of a line.
func (s *Service) SetQuantity(ctx context.Context, cartID, lineID string, quantity int) (Snapshot, error) {
	return s.apply(ctx, cartID, func(l Ledger) Ledger { return l.SetQuantity(lineID, quantity) })
}

// AddExtra attaches an extra to one unit of a line.
func (s *Service) AddExtra(ctx context.Context, cartID, lineID string, extra Extra) (Snapshot, error) {
	return s.apply(ctx, cartID, func(l Ledger) Ledger { return l.AddExtra(lineID, extra) })
}

// IncrementExtra adds one to an extra's count.
func (s *Service) IncrementExtra(ctx context.Context, cartID, lineID, extraID string) (Snapshot, error) {
	return s.apply(ctx, cartID, func(l Ledger) Ledger { return l.IncrementExtra(lineID, extraID) })
}

// DecrementExtra removes one from an extra's count.
func (s *Service) DecrementExtra(ctx context.Context, cartID, lineID, extraID string) (Snapshot, error) {
	return s.apply(ctx, cartID, func(l Ledger) Ledger { return l.DecrementExtra(lineID, extraID) })
}

// RemoveExtra removes an extra from a line.
func (s *Service) RemoveExtra(ctx context.Context, cartID, lineID, extraID string) (Snapshot, error) {
	return s.apply(ctx, cartID, func(l Ledger) Ledger { return l.RemoveExtra(lineID, extraID) })
}

// Clear empties the cart and resets its shipping fee.
func (s *Service) Clear(ctx context.Context, cartID string) (Snapshot, error) {
	return s.mutate(ctx, cartID, func(snap Snapshot) (Snapshot, error) {
		return Snapshot{Charges: Charges{ServiceFee: snap.Charges.ServiceFee}}, nil
	})
}

// SetCharges replaces the shipping and service fees of the cart.
func (s *Service) SetCharges(ctx context.Context, cartID string, charges Charges) (Snapshot, error) {
	return s.mutate(ctx, cartID, func(snap Snapshot) (Snapshot, error) {
		snap.Charges = Charges{
			ShippingFee: nonNegative(charges.ShippingFee),
			ServiceFee:  nonNegative(charges.ServiceFee),
		}
		return snap, nil
	})
}

func (s *Service) apply(ctx context.Context, cartID string, fn func(Ledger) Ledger) (Snapshot, error) {
	return s.mutate(ctx, cartID, func(snap Snapshot) (Snapshot, error) {
		snap.Cart = fn(snap.Cart)
		return snap, nil
	})
}

// EvictIdle drops sessions unused for longer than maxIdle whose last snapshot
// has been written, so the next access reloads it from the Store.
func (s *Service) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for cartID, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastUsed.Before(cutoff) && s.saver.Forget(cartID) {
			sess.evicted = true
			delete(s.sessions, cartID)
			evicted++
		}
		sess.mu.Unlock()
	}
	return evicted
}

// RunEviction calls EvictIdle every interval until ctx is cancelled.
func (s *Service) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(maxIdle)
		}
	}
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
