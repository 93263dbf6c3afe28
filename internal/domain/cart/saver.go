package cart

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Saver coalesces snapshot writes per cart: a burst of mutations results in a
// single Store.Save once the cart has been quiet for the debounce delay.
type Saver struct {
	store   Store
	delay   time.Duration
	timeout time.Duration
	lg      *zap.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[string]*pendingSave
	saved   map[string]uint64
	locks   keyedMutex
	wg      sync.WaitGroup
}

type pendingSave struct {
	timer *time.Timer
	snap  Snapshot
	seq   uint64
}

// NewSaver creates a Saver writing to store after delay of inactivity. Each
// write is bounded by timeout.
func NewSaver(store Store, delay, timeout time.Duration, lg *zap.Logger) *Saver {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Saver{
		store:   store,
		delay:   delay,
		timeout: timeout,
		lg:      lg,
		pending: make(map[string]*pendingSave),
		saved:   make(map[string]uint64),
	}
}

// Schedule records snap as the latest state of the cart and (re)arms its
// debounce timer.
func (s *Saver) Schedule(cartID string, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	if p, ok := s.pending[cartID]; ok && p.timer.Stop() {
		p.snap = snap
		p.seq = s.seq
		p.timer.Reset(s.delay)
		return
	}

	p := &pendingSave{snap: snap, seq: s.seq}
	s.pending[cartID] = p
	s.wg.Add(1)
	p.timer = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.fire(cartID, p)
	})
}

// fire writes p and only then forgets it, so Pending stays true until the
// snapshot has reached the store.
func (s *Saver) fire(cartID string, p *pendingSave) {
	s.mu.Lock()
	snap, seq := p.snap, p.seq
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.write(ctx, cartID, snap, seq); err != nil {
		s.lg.Warn("Debounced cart save failed", zap.String("cart_id", cartID), zap.Error(err))
	}

	s.mu.Lock()
	if s.pending[cartID] == p {
		delete(s.pending, cartID)
	}
	s.mu.Unlock()
}

// Pending reports whether the cart has a snapshot not yet written.
func (s *Saver) Pending(cartID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[cartID]
	return ok
}

// write saves snap unless a newer snapshot of the same cart was already
// written.
func (s *Saver) write(ctx context.Context, cartID string, snap Snapshot, seq uint64) error {
	unlock := s.locks.Lock(cartID)
	defer unlock()

	s.mu.Lock()
	stale := s.saved[cartID] >= seq
	s.mu.Unlock()
	if stale {
		return nil
	}

	if err := s.store.Save(ctx, cartID, snap); err != nil {
		return err
	}

	s.mu.Lock()
	s.saved[cartID] = seq
	s.mu.Unlock()
	return nil
}

// Flush writes every pending snapshot immediately and waits for in-flight
// writes to finish.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	flush := make(map[string]*pendingSave, len(s.pending))
	for cartID, p := range s.pending {
		if p.timer.Stop() {
			s.wg.Done()
			flush[cartID] = p
		}
		delete(s.pending, cartID)
	}
	s.mu.Unlock()

	var firstErr error
	for cartID, p := range flush {
		if err := s.write(ctx, cartID, p.snap, p.seq); err != nil {
			s.lg.Warn("Cart flush failed", zap.String("cart_id", cartID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.wg.Wait()
	return firstErr
}

// Forget drops the bookkeeping kept for a cart that has no pending or
// in-flight write and reports whether it did. A cart that was forgotten may be
// scheduled again later.
func (s *Saver) Forget(cartID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[cartID]; ok || s.locks.held(cartID) {
		return false
	}
	delete(s.saved, cartID)
	return true
}

// keyedMutex hands out one mutex per key. An entry lives only while someone
// holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.locks[key]
	return ok
}

func (k *keyedMutex) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
