// Package redis stores cart snapshots in Redis.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/courier-pricing/internal/domain/cart"
)

const snapshotPrefix = "cart:snapshot:"

type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// NewClient parses a redis:// URL and verifies connectivity.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

var _ cart.Store = (*SnapshotStore)(nil)

// SnapshotStore implements cart.Store. Every save refreshes the TTL, so
// abandoned carts expire on their own.
type SnapshotStore struct {
	rdb cmdable
	ttl time.Duration
}

// NewSnapshotStore creates a SnapshotStore. A zero ttl keeps snapshots
// forever.
func NewSnapshotStore(rdb cmdable, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{rdb: rdb, ttl: ttl}
}

// Load returns the stored snapshot, or cart.ErrSnapshotNotFound.
func (s *SnapshotStore) Load(ctx context.Context, cartID string) (*cart.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, snapshotKey(cartID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cart.ErrSnapshotNotFound
		}
		return nil, errors.Wrapf(err, "get snapshot of cart %q", cartID)
	}

	var snap cart.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot of cart %q", cartID)
	}
	return &snap, nil
}

// Save writes the snapshot.
func (s *SnapshotStore) Save(ctx context.Context, cartID string, snap cart.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrapf(err, "encode snapshot of cart %q", cartID)
	}
	if err := s.rdb.Set(ctx, snapshotKey(cartID), raw, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set snapshot of cart %q", cartID)
	}
	return nil
}

func snapshotKey(cartID string) string {
	return snapshotPrefix + cartID
}
