package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/courier-pricing/internal/domain/cart"
)

type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	rdb := newFakeRedis()
	store := NewSnapshotStore(rdb, 24*time.Hour)
	ctx := context.Background()

	ledger := cart.Ledger{}.AddItem(cart.Item{
		ProductID: "burger",
		PartnerID: "p1",
		Name:      "Burger",
		UnitPrice: decimal.RequireFromString("8.50"),
	}, 2, nil, true)
	snap := cart.Snapshot{
		Cart:    ledger,
		Charges: cart.Charges{ShippingFee: decimal.NewFromInt(5), ServiceFee: decimal.RequireFromString("1.5")},
	}

	require.NoError(t, store.Save(ctx, "c1", snap))
	assert.Contains(t, rdb.data, "cart:snapshot:c1")
	assert.Equal(t, 24*time.Hour, rdb.ttls["cart:snapshot:c1"])
	assert.Contains(t, rdb.data["cart:snapshot:c1"], `"items"`)
	assert.Contains(t, rdb.data["cart:snapshot:c1"], `"shippingFee"`)

	got, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got.Cart.Lines, 1)
	assert.Equal(t, 2, got.Cart.Lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("17").Equal(got.Cart.Subtotal()))
	assert.True(t, decimal.NewFromInt(5).Equal(got.Charges.ShippingFee))
}

func TestSnapshotStore_Missing(t *testing.T) {
	_, err := NewSnapshotStore(newFakeRedis(), 0).Load(context.Background(), "nope")
	require.ErrorIs(t, err, cart.ErrSnapshotNotFound)
}

func TestSnapshotStore_Errors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data["cart:snapshot:bad"] = "{not json"
	store := NewSnapshotStore(rdb, 0)

	_, err := store.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, cart.ErrSnapshotNotFound))

	rdb.getErr = errors.New("connection refused")
	_, err = store.Load(context.Background(), "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSnapshotStore_AcceptsStringAmounts(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data["cart:snapshot:c2"] = `{"cart":{"items":[{"id":"l1","productId":"p","partnerId":"x","name":"Soda","unitPrice":"2.5","quantity":2,"extras":[]}]},"charges":{"shippingFee":4,"serviceFee":"1"}}`

	got, err := NewSnapshotStore(rdb, 0).Load(context.Background(), "c2")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(got.Cart.Subtotal()))
	assert.True(t, decimal.NewFromInt(4).Equal(got.Charges.ShippingFee))
}
