package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

// exerciseInventory checks the behaviour shared by every container
func exerciseInventory(t *testing.T, inv Inventory) {
	t.Helper()
	ctx := context.Background()

	n, err := inv.CountUnitsOf(ctx, "coin")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, inv.DepositUnits(ctx, "coin", 5))
	require.NoError(t, inv.DepositUnits(ctx, "coin", 3))
	n, err = inv.CountUnitsOf(ctx, "coin")
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	err = inv.RemoveUnits(ctx, "coin", 9)
	assert.True(t, errors.Is(err, ErrNotEnoughUnits))
	n, _ = inv.CountUnitsOf(ctx, "coin")
	assert.Equal(t, int64(8), n, "failed removal must not change the count")

	require.NoError(t, inv.RemoveUnits(ctx, "coin", 8))
	n, _ = inv.CountUnitsOf(ctx, "coin")
	assert.Zero(t, n)

	assert.Error(t, inv.RemoveUnits(ctx, "coin", -1))
	assert.Error(t, inv.DepositUnits(ctx, "coin", -1))
}

func TestMemory_Contract(t *testing.T) {
	exerciseInventory(t, NewMemory())
}

func TestRedis_Contract(t *testing.T) {
	exerciseInventory(t, NewRedis(setupRedis(t), PurseKey("p1"), 0))
}

func TestMemory_Capacity(t *testing.T) {
	ctx := context.Background()
	inv := NewBoundedMemory(10)
	require.NoError(t, inv.DepositUnits(ctx, "dirt", 7))

	ok, err := HasRoom(ctx, inv, "stone", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = HasRoom(ctx, inv, "stone", 4)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, errors.Is(inv.DepositUnits(ctx, "stone", 4), ErrNoSpace))
}

func TestRedis_Capacity(t *testing.T) {
	ctx := context.Background()
	inv := NewRedis(setupRedis(t), StockKey(3), 10)
	require.NoError(t, inv.DepositUnits(ctx, "dirt", 7))

	free, err := inv.FreeSpaceFor(ctx, "stone")
	require.NoError(t, err)
	assert.Equal(t, int64(3), free)

	assert.True(t, errors.Is(inv.DepositUnits(ctx, "stone", 4), ErrNoSpace))
	require.NoError(t, inv.DepositUnits(ctx, "stone", 3))

	contents, err := inv.Contents(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"dirt": 7, "stone": 3}, contents)
}

func TestHasRoom_Unbounded(t *testing.T) {
	ok, err := HasRoom(context.Background(), NewMemory(), "x", 1<<40)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "purse:abc", PurseKey("abc"))
	assert.Equal(t, "stock:12", StockKey(12))
}

func TestProviders(t *testing.T) {
	ctx := context.Background()
	for name, p := range map[string]Provider{
		"memory": NewMemoryProvider(4),
		"redis":  NewRedisProvider(setupRedis(t), 4),
	} {
		t.Run(name, func(t *testing.T) {
			purse := p.Purse("acc")
			require.NoError(t, purse.DepositUnits(ctx, "coin", 100))
			n, err := p.Purse("acc").CountUnitsOf(ctx, "coin")
			require.NoError(t, err)
			assert.Equal(t, int64(100), n, "same account, same purse")

			stock := p.Stock(3)
			require.NoError(t, stock.DepositUnits(ctx, "gem", 4))
			err = p.Stock(3).DepositUnits(ctx, "gem", 1)
			assert.True(t, errors.Is(err, ErrNoSpace))

			n, err = p.Stock(4).CountUnitsOf(ctx, "gem")
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}
