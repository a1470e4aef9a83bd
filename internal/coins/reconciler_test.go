package coins

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"coin_economy/internal/domain"
	"coin_economy/internal/inventory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tag1     = "kubeshop:coin_1"
	tag10    = "kubeshop:coin_10"
	tag100   = "kubeshop:coin_100"
	tag1000  = "kubeshop:coin_1000"
	tag10000 = "kubeshop:coin_10000"
)

func newDefault() *Reconciler {
	return NewReconciler(domain.DefaultCatalog())
}

func fill(inv *inventory.Memory, m Multiset) *inventory.Memory {
	for tag, n := range m {
		inv.Set(tag, n)
	}
	return inv
}

// countingInventory records deposit call sizes
type countingInventory struct {
	*inventory.Memory
	deposits []int64
}

func (c *countingInventory) DepositUnits(ctx context.Context, tag string, n int64) error {
	c.deposits = append(c.deposits, n)
	return c.Memory.DepositUnits(ctx, tag, n)
}

// failingInventory refuses removals of one tag
type failingInventory struct {
	*inventory.Memory
	failTag string
}

func (f *failingInventory) RemoveUnits(ctx context.Context, tag string, n int64) error {
	if tag == f.failTag {
		return errors.New("slot locked")
	}
	return f.Memory.RemoveUnits(ctx, tag, n)
}

func TestDecomposeGreedy_1234(t *testing.T) {
	b := newDefault().DecomposeGreedy(1234)

	assert.Equal(t, int64(1), b.CountOf(1000))
	assert.Equal(t, int64(2), b.CountOf(100))
	assert.Equal(t, int64(3), b.CountOf(10))
	assert.Equal(t, int64(4), b.CountOf(1))
	assert.Equal(t, int64(0), b.CountOf(10000))
	assert.Len(t, b, 4, "zero counts are omitted")
	assert.Equal(t, int64(1234), b.Total())
	assert.Equal(t, int64(10), b.Coins())
}

func TestDecomposeGreedy_SumsToAmount(t *testing.T) {
	r := newDefault()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		amount := rng.Int63n(5_000_000)
		assert.Equal(t, amount, r.DecomposeGreedy(amount).Total(), "amount %d", amount)
	}
	assert.Empty(t, r.DecomposeGreedy(0))
}

func TestDecomposeGreedy_LeavesRemainderWithoutUnit(t *testing.T) {
	r := NewReconciler(domain.MustCatalog(
		domain.Denomination{Value: 10, Tag: "ten"},
		domain.Denomination{Value: 5, Tag: "five"},
	))
	b := r.DecomposeGreedy(17)
	assert.Equal(t, int64(15), b.Total())
}

func TestCountInventory(t *testing.T) {
	tally := newDefault().CountInventory(Multiset{tag10: 1, tag1: 3, "minecraft:dirt": 64})

	assert.Equal(t, int64(13), tally.Total)
	require.Len(t, tally.PerDenomination, 2)
	assert.Equal(t, int64(10), tally.PerDenomination[0].Denomination.Value)
	assert.Equal(t, int64(1), tally.PerDenomination[0].Count)
	assert.Equal(t, int64(3), tally.PerDenomination.CountOf(1))
}

func TestCanPayExact(t *testing.T) {
	r := newDefault()
	m := Multiset{tag10: 1, tag1: 3}

	assert.True(t, r.CanPayExact(m, 13))
	assert.False(t, r.CanPayExact(m, 14))
	assert.True(t, r.CanPayExact(m, 10))
	assert.True(t, r.CanPayExact(m, 0))
	assert.False(t, r.CanPayExact(m, -1))
	assert.False(t, r.CanPayExact(Multiset{tag100: 1}, 50), "no change is made")
}

func TestCanPayExact_NonChainCatalogUsesSearch(t *testing.T) {
	r := NewReconciler(domain.MustCatalog(
		domain.Denomination{Value: 4, Tag: "four"},
		domain.Denomination{Value: 3, Tag: "three"},
	))
	m := Multiset{"four": 1, "three": 2}

	// greedy would take the 4 and get stuck at 2
	_, greedyOK := r.planGreedy(m, 6)
	assert.False(t, greedyOK)

	assert.True(t, r.CanPayExact(m, 6))
	assert.True(t, r.CanPayExact(m, 10))
	assert.False(t, r.CanPayExact(m, 5))
	assert.False(t, r.CanPayExact(m, 11))
}

func TestRemoveExact_NonChainCatalog(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(domain.MustCatalog(
		domain.Denomination{Value: 4, Tag: "four"},
		domain.Denomination{Value: 3, Tag: "three"},
	))
	inv := fill(inventory.NewMemory(), Multiset{"four": 1, "three": 2})

	ok, err := r.RemoveExact(ctx, inv, 6)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]int64{"four": 1}, inv.Snapshot())
}

func TestRemoveExact_TakesGreedyCoins(t *testing.T) {
	ctx := context.Background()
	r := newDefault()
	inv := fill(inventory.NewMemory(), Multiset{tag100: 2, tag10: 5, tag1: 9})

	ok, err := r.RemoveExact(ctx, inv, 137)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]int64{tag100: 1, tag10: 2, tag1: 2}, inv.Snapshot())
}

func TestRemoveExact_GateLeavesInventoryUnchanged(t *testing.T) {
	ctx := context.Background()
	r := newDefault()
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		m := Multiset{
			tag1000: rng.Int63n(3),
			tag100:  rng.Int63n(4),
			tag10:   rng.Int63n(4),
			tag1:    rng.Int63n(4),
		}
		inv := fill(inventory.NewMemory(), m)
		before := inv.Snapshot()
		amount := rng.Int63n(4000)

		if r.CanPayExact(m, amount) {
			continue
		}
		ok, err := r.RemoveExact(ctx, inv, amount)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, before, inv.Snapshot())
	}
}

func TestRemoveExact_RestoresOnCollaboratorFailure(t *testing.T) {
	ctx := context.Background()
	r := newDefault()
	inv := &failingInventory{Memory: fill(inventory.NewMemory(), Multiset{tag100: 1, tag1: 5}), failTag: tag1}
	before := inv.Snapshot()

	ok, err := r.RemoveExact(ctx, inv, 105)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, inv.Snapshot())
}

// jammedInventory refuses removals of one tag and every deposit
type jammedInventory struct {
	failingInventory
}

func (j *jammedInventory) DepositUnits(context.Context, string, int64) error {
	return errors.New("purse unreachable")
}

func TestRemoveExact_ReportsFailedRestore(t *testing.T) {
	ctx := context.Background()
	r := newDefault()
	inv := &jammedInventory{failingInventory{Memory: fill(inventory.NewMemory(), Multiset{tag100: 1, tag1: 5}), failTag: tag1}}

	ok, err := r.RemoveExact(ctx, inv, 105)
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorContains(t, err, "slot locked")
	assert.ErrorContains(t, err, "restore 1 × 100")
	assert.ErrorContains(t, err, "purse unreachable")
}

func TestCountInventory_SaturatesOnOverflow(t *testing.T) {
	tally := newDefault().CountInventory(Multiset{tag10000: 1 << 62, tag1: 3})

	assert.True(t, tally.Overflow)
	assert.Equal(t, int64(math.MaxInt64), tally.Total)
	assert.Equal(t, int64(3), tally.PerDenomination.CountOf(1))

	assert.False(t, newDefault().CountInventory(Multiset{tag10000: 5}).Overflow)
}

func TestRemoveThenGive_RestoresTotal(t *testing.T) {
	ctx := context.Background()
	r := newDefault()
	inv := fill(inventory.NewMemory(), Multiset{tag1000: 2, tag100: 7, tag10: 12, tag1: 30})

	snap, err := r.Snapshot(ctx, inv)
	require.NoError(t, err)
	before := r.CountInventory(snap).Total

	for _, amount := range []int64{1, 9, 120, 1111, 2745} {
		ok, err := r.RemoveExact(ctx, inv, amount)
		require.NoError(t, err)
		require.True(t, ok, "amount %d", amount)
		require.NoError(t, r.GiveDenominated(ctx, inv, amount))

		snap, err = r.Snapshot(ctx, inv)
		require.NoError(t, err)
		assert.Equal(t, before, r.CountInventory(snap).Total)
	}
}

func TestGiveDenominated_BatchesStacks(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(domain.DefaultCatalog(), WithStackSize(64))
	inv := &countingInventory{Memory: inventory.NewMemory()}

	require.NoError(t, r.GiveDenominated(ctx, inv, 150_003))

	assert.Equal(t, map[string]int64{tag10000: 15, tag1: 3}, inv.Snapshot())
	assert.Equal(t, []int64{15, 3}, inv.deposits)

	inv.deposits = nil
	require.NoError(t, r.GiveDenominated(ctx, inv, 1_000_000))
	assert.Equal(t, []int64{64, 36}, inv.deposits)
}

func TestGiveDenominated_RejectsUnrepresentable(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(domain.MustCatalog(domain.Denomination{Value: 5, Tag: "five"}))
	inv := inventory.NewMemory()

	err := r.GiveDenominated(ctx, inv, 12)
	assert.True(t, errors.Is(err, domain.ErrNotDivisible))
	assert.Empty(t, inv.Snapshot())
}

func TestGiveSpecific(t *testing.T) {
	ctx := context.Background()
	r := newDefault()
	inv := inventory.NewMemory()
	hundred, _ := domain.DefaultCatalog().ByValue(100)

	ok, err := r.GiveSpecific(ctx, inv, 250, hundred)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, inv.Snapshot())

	ok, err = r.GiveSpecific(ctx, inv, 300, hundred)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]int64{tag100: 3}, inv.Snapshot())

	_, err = r.GiveSpecific(ctx, inv, 5, domain.Denomination{Value: 5, Tag: "other:coin"})
	assert.True(t, errors.Is(err, domain.ErrUnknownDenomination))
}
