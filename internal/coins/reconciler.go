// Package coins converts between abstract balances and physical coin units.
//
// The Reconciler holds no state of its own: it computes over the static
// denomination catalog and reads or mutates inventories handed to it.
package coins

import (
	"context"
	"errors"
	"fmt"
	"math"

	"coin_economy/internal/domain"
	"coin_economy/internal/inventory"
)

// DefaultStackSize is the largest number of units deposited in one call
const DefaultStackSize = 64

// DPLimit is the largest amount planned with dynamic programming when the
// catalog is not a divisibility chain; above it planning falls back to greedy.
const DPLimit = 1 << 18

// CoinCount is a number of coins of one denomination
type CoinCount struct {
	Denomination domain.Denomination `json:"denomination"`
	Count        int64               `json:"count"`
}

// Breakdown lists coin counts, largest denomination first, without zero counts
type Breakdown []CoinCount

// Total is the value of all coins in the breakdown
func (b Breakdown) Total() int64 {
	var total int64
	for _, c := range b {
		total += c.Denomination.Value * c.Count
	}
	return total
}

// CountOf returns the count for the denomination with the given value
func (b Breakdown) CountOf(value int64) int64 {
	for _, c := range b {
		if c.Denomination.Value == value {
			return c.Count
		}
	}
	return 0
}

// Coins is the number of physical coins in the breakdown
func (b Breakdown) Coins() int64 {
	var n int64
	for _, c := range b {
		n += c.Count
	}
	return n
}

// Multiset maps denomination tags to held counts
type Multiset map[string]int64

// Tally is the result of counting a multiset
type Tally struct {
	Total           int64     `json:"total"`
	PerDenomination Breakdown `json:"per_denomination"`
	// Overflow is set when the held value exceeds int64; Total is then MaxInt64
	Overflow bool `json:"overflow,omitempty"`
}

// Reconciler decides coin decompositions and exact-change feasibility
type Reconciler struct {
	catalog   domain.Catalog
	stackSize int64
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithStackSize caps the units passed to a single deposit call
func WithStackSize(n int64) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.stackSize = n
		}
	}
}

// NewReconciler returns a reconciler over the given catalog
func NewReconciler(catalog domain.Catalog, opts ...Option) *Reconciler {
	r := &Reconciler{catalog: catalog, stackSize: DefaultStackSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the denominations the reconciler works with
func (r *Reconciler) Catalog() domain.Catalog { return r.catalog }

// DecomposeGreedy takes as many of each denomination as fit, largest first.
// With a unit-valued smallest denomination the result always sums to amount;
// otherwise the remainder is dropped and Total() reports what was covered.
func (r *Reconciler) DecomposeGreedy(amount int64) Breakdown {
	var out Breakdown
	remaining := amount
	for _, d := range r.catalog.Denominations() {
		if remaining <= 0 {
			break
		}
		n := remaining / d.Value
		if n == 0 {
			continue
		}
		out = append(out, CoinCount{Denomination: d, Count: n})
		remaining -= n * d.Value
	}
	return out
}

// CountInventory sums count × value over the catalog's denominations.
// Tags outside the catalog are ignored.
func (r *Reconciler) CountInventory(m Multiset) Tally {
	var t Tally
	for _, d := range r.catalog.Denominations() {
		n := m[d.Tag]
		if n <= 0 {
			continue
		}
		t.PerDenomination = append(t.PerDenomination, CoinCount{Denomination: d, Count: n})
		if t.Overflow || n > (math.MaxInt64-t.Total)/d.Value {
			t.Total, t.Overflow = math.MaxInt64, true
			continue
		}
		t.Total += n * d.Value
	}
	return t
}

// CanPayExact reports whether amount can be assembled exactly from m
func (r *Reconciler) CanPayExact(m Multiset, amount int64) bool {
	_, ok := r.plan(m, amount)
	return ok
}

// Snapshot reads the held count of every catalog denomination
func (r *Reconciler) Snapshot(ctx context.Context, inv inventory.Inventory) (Multiset, error) {
	m := make(Multiset, r.catalog.Len())
	for _, d := range r.catalog.Denominations() {
		n, err := inv.CountUnitsOf(ctx, d.Tag)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", d.Tag, err)
		}
		if n > 0 {
			m[d.Tag] = n
		}
	}
	return m, nil
}

// RemoveExact takes exactly amount worth of coins out of inv. It returns false
// without touching inv when exact change is impossible.
func (r *Reconciler) RemoveExact(ctx context.Context, inv inventory.Inventory, amount int64) (bool, error) {
	if amount < 0 {
		return false, domain.ErrInvalidAmount
	}
	m, err := r.Snapshot(ctx, inv)
	if err != nil {
		return false, err
	}
	plan, ok := r.plan(m, amount)
	if !ok {
		return false, nil
	}
	remaining := amount
	for i, c := range plan {
		if err := inv.RemoveUnits(ctx, c.Denomination.Tag, c.Count); err != nil {
			removeErr := fmt.Errorf("remove %d × %d: %w", c.Count, c.Denomination.Value, err)
			if rerr := r.restore(ctx, inv, plan[:i]); rerr != nil {
				return false, errors.Join(removeErr, rerr)
			}
			return false, removeErr
		}
		remaining -= c.Count * c.Denomination.Value
	}
	if remaining != 0 {
		return false, fmt.Errorf("%w: %d left after removing %d", domain.ErrInvariantBroken, remaining, amount)
	}
	return true, nil
}

// GiveDenominated deposits amount into inv using the fewest coins
func (r *Reconciler) GiveDenominated(ctx context.Context, inv inventory.Inventory, amount int64) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	b := r.DecomposeGreedy(amount)
	if b.Total() != amount {
		return fmt.Errorf("%w: %d cannot be made from the catalog", domain.ErrNotDivisible, amount)
	}
	for _, c := range b {
		if err := r.deposit(ctx, inv, c.Denomination.Tag, c.Count); err != nil {
			return err
		}
	}
	return nil
}

// GiveSpecific deposits amount using only denomination d. It returns false
// without side effects if amount is not a multiple of d's value.
func (r *Reconciler) GiveSpecific(ctx context.Context, inv inventory.Inventory, amount int64, d domain.Denomination) (bool, error) {
	if amount < 0 {
		return false, domain.ErrInvalidAmount
	}
	if _, ok := r.catalog.ByTag(d.Tag); !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrUnknownDenomination, d.Tag)
	}
	if d.Value <= 0 || amount%d.Value != 0 {
		return false, nil
	}
	if err := r.deposit(ctx, inv, d.Tag, amount/d.Value); err != nil {
		return false, err
	}
	return true, nil
}

// deposit batches units by stack size
func (r *Reconciler) deposit(ctx context.Context, inv inventory.Inventory, tag string, count int64) error {
	for count > 0 {
		n := min(count, r.stackSize)
		if err := inv.DepositUnits(ctx, tag, n); err != nil {
			return fmt.Errorf("deposit %d of %s: %w", n, tag, err)
		}
		count -= n
	}
	return nil
}

// restore puts back coins already removed by a failed RemoveExact and
// reports every put-back that failed
func (r *Reconciler) restore(ctx context.Context, inv inventory.Inventory, removed Breakdown) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, c := range removed {
		if err := r.deposit(ctx, inv, c.Denomination.Tag, c.Count); err != nil {
			errs = append(errs, fmt.Errorf("restore %d × %d: %w", c.Count, c.Denomination.Value, err))
		}
	}
	return errors.Join(errs...)
}

// plan picks the coins to hand over for amount, bounded by availability
func (r *Reconciler) plan(m Multiset, amount int64) (Breakdown, bool) {
	if amount < 0 {
		return nil, false
	}
	if amount == 0 {
		return nil, true
	}
	if r.catalog.IsChain() || amount > DPLimit {
		return r.planGreedy(m, amount)
	}
	return r.planExact(m, amount)
}

// planGreedy walks largest to smallest taking min(available, remaining/value)
func (r *Reconciler) planGreedy(m Multiset, amount int64) (Breakdown, bool) {
	var out Breakdown
	remaining := amount
	for _, d := range r.catalog.Denominations() {
		if remaining == 0 {
			break
		}
		n := min(m[d.Tag], remaining/d.Value)
		if n <= 0 {
			continue
		}
		out = append(out, CoinCount{Denomination: d, Count: n})
		remaining -= n * d.Value
	}
	return out, remaining == 0
}

// planExact is a bounded coin-change search used when greedy can miss a
// solution. used[s] counts coins of the current denomination spent to reach s.
func (r *Reconciler) planExact(m Multiset, amount int64) (Breakdown, bool) {
	ds := r.catalog.Denominations()
	size := int(amount) + 1
	reach := make([]bool, size)
	reach[0] = true
	// take[i][s] = coins of ds[i] used on the path that first reached s
	take := make([][]int32, len(ds))
	used := make([]int64, size)
	for i, d := range ds {
		avail := m[d.Tag]
		take[i] = make([]int32, size)
		if avail <= 0 {
			continue
		}
		clear(used)
		v := int(d.Value)
		for s := v; s < size; s++ {
			if !reach[s] && reach[s-v] && used[s-v] < avail {
				reach[s] = true
				used[s] = used[s-v] + 1
				take[i][s] = int32(used[s])
			}
		}
	}
	if !reach[amount] {
		return nil, false
	}
	counts := make([]int64, len(ds))
	s := int(amount)
	for i := len(ds) - 1; i >= 0 && s > 0; i-- {
		if n := take[i][s]; n > 0 {
			counts[i] = int64(n)
			s -= int(n) * int(ds[i].Value)
		}
	}
	if s != 0 {
		return nil, false
	}
	var out Breakdown
	for i, d := range ds {
		if counts[i] > 0 {
			out = append(out, CoinCount{Denomination: d, Count: counts[i]})
		}
	}
	return out, true
}
