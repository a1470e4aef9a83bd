// Package ledger owns account balances and their transaction history.
//
// Every mutation is written to the backing Store before the in-memory view is
// updated, so a failed write leaves both the Store and the cache unchanged.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"coin_economy/internal/db"
	"coin_economy/internal/domain"

	"github.com/sirupsen/logrus"
)

// Ledger is the single source of truth for balances and history
type Ledger struct {
	store db.Store
	log   *logrus.Entry
	now   func() time.Time

	startingBalance int64
	historyLimit    int
	shared          bool

	mu       sync.Mutex
	open     bool
	balances map[string]int64
	history  map[string][]domain.HistoryEntry
}

// Option configures a Ledger
type Option func(*Ledger)

// WithStartingBalance sets the balance of lazily created accounts
func WithStartingBalance(v int64) Option {
	return func(l *Ledger) {
		if v >= 0 {
			l.startingBalance = v
		}
	}
}

// WithHistoryLimit sets how many entries are kept per account
func WithHistoryLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.historyLimit = n
		}
	}
}

// WithSharedStore disables the process cache so every read goes to the Store.
// Use it when several processes write the same Store.
func WithSharedStore(shared bool) Option {
	return func(l *Ledger) { l.shared = shared }
}

// WithClock replaces time.Now for history timestamps
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the log entry used by the ledger
func WithLogger(log *logrus.Entry) Option {
	return func(l *Ledger) { l.log = log }
}

// New creates a closed ledger over store; call Open before use
func New(store db.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:        store,
		log:          logrus.WithField("component", "ledger"),
		now:          time.Now,
		historyLimit: domain.MaxHistoryPerAccount,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open makes the ledger usable and resets its cache
func (l *Ledger) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[string]int64)
	l.history = make(map[string][]domain.HistoryEntry)
	l.open = true
	l.log.WithFields(logrus.Fields{
		"starting_balance": l.startingBalance,
		"history_limit":    l.historyLimit,
		"shared_store":     l.shared,
	}).Info("ledger opened")
	return nil
}

// Close drops the cache and closes the Store
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return nil
	}
	l.open = false
	l.balances = nil
	l.history = nil
	l.log.Info("ledger closed")
	return l.store.Close()
}

// GetBalance returns the balance, creating the account with the starting
// balance if it has never been seen
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return 0, domain.ErrLedgerClosed
	}
	return l.balance(ctx, accountID)
}

// SetBalance replaces the balance exactly (administrative override)
func (l *Ledger) SetBalance(ctx context.Context, accountID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return domain.ErrLedgerClosed
	}
	return l.write(ctx, accountID, amount)
}

// AddBalance credits amount, creating the account if needed
func (l *Ledger) AddBalance(ctx context.Context, accountID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return domain.ErrLedgerClosed
	}
	bal, err := l.balance(ctx, accountID)
	if err != nil {
		return err
	}
	if amount > math.MaxInt64-bal {
		return fmt.Errorf("%w: %d + %d", domain.ErrBalanceOverflow, bal, amount)
	}
	return l.write(ctx, accountID, bal+amount)
}

// CanAdd reports whether crediting amount would overflow the balance
func (l *Ledger) CanAdd(ctx context.Context, accountID string, amount int64) (bool, error) {
	bal, err := l.GetBalance(ctx, accountID)
	if err != nil {
		return false, err
	}
	return amount >= 0 && amount <= math.MaxInt64-bal, nil
}

// RemoveBalance debits amount and reports true, or reports false without
// change when the balance is too low
func (l *Ledger) RemoveBalance(ctx context.Context, accountID string, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return false, domain.ErrLedgerClosed
	}
	bal, err := l.balance(ctx, accountID)
	if err != nil {
		return false, err
	}
	if bal < amount {
		return false, nil
	}
	if err := l.write(ctx, accountID, bal-amount); err != nil {
		return false, err
	}
	return true, nil
}

// RecordHistory prepends an entry and trims the account's history to the limit
func (l *Ledger) RecordHistory(ctx context.Context, accountID string, kind domain.HistoryKind, amount int64, counterparty, note string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidKind, kind)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return domain.ErrLedgerClosed
	}
	current, err := l.entries(ctx, accountID)
	if err != nil {
		return err
	}
	entry := domain.HistoryEntry{
		Kind:         kind,
		Amount:       amount,
		Counterparty: counterparty,
		Note:         note,
		Timestamp:    l.now().UTC(),
	}
	n := min(len(current)+1, l.historyLimit)
	next := make([]domain.HistoryEntry, 0, n)
	next = append(next, entry)
	next = append(next, current[:n-1]...)

	if err := l.store.SaveHistory(ctx, accountID, next); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	if !l.shared {
		l.history[accountID] = next
	}
	return nil
}

// GetHistory returns a copy of the account's history, most recent first
func (l *Ledger) GetHistory(ctx context.Context, accountID string) ([]domain.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return nil, domain.ErrLedgerClosed
	}
	current, err := l.entries(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.HistoryEntry, len(current))
	copy(out, current)
	return out, nil
}

// ResetAccount deletes the account's balance and history (administrative)
func (l *Ledger) ResetAccount(ctx context.Context, accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return domain.ErrLedgerClosed
	}
	if err := l.store.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	delete(l.balances, accountID)
	delete(l.history, accountID)
	l.log.WithField("account_id", accountID).Warn("account reset")
	return nil
}

// balance reads through the cache; caller holds mu
func (l *Ledger) balance(ctx context.Context, accountID string) (int64, error) {
	if !l.shared {
		if b, ok := l.balances[accountID]; ok {
			return b, nil
		}
	}
	b, found, err := l.store.Load(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	if !found {
		// Lazily create the account so it persists from first access
		if err := l.store.Save(ctx, accountID, l.startingBalance); err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
		}
		b = l.startingBalance
		l.log.WithFields(logrus.Fields{"account_id": accountID, "balance": b}).Debug("account created")
	}
	if !l.shared {
		l.balances[accountID] = b
	}
	return b, nil
}

// write persists then caches; caller holds mu
func (l *Ledger) write(ctx context.Context, accountID string, balance int64) error {
	if err := l.store.Save(ctx, accountID, balance); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	if !l.shared {
		l.balances[accountID] = balance
	}
	return nil
}

// entries reads history through the cache; caller holds mu
func (l *Ledger) entries(ctx context.Context, accountID string) ([]domain.HistoryEntry, error) {
	if !l.shared {
		if h, ok := l.history[accountID]; ok {
			return h, nil
		}
	}
	h, err := l.store.LoadHistory(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	if len(h) > l.historyLimit {
		h = h[:l.historyLimit]
	}
	if !l.shared {
		l.history[accountID] = h
	}
	return h, nil
}
