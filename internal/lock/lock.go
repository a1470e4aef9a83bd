// Package lock serializes operations on ledger accounts.
//
// Local reproduces the host's single tick thread inside one process. Redis
// extends the same guarantee to every process sharing a Redis instance, which
// is required when several servers share one relational store.
package lock

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNoKeys is returned when WithLock is called without keys
var ErrNoKeys = errors.New("lock: no keys")

// Locker runs fn while holding every key
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(context.Context) error) error
}

// AccountKey is the lock key for a ledger account
func AccountKey(accountID string) string { return "lock:account:" + accountID }

// AccountKeys builds sorted, de-duplicated lock keys for the given accounts
func AccountKeys(accountIDs ...string) []string {
	seen := make(map[string]struct{}, len(accountIDs))
	keys := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		k := AccountKey(id)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Local serializes all locked sections of this process
type Local struct {
	mu sync.Mutex
}

// NewLocal returns an in-process locker
func NewLocal() *Local { return &Local{} }

func (l *Local) WithLock(ctx context.Context, keys []string, fn func(context.Context) error) error {
	if len(keys) == 0 {
		return ErrNoKeys
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}
