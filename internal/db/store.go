package db

import (
	"context"
	"fmt"

	"coin_economy/internal/domain"
)

// Backend names accepted by Open
const (
	BackendMySQL  = "mysql"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Store persists balances and history. Every implementation satisfies the same
// contract so the ledger never special-cases a backend.
type Store interface {
	// Load returns the stored balance and whether the account exists
	Load(ctx context.Context, accountID string) (int64, bool, error)
	// Save replaces the stored balance
	Save(ctx context.Context, accountID string, balance int64) error
	// LoadHistory returns the stored history, most recent first
	LoadHistory(ctx context.Context, accountID string) ([]domain.HistoryEntry, error)
	// SaveHistory replaces the stored history
	SaveHistory(ctx context.Context, accountID string, entries []domain.HistoryEntry) error
	// Delete removes balance and history for the account
	Delete(ctx context.Context, accountID string) error
	// Close releases the backend
	Close() error
}

// Options selects and configures a Store backend
type Options struct {
	Backend    string // mysql, sqlite or memory
	MySQLDSN   string // DSN for the relational backend
	SQLitePath string // File for the embedded document backend
}

// Open creates the Store selected by opts.Backend
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMySQL:
		gdb, err := OpenMySQL(opts.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return NewGormStore(gdb), nil
	case BackendSQLite:
		return OpenDocStore(opts.SQLitePath)
	case BackendMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

func cloneHistory(entries []domain.HistoryEntry) []domain.HistoryEntry {
	if entries == nil {
		return nil
	}
	out := make([]domain.HistoryEntry, len(entries))
	copy(out, entries)
	return out
}
