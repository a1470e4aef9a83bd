package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"coin_economy/internal/domain"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DocStore is the embedded document backend. Each account owns two JSON
// documents in a single key/value table: balance:<id> and history:<id>.
type DocStore struct {
	db *sql.DB
}

// OpenDocStore opens (or creates) the SQLite file and its documents table
func OpenDocStore(path string) (*DocStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps the embedded file consistent
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS documents (
		key  TEXT PRIMARY KEY,
		body TEXT NOT NULL
	)`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logrus.WithField("path", path).Info("sqlite document store opened")
	return &DocStore{db: sqlDB}, nil
}

func balanceDoc(accountID string) string { return "balance:" + accountID }
func historyDoc(accountID string) string { return "history:" + accountID }

func (s *DocStore) get(ctx context.Context, key string) (string, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE key = ?", key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return body, true, nil
}

func (s *DocStore) put(ctx context.Context, key, body string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (key, body) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET body = excluded.body",
		key, body)
	return err
}

func (s *DocStore) Load(ctx context.Context, accountID string) (int64, bool, error) {
	body, ok, err := s.get(ctx, balanceDoc(accountID))
	if err != nil {
		return 0, false, fmt.Errorf("load balance %s: %w", accountID, err)
	}
	if !ok {
		return 0, false, nil
	}
	balance, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("decode balance %s: %w", accountID, err)
	}
	return balance, true, nil
}

func (s *DocStore) Save(ctx context.Context, accountID string, balance int64) error {
	if err := s.put(ctx, balanceDoc(accountID), strconv.FormatInt(balance, 10)); err != nil {
		return fmt.Errorf("save balance %s: %w", accountID, err)
	}
	return nil
}

func (s *DocStore) LoadHistory(ctx context.Context, accountID string) ([]domain.HistoryEntry, error) {
	body, ok, err := s.get(ctx, historyDoc(accountID))
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", accountID, err)
	}
	if !ok {
		return nil, nil
	}
	var entries []domain.HistoryEntry
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", accountID, err)
	}
	return entries, nil
}

func (s *DocStore) SaveHistory(ctx context.Context, accountID string, entries []domain.HistoryEntry) error {
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history %s: %w", accountID, err)
	}
	if err := s.put(ctx, historyDoc(accountID), string(body)); err != nil {
		return fmt.Errorf("save history %s: %w", accountID, err)
	}
	return nil
}

func (s *DocStore) Delete(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE key IN (?, ?)",
		balanceDoc(accountID), historyDoc(accountID))
	if err != nil {
		return fmt.Errorf("delete account %s: %w", accountID, err)
	}
	return nil
}

func (s *DocStore) Close() error {
	logrus.Info("closing sqlite document store")
	return s.db.Close()
}
