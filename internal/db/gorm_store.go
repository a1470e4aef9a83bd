package db

import (
	"context"
	"errors"
	"fmt"

	"coin_economy/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the relational backend: one accounts row per account and
// up to the history limit of history_entries rows ordered by seq.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection
func NewGormStore(gdb *gorm.DB) *GormStore {
	return &GormStore{db: gdb}
}

func (s *GormStore) Load(ctx context.Context, accountID string) (int64, bool, error) {
	var acc domain.Account
	err := s.db.WithContext(ctx).Where("id = ?", accountID).Take(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load account %s: %w", accountID, err)
	}
	return acc.Balance, true, nil
}

func (s *GormStore) Save(ctx context.Context, accountID string, balance int64) error {
	acc := domain.Account{ID: accountID, Balance: balance}
	// Upsert so lazily created accounts and updates share one statement
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(&acc).Error
	if err != nil {
		return fmt.Errorf("save account %s: %w", accountID, err)
	}
	return nil
}

func (s *GormStore) LoadHistory(ctx context.Context, accountID string) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("seq asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", accountID, err)
	}
	return entries, nil
}

// SaveHistory rewrites the account's history inside one transaction so the
// rows always reflect a single trimmed sequence.
func (s *GormStore) SaveHistory(ctx context.Context, accountID string, entries []domain.HistoryEntry) error {
	rows := make([]domain.HistoryEntry, len(entries))
	for i, e := range entries {
		e.ID = 0
		e.AccountID = accountID
		e.Seq = i
		rows[i] = e
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&domain.HistoryEntry{}).Error; err != nil {
			return err // Return error to rollback
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("save history %s: %w", accountID, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, accountID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&domain.HistoryEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", accountID).Delete(&domain.Account{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete account %s: %w", accountID, err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
