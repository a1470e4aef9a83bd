package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"coin_economy/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return gdb, mock
}

func TestGormStore_LoadFound(t *testing.T) {
	gdb, mock := newMockGorm(t)
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "updated_at"}).AddRow("p1", 250, time.Now()))

	bal, found, err := NewGormStore(gdb).Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(250), bal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_LoadMissing(t *testing.T) {
	gdb, mock := newMockGorm(t)
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "updated_at"}))

	_, found, err := NewGormStore(gdb).Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_LoadError(t *testing.T) {
	gdb, mock := newMockGorm(t)
	mock.ExpectQuery("SELECT \\* FROM `accounts`").WillReturnError(errors.New("connection refused"))

	_, _, err := NewGormStore(gdb).Load(context.Background(), "p1")
	assert.ErrorContains(t, err, "connection refused")
}

func TestGormStore_SaveUpserts(t *testing.T) {
	gdb, mock := newMockGorm(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `accounts` .* ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewGormStore(gdb).Save(context.Background(), "p1", 300))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SaveHistoryRewritesRows(t *testing.T) {
	gdb, mock := newMockGorm(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `history_entries` WHERE account_id = \\?").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO `history_entries`").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	entries := []domain.HistoryEntry{
		{Kind: domain.KindPaySent, Amount: 10, Timestamp: time.Now()},
		{Kind: domain.KindDeposit, Amount: 20, Timestamp: time.Now()},
	}
	require.NoError(t, NewGormStore(gdb).SaveHistory(context.Background(), "p1", entries))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, uint(0), entries[0].ID, "caller's slice must not be mutated")
}

func TestGormStore_SaveHistoryRollsBack(t *testing.T) {
	gdb, mock := newMockGorm(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `history_entries`").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	err := NewGormStore(gdb).SaveHistory(context.Background(), "p1", []domain.HistoryEntry{
		{Kind: domain.KindDeposit, Amount: 1, Timestamp: time.Now()},
	})
	assert.ErrorContains(t, err, "lock wait timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}
