package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// MaxHistoryPerAccount is the number of entries kept per account
const MaxHistoryPerAccount = 50

// HistoryKind tags what produced a history entry
type HistoryKind uint8

const (
	KindUnknown HistoryKind = iota
	KindPaySent
	KindPayReceived
	KindShopBuy
	KindShopSell
	KindAdminSet
	KindAdminAdd
	KindAdminSubtract
	KindWithdraw
	KindDeposit
	KindVoteReward
)

var kindNames = [...]string{
	KindUnknown:       "unknown",
	KindPaySent:       "pay_sent",
	KindPayReceived:   "pay_received",
	KindShopBuy:       "shop_buy",
	KindShopSell:      "shop_sell",
	KindAdminSet:      "admin_set",
	KindAdminAdd:      "admin_add",
	KindAdminSubtract: "admin_subtract",
	KindWithdraw:      "withdraw",
	KindDeposit:       "deposit",
	KindVoteReward:    "vote_reward",
}

func (k HistoryKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Valid reports whether k is one of the known kinds
func (k HistoryKind) Valid() bool {
	return k > KindUnknown && int(k) < len(kindNames)
}

// ParseHistoryKind converts the snake_case name back into a kind
func ParseHistoryKind(s string) (HistoryKind, error) {
	for i, name := range kindNames {
		if HistoryKind(i) != KindUnknown && name == s {
			return HistoryKind(i), nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// MarshalText encodes the kind as its name (used by encoding/json)
func (k HistoryKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *HistoryKind) UnmarshalText(b []byte) error {
	parsed, err := ParseHistoryKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Value stores the kind as its name
func (k HistoryKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, k)
	}
	return k.String(), nil
}

// Scan reads a kind name from the database
func (k *HistoryKind) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return k.UnmarshalText([]byte(v))
	case []byte:
		return k.UnmarshalText(v)
	default:
		return fmt.Errorf("%w: unsupported column type %T", ErrInvalidKind, src)
	}
}

// HistoryEntry Model. Immutable once recorded.
type HistoryEntry struct {
	ID uint `gorm:"primaryKey" json:"-"`
	// Owning account and position in its sequence, 0 = most recent
	AccountID    string      `gorm:"size:64;not null;index:idx_history_account_seq,priority:1" json:"-"`
	Seq          int         `gorm:"not null;index:idx_history_account_seq,priority:2" json:"-"`
	Kind         HistoryKind `gorm:"type:varchar(32);not null" json:"kind"`
	Amount       int64       `gorm:"not null" json:"amount"`
	Counterparty string      `gorm:"size:64" json:"counterparty,omitempty"`
	Note         string      `gorm:"size:255" json:"note,omitempty"`
	Timestamp    time.Time   `gorm:"not null" json:"timestamp"`
}

// TableName keeps the relational table name stable
func (HistoryEntry) TableName() string { return "history_entries" }
