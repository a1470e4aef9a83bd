package domain

import "time"

// Account Model
type Account struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`       // Opaque stable id (player UUID)
	Balance   int64     `gorm:"not null;default:0" json:"balance"` // Non-negative balance
	UpdatedAt time.Time `json:"updated_at"`                        // Last write
}
