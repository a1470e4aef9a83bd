package domain

// Role values stored on User
const (
	RoleUser  = "user"  // Regular player
	RoleAdmin = "admin" // Administrator allowed to override balances
)

// User Model
type User struct {
	ID        uint   `gorm:"primaryKey"`                    // Primary key
	Username  string `gorm:"unique;not null"`               // Unique username
	Password  string `gorm:"not null"`                      // Hashed password
	Role      string `gorm:"default:user"`                  // Role: user or admin
	AccountID string `gorm:"uniqueIndex;size:64;not null"` // Ledger account owned by this user
}
