package db

import (
	"context"
	"errors"
	"strings"
	"sync"

	"coin_economy/internal/domain"

	"gorm.io/gorm"
)

// ErrUserExists is returned when a username is already registered
var ErrUserExists = errors.New("username already exists")

// ErrUserNotFound is returned when no user matches
var ErrUserNotFound = errors.New("user not found")

// UserDirectory stores login identities and resolves display names
type UserDirectory interface {
	Create(ctx context.Context, user *domain.User) error
	ByUsername(ctx context.Context, username string) (domain.User, error)
	ByAccount(ctx context.Context, accountID string) (domain.User, error)
	// DisplayName returns the username for an account, or the id itself
	DisplayName(ctx context.Context, accountID string) string
}

// GormUsers keeps users in the relational database
type GormUsers struct {
	db *gorm.DB
}

// NewGormUsers wraps an open gorm connection
func NewGormUsers(gdb *gorm.DB) *GormUsers {
	return &GormUsers{db: gdb}
}

func (u *GormUsers) Create(ctx context.Context, user *domain.User) error {
	if err := u.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "Duplicate entry") {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (u *GormUsers) ByUsername(ctx context.Context, username string) (domain.User, error) {
	return u.first(ctx, "username = ?", strings.ToLower(username))
}

func (u *GormUsers) ByAccount(ctx context.Context, accountID string) (domain.User, error) {
	return u.first(ctx, "account_id = ?", accountID)
}

func (u *GormUsers) first(ctx context.Context, query string, arg any) (domain.User, error) {
	var user domain.User
	err := u.db.WithContext(ctx).Where(query, arg).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

func (u *GormUsers) DisplayName(ctx context.Context, accountID string) string {
	user, err := u.ByAccount(ctx, accountID)
	if err != nil {
		return accountID
	}
	return user.Username
}

// MemoryUsers keeps users in process memory
type MemoryUsers struct {
	mu     sync.RWMutex
	nextID uint
	users  map[string]domain.User // by lowercase username
}

// NewMemoryUsers returns an empty directory
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]domain.User)}
}

func (u *MemoryUsers) Create(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := strings.ToLower(user.Username)
	if _, ok := u.users[key]; ok {
		return ErrUserExists
	}
	u.nextID++
	user.ID = u.nextID
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	u.users[key] = *user
	return nil
}

func (u *MemoryUsers) ByUsername(_ context.Context, username string) (domain.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.users[strings.ToLower(username)]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

func (u *MemoryUsers) ByAccount(_ context.Context, accountID string) (domain.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, user := range u.users {
		if user.AccountID == accountID {
			return user, nil
		}
	}
	return domain.User{}, ErrUserNotFound
}

func (u *MemoryUsers) DisplayName(ctx context.Context, accountID string) string {
	user, err := u.ByAccount(ctx, accountID)
	if err != nil {
		return accountID
	}
	return user.Username
}
