package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"coin_economy/internal/domain"

	"gorm.io/gorm"
)

// ErrLocationTaken is returned when a sign location already has a shop
var ErrLocationTaken = errors.New("location already has a shop")

// ShopRegistry stores shop definitions keyed by id and sign location
type ShopRegistry interface {
	Create(ctx context.Context, shop *domain.Shop) error
	Get(ctx context.Context, id uint) (domain.Shop, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Shop, error)
	Delete(ctx context.Context, id uint) error
}

// GormShops keeps shops in the relational database
type GormShops struct {
	db *gorm.DB
}

// NewGormShops wraps an open gorm connection
func NewGormShops(gdb *gorm.DB) *GormShops {
	return &GormShops{db: gdb}
}

func (r *GormShops) Create(ctx context.Context, shop *domain.Shop) error {
	if err := r.db.WithContext(ctx).Create(shop).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = ErrLocationTaken
		}
		return fmt.Errorf("create shop at %s: %w", shop.Location, err)
	}
	return nil
}

func (r *GormShops) Get(ctx context.Context, id uint) (domain.Shop, error) {
	var shop domain.Shop
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&shop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Shop{}, domain.ErrShopNotFound
	}
	if err != nil {
		return domain.Shop{}, fmt.Errorf("get shop %d: %w", id, err)
	}
	return shop, nil
}

func (r *GormShops) ListByOwner(ctx context.Context, ownerID string) ([]domain.Shop, error) {
	var shops []domain.Shop
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id asc").Find(&shops).Error; err != nil {
		return nil, fmt.Errorf("list shops of %s: %w", ownerID, err)
	}
	return shops, nil
}

func (r *GormShops) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.Shop{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete shop %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrShopNotFound
	}
	return nil
}

// MemoryShops keeps shops in process memory
type MemoryShops struct {
	mu     sync.RWMutex
	nextID uint
	shops  map[uint]domain.Shop
}

// NewMemoryShops returns an empty registry
func NewMemoryShops() *MemoryShops {
	return &MemoryShops{shops: make(map[uint]domain.Shop)}
}

func (r *MemoryShops) Create(_ context.Context, shop *domain.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shops {
		if s.Location == shop.Location {
			return fmt.Errorf("create shop at %s: %w", shop.Location, ErrLocationTaken)
		}
	}
	r.nextID++
	shop.ID = r.nextID
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now()
	}
	r.shops[shop.ID] = *shop
	return nil
}

func (r *MemoryShops) Get(_ context.Context, id uint) (domain.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shops[id]
	if !ok {
		return domain.Shop{}, domain.ErrShopNotFound
	}
	return s, nil
}

func (r *MemoryShops) ListByOwner(_ context.Context, ownerID string) ([]domain.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Shop
	for _, s := range r.shops {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryShops) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shops[id]; !ok {
		return domain.ErrShopNotFound
	}
	delete(r.shops, id)
	return nil
}
