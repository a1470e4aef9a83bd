package inventory

import (
	"sync"

	"github.com/redis/go-redis/v9" // Redis client
)

// Provider resolves the containers of accounts and shops
type Provider interface {
	Purse(accountID string) Inventory
	Stock(shopID uint) Inventory
}

// RedisProvider hands out Redis-hash containers
type RedisProvider struct {
	rdb           redis.UniversalClient
	stockCapacity int64
}

// NewRedisProvider returns a provider whose shop stock holds at most stockCapacity units
func NewRedisProvider(rdb redis.UniversalClient, stockCapacity int64) *RedisProvider {
	return &RedisProvider{rdb: rdb, stockCapacity: stockCapacity}
}

func (p *RedisProvider) Purse(accountID string) Inventory {
	return NewRedis(p.rdb, PurseKey(accountID), 0)
}

func (p *RedisProvider) Stock(shopID uint) Inventory {
	return NewRedis(p.rdb, StockKey(shopID), p.stockCapacity)
}

// MemoryProvider keeps every container in process memory
type MemoryProvider struct {
	mu            sync.Mutex
	stockCapacity int64
	purses        map[string]*Memory
	stocks        map[uint]*Memory
}

func NewMemoryProvider(stockCapacity int64) *MemoryProvider {
	return &MemoryProvider{
		stockCapacity: stockCapacity,
		purses:        make(map[string]*Memory),
		stocks:        make(map[uint]*Memory),
	}
}

func (p *MemoryProvider) Purse(accountID string) Inventory {
	return p.PurseMemory(accountID)
}

func (p *MemoryProvider) Stock(shopID uint) Inventory {
	return p.StockMemory(shopID)
}

// PurseMemory returns the concrete purse so callers can seed or inspect it
func (p *MemoryProvider) PurseMemory(accountID string) *Memory {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.purses[accountID]
	if !ok {
		m = NewMemory()
		p.purses[accountID] = m
	}
	return m
}

// StockMemory returns the concrete shop stock
func (p *MemoryProvider) StockMemory(shopID uint) *Memory {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.stocks[shopID]
	if !ok {
		m = NewBoundedMemory(p.stockCapacity)
		p.stocks[shopID] = m
	}
	return m
}
