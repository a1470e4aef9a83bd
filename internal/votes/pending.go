package votes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9" // Redis client
)

// Reward is one vote reward waiting to be claimed
type Reward struct {
	Service string    `json:"service"`
	Amount  int64     `json:"amount"`
	CastAt  time.Time `json:"cast_at"`
}

// PendingStore keeps rewards for players who could not be credited yet
type PendingStore interface {
	Push(ctx context.Context, accountID string, r ...Reward) error
	// List returns the queued rewards, oldest first
	List(ctx context.Context, accountID string) ([]Reward, error)
	// Drain removes and returns every queued reward
	Drain(ctx context.Context, accountID string) ([]Reward, error)
}

// PendingKey is the Redis list holding an account's pending rewards
func PendingKey(accountID string) string { return "votes:pending:" + strings.ToLower(accountID) }

// RedisPending stores rewards as JSON entries in one Redis list per account
type RedisPending struct {
	rdb redis.UniversalClient
}

func NewRedisPending(rdb redis.UniversalClient) *RedisPending {
	return &RedisPending{rdb: rdb}
}

func (p *RedisPending) Push(ctx context.Context, accountID string, rewards ...Reward) error {
	if len(rewards) == 0 {
		return nil
	}
	values := make([]any, 0, len(rewards))
	for _, r := range rewards {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		values = append(values, b)
	}
	if err := p.rdb.RPush(ctx, PendingKey(accountID), values...).Err(); err != nil {
		return fmt.Errorf("queue reward for %s: %w", accountID, err)
	}
	return nil
}

func (p *RedisPending) List(ctx context.Context, accountID string) ([]Reward, error) {
	raw, err := p.rdb.LRange(ctx, PendingKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list rewards for %s: %w", accountID, err)
	}
	return decodeRewards(raw)
}

func (p *RedisPending) Drain(ctx context.Context, accountID string) ([]Reward, error) {
	key := PendingKey(accountID)
	var items *redis.StringSliceCmd
	// Read and delete in one MULTI so a concurrent push is never lost
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain rewards for %s: %w", accountID, err)
	}
	return decodeRewards(items.Val())
}

func decodeRewards(raw []string) ([]Reward, error) {
	out := make([]Reward, 0, len(raw))
	for _, s := range raw {
		var r Reward
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return nil, fmt.Errorf("decode reward: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// MemoryPending keeps pending rewards in process memory
type MemoryPending struct {
	mu      sync.Mutex
	rewards map[string][]Reward
}

func NewMemoryPending() *MemoryPending {
	return &MemoryPending{rewards: make(map[string][]Reward)}
}

func (p *MemoryPending) Push(_ context.Context, accountID string, rewards ...Reward) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(accountID)
	p.rewards[key] = append(p.rewards[key], rewards...)
	return nil
}

func (p *MemoryPending) List(_ context.Context, accountID string) ([]Reward, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	queued := p.rewards[strings.ToLower(accountID)]
	out := make([]Reward, len(queued))
	copy(out, queued)
	return out, nil
}

func (p *MemoryPending) Drain(_ context.Context, accountID string) ([]Reward, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(accountID)
	out := p.rewards[key]
	delete(p.rewards, key)
	return out, nil
}
