package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9" // Redis client
)

// Takes ARGV[2] units of ARGV[1] only when that many are held.
var removeScript = redis.NewScript(`
local held = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local n = tonumber(ARGV[2])
if held < n then
  return -1
end
local left = redis.call('HINCRBY', KEYS[1], ARGV[1], -n)
if left == 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
end
return left
`)

// Adds ARGV[2] units of ARGV[1] unless the hash total would exceed ARGV[3] (0 = unbounded).
var depositScript = redis.NewScript(`
local cap = tonumber(ARGV[3])
local n = tonumber(ARGV[2])
if cap > 0 then
  local total = 0
  for _, v in ipairs(redis.call('HVALS', KEYS[1])) do
    total = total + tonumber(v)
  end
  if total + n > cap then
    return -1
  end
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], n)
`)

// Redis is a container stored as one Redis hash of tag -> units
type Redis struct {
	rdb      redis.UniversalClient
	key      string
	capacity int64
}

// PurseKey is the hash holding a player's coins and goods
func PurseKey(accountID string) string { return "purse:" + accountID }

// StockKey is the hash holding a shop's goods
func StockKey(shopID uint) string { return fmt.Sprintf("stock:%d", shopID) }

// NewRedis returns the container stored at key; capacity 0 means unbounded
func NewRedis(rdb redis.UniversalClient, key string, capacity int64) *Redis {
	return &Redis{rdb: rdb, key: key, capacity: capacity}
}

func (r *Redis) CountUnitsOf(ctx context.Context, tag string) (int64, error) {
	n, err := r.rdb.HGet(ctx, r.key, tag).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil // Tag not held
	}
	if err != nil {
		return 0, fmt.Errorf("count %s in %s: %w", tag, r.key, err)
	}
	return n, nil
}

func (r *Redis) RemoveUnits(ctx context.Context, tag string, count int64) error {
	if count < 0 {
		return fmt.Errorf("remove %d of %s: negative count", count, tag)
	}
	if count == 0 {
		return nil
	}
	left, err := removeScript.Run(ctx, r.rdb, []string{r.key}, tag, count).Int64()
	if err != nil {
		return fmt.Errorf("remove %d of %s from %s: %w", count, tag, r.key, err)
	}
	if left < 0 {
		return fmt.Errorf("remove %d of %s from %s: %w", count, tag, r.key, ErrNotEnoughUnits)
	}
	return nil
}

func (r *Redis) DepositUnits(ctx context.Context, tag string, count int64) error {
	if count < 0 {
		return fmt.Errorf("deposit %d of %s: negative count", count, tag)
	}
	if count == 0 {
		return nil
	}
	res, err := depositScript.Run(ctx, r.rdb, []string{r.key}, tag, count, r.capacity).Int64()
	if err != nil {
		return fmt.Errorf("deposit %d of %s into %s: %w", count, tag, r.key, err)
	}
	if res < 0 {
		return fmt.Errorf("deposit %d of %s into %s: %w", count, tag, r.key, ErrNoSpace)
	}
	return nil
}

// FreeSpaceFor implements Bounded; unbounded containers report -1
func (r *Redis) FreeSpaceFor(ctx context.Context, _ string) (int64, error) {
	if r.capacity <= 0 {
		return -1, nil
	}
	vals, err := r.rdb.HVals(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("free space in %s: %w", r.key, err)
	}
	var total int64
	for _, v := range vals {
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			total += n
		}
	}
	return r.capacity - total, nil
}

// Contents returns every tag and count held
func (r *Redis) Contents(ctx context.Context) (map[string]int64, error) {
	raw, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("contents of %s: %w", r.key, err)
	}
	out := make(map[string]int64, len(raw))
	for tag, v := range raw {
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil && n > 0 {
			out[tag] = n
		}
	}
	return out, nil
}
