package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // Error matching
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// BalanceTTL is how long a cached balance is served
const BalanceTTL = 60 * time.Second

// BalanceCacheKey is the cache key of an account balance
func BalanceCacheKey(accountID string) string { return "wallet:balance:" + accountID }

// HistoryCacheKey is the cache key of an account history
func HistoryCacheKey(accountID string) string { return "wallet:history:" + accountID }

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb redis.UniversalClient, key string, dest any) (bool, error) {
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb redis.UniversalClient, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func DeleteCache(ctx context.Context, rdb redis.UniversalClient, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// InvalidateAccounts drops cached balances and histories of the given accounts
func InvalidateAccounts(ctx context.Context, rdb redis.UniversalClient, accountIDs ...string) error {
	keys := make([]string, 0, 2*len(accountIDs))
	for _, id := range accountIDs {
		keys = append(keys, BalanceCacheKey(id), HistoryCacheKey(id))
	}
	return DeleteCache(ctx, rdb, keys...)
}
