package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Options tune distributed lock acquisition
type Options struct {
	Expiry     time.Duration // Lock TTL
	Tries      int           // Acquisition attempts
	RetryDelay time.Duration // Delay between attempts
}

// DefaultOptions suits short ledger operations
func DefaultOptions() Options {
	return Options{Expiry: 10 * time.Second, Tries: 32, RetryDelay: 50 * time.Millisecond}
}

// Redis takes one redsync mutex per key, in sorted order, and also holds the
// in-process lock so local callers never race for the same mutexes.
type Redis struct {
	rs    *redsync.Redsync
	opts  Options
	local Local
	log   *logrus.Entry
}

// NewRedis builds a distributed locker on top of a go-redis client
func NewRedis(client redis.UniversalClient, opts Options) *Redis {
	return &Redis{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
		log:  logrus.WithField("component", "lock"),
	}
}

func (r *Redis) WithLock(ctx context.Context, keys []string, fn func(context.Context) error) error {
	if len(keys) == 0 {
		return ErrNoKeys
	}
	return r.local.WithLock(ctx, keys, func(ctx context.Context) error {
		held := make([]*redsync.Mutex, 0, len(keys))
		defer func() {
			// Release even when the caller's context was cancelled inside fn
			releaseCtx := context.WithoutCancel(ctx)
			// Release in reverse order of acquisition
			for i := len(held) - 1; i >= 0; i-- {
				if ok, err := held[i].UnlockContext(releaseCtx); !ok || err != nil {
					r.log.WithFields(logrus.Fields{
						"lock_key":  held[i].Name(),
						"unlock_ok": ok,
						"error":     err,
					}).Error("failed to release lock")
				}
			}
		}()
		for _, key := range keys {
			m := r.rs.NewMutex(key,
				redsync.WithExpiry(r.opts.Expiry),
				redsync.WithTries(r.opts.Tries),
				redsync.WithRetryDelay(r.opts.RetryDelay),
			)
			if err := m.LockContext(ctx); err != nil {
				return fmt.Errorf("acquire lock %s: %w", key, err)
			}
			held = append(held, m)
		}
		return fn(ctx)
	})
}
