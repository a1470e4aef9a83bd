package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountKeys_SortedAndUnique(t *testing.T) {
	keys := AccountKeys("p2", "p1", "p2")
	assert.Equal(t, []string{"lock:account:p1", "lock:account:p2"}, keys)
}

func exerciseLocker(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()

	assert.ErrorIs(t, l.WithLock(ctx, nil, func(context.Context) error { return nil }), ErrNoKeys)

	boom := errors.New("boom")
	err := l.WithLock(ctx, AccountKeys("p1"), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// Concurrent increments under the lock never interleave
	var (
		wg      sync.WaitGroup
		counter int
		inside  int
		overlap bool
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(ctx, AccountKeys("p1", "p2"), func(context.Context) error {
				mu.Lock()
				inside++
				if inside > 1 {
					overlap = true
				}
				mu.Unlock()

				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.False(t, overlap)
	assert.Equal(t, 20, counter)
}

func TestLocal(t *testing.T) {
	exerciseLocker(t, NewLocal())
}

func TestLocal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewLocal().WithLock(ctx, AccountKeys("p1"), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseLocker(t, NewRedis(client, DefaultOptions()))
}

func TestRedis_ReleasesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedis(client, DefaultOptions())
	err := l.WithLock(context.Background(), AccountKeys("p1"), func(context.Context) error {
		assert.True(t, mr.Exists("lock:account:p1"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:account:p1"))
}

func TestRedis_BusyKeyFails(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	// Another process holds the account
	require.NoError(t, mr.Set("lock:account:p1", "other-process"))

	l := NewRedis(client, Options{Expiry: time.Second, Tries: 2, RetryDelay: 5 * time.Millisecond})
	ran := false
	err := l.WithLock(context.Background(), AccountKeys("p1"), func(context.Context) error {
		ran = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, ran)
}

func TestRedis_ReleasesKeysWhenContextCancelled(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedis(client, Options{Expiry: 10 * time.Second, Tries: 2, RetryDelay: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	err := l.WithLock(ctx, AccountKeys("p1"), func(context.Context) error {
		cancel() // client went away mid-operation
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:account:p1"))

	// The account is immediately usable again
	ran := false
	err = l.WithLock(context.Background(), AccountKeys("p1"), func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}
