package votes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coin_economy/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credit struct {
	account string
	amount  int64
	kind    domain.HistoryKind
	service string
}

// fakeLedger records credits and fails while down is set
type fakeLedger struct {
	mu      sync.Mutex
	credits []credit
	down    bool
}

func (f *fakeLedger) Credit(_ context.Context, account string, amount int64, kind domain.HistoryKind, counterparty, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return domain.ErrPersistenceUnavailable
	}
	f.credits = append(f.credits, credit{account, amount, kind, counterparty})
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newRedisPending(t *testing.T) *RedisPending {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPending(client)
}

func exercisePending(t *testing.T, p PendingStore) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	list, err := p.List(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, p.Push(ctx, "p1", Reward{Service: "a", Amount: 100, CastAt: at}))
	require.NoError(t, p.Push(ctx, "P1", Reward{Service: "b", Amount: 50, CastAt: at.Add(time.Minute)}))

	list, err = p.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Service)
	assert.True(t, list[1].CastAt.Equal(at.Add(time.Minute)))

	drained, err := p.Drain(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, drained, 2)

	list, err = p.List(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryPending(t *testing.T) {
	exercisePending(t, NewMemoryPending())
}

func TestRedisPending(t *testing.T) {
	exercisePending(t, newRedisPending(t))
}

func TestRecord_OnlineCreditsAtOnce(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{}
	s := New(ledger, NewMemoryPending(), WithReward(250))

	out, err := s.Record(ctx, "p1", "minecraft-server-list", true)
	require.NoError(t, err)
	assert.Equal(t, Credited, out)
	require.Len(t, ledger.credits, 1)
	assert.Equal(t, credit{"p1", 250, domain.KindVoteReward, "minecraft-server-list"}, ledger.credits[0])
}

func TestRecord_DedupWindow(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	ledger := &fakeLedger{}
	s := New(ledger, NewMemoryPending(), WithClock(c.now), WithWindow(time.Hour))

	_, err := s.Record(ctx, "p1", "siteA", true)
	require.NoError(t, err)

	c.t = c.t.Add(30 * time.Minute)
	_, err = s.Record(ctx, "P1", "SITEA", true)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	// Another service is a separate vote
	_, err = s.Record(ctx, "p1", "siteB", true)
	require.NoError(t, err)

	c.t = c.t.Add(31 * time.Minute)
	_, err = s.Record(ctx, "p1", "siteA", true)
	require.NoError(t, err)

	assert.Len(t, ledger.credits, 3)
}

func TestRecord_OfflineQueuesAndClaimPays(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{}
	s := New(ledger, newRedisPending(t))

	out, err := s.Record(ctx, "p1", "siteA", false)
	require.NoError(t, err)
	assert.Equal(t, Queued, out)
	_, err = s.Record(ctx, "p1", "siteB", false)
	require.NoError(t, err)
	assert.Empty(t, ledger.credits)

	pending, err := s.Pending(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	paid, err := s.Claim(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2*DefaultReward), paid)
	assert.Len(t, ledger.credits, 2)

	pending, err = s.Pending(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	paid, err = s.Claim(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, paid)
}

func TestRecord_FailedCreditIsQueued(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{down: true}
	s := New(ledger, NewMemoryPending())

	out, err := s.Record(ctx, "p1", "siteA", true)
	require.NoError(t, err)
	assert.Equal(t, Queued, out)

	pending, err := s.Pending(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestClaim_RequeuesOnFailure(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{}
	s := New(ledger, NewMemoryPending())
	_, err := s.Record(ctx, "p1", "siteA", false)
	require.NoError(t, err)

	ledger.down = true
	_, err = s.Claim(ctx, "p1")
	require.True(t, errors.Is(err, domain.ErrPersistenceUnavailable))

	pending, err := s.Pending(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, pending, 1, "reward survives a failed claim")
}

func TestRecord_RejectsBlank(t *testing.T) {
	s := New(&fakeLedger{}, NewMemoryPending())
	_, err := s.Record(context.Background(), "", "siteA", true)
	assert.Error(t, err)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	s := New(&fakeLedger{}, NewMemoryPending(), WithClock(c.now))

	_, _ = s.Record(ctx, "p1", "siteA", true)
	c.t = c.t.Add(10 * time.Minute)
	_, _ = s.Record(ctx, "p2", "siteA", true)

	c.t = c.t.Add(55 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Sweep())
}

func TestStartStop(t *testing.T) {
	s := New(&fakeLedger{}, NewMemoryPending())
	require.NoError(t, s.Start())
	s.Stop()
}
