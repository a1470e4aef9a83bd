// Package votes credits coin rewards for server-list votes.
//
// A vote for the same account and service is accepted once per dedup window.
// Rewards that cannot be credited right away, because the player is offline or
// the ledger refused, are queued and paid out by Claim.
package votes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"coin_economy/internal/domain"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrDuplicateVote is returned for a repeat vote inside the dedup window
var ErrDuplicateVote = errors.New("duplicate vote")

const (
	DefaultReward = 100
	DefaultWindow = time.Hour
	sweepSchedule = "@every 1m"
)

// Crediter pays rewards into the ledger
type Crediter interface {
	Credit(ctx context.Context, account string, amount int64, kind domain.HistoryKind, counterparty, note string) error
}

// Outcome reports what happened to an accepted vote
type Outcome string

const (
	Credited Outcome = "credited"
	Queued   Outcome = "queued"
)

// Service accepts votes and pays their rewards
type Service struct {
	credit  Crediter
	pending PendingStore
	reward  int64
	window  time.Duration
	now     func() time.Time
	log     *logrus.Entry

	mu   sync.Mutex
	seen map[string]time.Time // account:service -> accepted at

	cron *cron.Cron
}

// Option configures a Service
type Option func(*Service)

func WithReward(amount int64) Option {
	return func(s *Service) {
		if amount > 0 {
			s.reward = amount
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a vote service; call Start to run the dedup sweep
func New(credit Crediter, pending PendingStore, opts ...Option) *Service {
	s := &Service{
		credit:  credit,
		pending: pending,
		reward:  DefaultReward,
		window:  DefaultWindow,
		now:     time.Now,
		log:     logrus.WithField("component", "votes"),
		seen:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record accepts a vote. Online players are credited at once; offline players
// and failed credits get a pending reward instead.
func (s *Service) Record(ctx context.Context, accountID, service string, online bool) (Outcome, error) {
	if accountID == "" || service == "" {
		return "", fmt.Errorf("vote needs an account and a service")
	}
	if !s.accept(accountID, service) {
		s.log.WithFields(logrus.Fields{"account_id": accountID, "service": service}).Info("Duplicate vote ignored")
		return "", ErrDuplicateVote
	}

	reward := Reward{Service: service, Amount: s.reward, CastAt: s.now().UTC()}
	fields := logrus.Fields{"account_id": accountID, "service": service, "amount": reward.Amount}

	if online {
		err := s.credit.Credit(ctx, accountID, reward.Amount, domain.KindVoteReward, service, "vote on "+service)
		if err == nil {
			s.log.WithFields(fields).Info("Vote reward credited")
			return Credited, nil
		}
		s.log.WithFields(fields).WithError(err).Warn("Vote credit failed, saving pending reward")
	}

	if err := s.pending.Push(ctx, accountID, reward); err != nil {
		s.forget(accountID, service)
		return "", err
	}
	s.log.WithFields(fields).Info("Pending vote reward saved")
	return Queued, nil
}

// Pending lists an account's unclaimed rewards
func (s *Service) Pending(ctx context.Context, accountID string) ([]Reward, error) {
	return s.pending.List(ctx, accountID)
}

// Claim credits every pending reward and returns the total paid. Rewards that
// fail to credit are queued again.
func (s *Service) Claim(ctx context.Context, accountID string) (int64, error) {
	rewards, err := s.pending.Drain(ctx, accountID)
	if err != nil {
		return 0, err
	}
	var paid int64
	for i, r := range rewards {
		if err := s.credit.Credit(ctx, accountID, r.Amount, domain.KindVoteReward, r.Service, "vote on "+r.Service); err != nil {
			if perr := s.pending.Push(context.WithoutCancel(ctx), accountID, rewards[i:]...); perr != nil {
				s.log.WithFields(logrus.Fields{"account_id": accountID, "lost": len(rewards) - i}).WithError(perr).Error("Could not requeue vote rewards")
			}
			return paid, err
		}
		paid += r.Amount
	}
	if len(rewards) > 0 {
		s.log.WithFields(logrus.Fields{"account_id": accountID, "rewards": len(rewards), "amount": paid}).Info("Pending vote rewards claimed")
	}
	return paid, nil
}

// Sweep drops dedup entries older than the window and returns how many went
func (s *Service) Sweep() int {
	cutoff := s.now().Add(-s.window)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, at := range s.seen {
		if !at.After(cutoff) {
			delete(s.seen, k)
			n++
		}
	}
	return n
}

// Start schedules the dedup sweep
func (s *Service) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(sweepSchedule, func() {
		if n := s.Sweep(); n > 0 {
			s.log.WithField("expired", n).Debug("Vote dedup entries swept")
		}
	}); err != nil {
		return fmt.Errorf("register vote sweep: %w", err)
	}
	s.cron.Start()
	s.log.Info("Vote sweep started")
	return nil
}

// Stop waits for a running sweep to finish
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("Vote sweep stopped")
}

// accept marks the vote seen unless it already is within the window
func (s *Service) accept(accountID, service string) bool {
	key := dedupKey(accountID, service)
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.seen[key]; ok && now.Sub(at) < s.window {
		return false
	}
	s.seen[key] = now
	return true
}

func (s *Service) forget(accountID, service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, dedupKey(accountID, service))
}

func dedupKey(accountID, service string) string {
	return strings.ToLower(accountID) + ":" + strings.ToLower(service)
}
