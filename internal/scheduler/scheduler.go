// Package scheduler sweeps the store on a fixed interval, promoting due
// scheduled notifications and retrying failed ones that still have retry
// budget.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/carewellhq/notify-engine/internal/model"
)

type dispatcher interface {
	Dispatch(ctx context.Context, strategy retry.Strategy, n model.Notification) model.Notification
	Retry(ctx context.Context, strategy retry.Strategy, n model.Notification) model.Notification
}

type claimStore interface {
	ClaimDueScheduled(ctx context.Context, now time.Time) ([]model.Notification, error)
	ClaimRetryable(ctx context.Context, maxRetries int) ([]model.Notification, error)
}

// Scheduler drives periodic dispatch of due and retryable notifications.
type Scheduler struct {
	store      claimStore
	engine     dispatcher
	strategy   retry.Strategy
	interval   time.Duration
	maxRetries int

	mu sync.Mutex // serializes ticks
}

// New creates a scheduler. maxRetries caps the total number of failed
// attempts per notification; interval is the sweep period.
func New(store claimStore, engine dispatcher, strategy retry.Strategy, interval time.Duration, maxRetries int) *Scheduler {
	return &Scheduler{
		store:      store,
		engine:     engine,
		strategy:   strategy,
		interval:   interval,
		maxRetries: maxRetries,
	}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	zlog.Logger.Info().Dur("interval", s.interval).Int("max_retries", s.maxRetries).Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick performs one sweep. A tick that would overlap a still-running one is
// skipped; the claim queries additionally guarantee each notification is
// handed to exactly one tick.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	if !s.mu.TryLock() {
		zlog.Logger.Warn().Msg("previous tick still running, skipping")
		return
	}
	defer s.mu.Unlock()

	due, err := s.store.ClaimDueScheduled(ctx, now)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to claim due notifications")
	}

	for _, n := range due {
		s.engine.Dispatch(ctx, s.strategy, n)
	}

	retryable, err := s.store.ClaimRetryable(ctx, s.maxRetries)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to claim retryable notifications")
	}

	for _, n := range retryable {
		s.engine.Retry(ctx, s.strategy, n)
	}

	if len(due) > 0 || len(retryable) > 0 {
		zlog.Logger.Info().Int("due", len(due)).Int("retried", len(retryable)).Msg("tick processed")
	}
}
