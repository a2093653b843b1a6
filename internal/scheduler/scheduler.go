// Package scheduler advances the simulated market on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/lutinex/internal/market"
)

// Advancer moves the market forward one day, or pays a round of dividends
// without moving prices.
type Advancer interface {
	AdvanceDay(ctx context.Context) (market.DayReport, error)
	PayDividends(ctx context.Context) (market.DividendReport, error)
}

// Scheduler runs AdvanceDay on a cron schedule. Store conflicts are retried a
// bounded number of times; runs never overlap.
type Scheduler struct {
	cron      *cron.Cron
	market    Advancer
	retries   int
	backoff   time.Duration
	timeout   time.Duration
	onAdvance func(ctx context.Context, report market.DayReport)
	log       logrus.FieldLogger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRetries sets how many times a conflicting advance is retried and the
// pause before the first retry. The pause doubles on each attempt.
func WithRetries(n int, backoff time.Duration) Option {
	return func(s *Scheduler) {
		s.retries = n
		s.backoff = backoff
	}
}

// WithTimeout bounds a single scheduled run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// OnAdvance registers a callback run after each successful advance.
func OnAdvance(fn func(ctx context.Context, report market.DayReport)) Option {
	return func(s *Scheduler) { s.onAdvance = fn }
}

// New creates a stopped scheduler.
func New(m Advancer, log logrus.FieldLogger, opts ...Option) *Scheduler {
	s := &Scheduler{
		market:  m,
		retries: 3,
		backoff: 200 * time.Millisecond,
		timeout: time.Minute,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(log)),
	))
	return s
}

// Schedule registers the day advance under a standard cron expression or a
// descriptor such as "@midnight".
func (s *Scheduler) Schedule(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.WithError(err).Error("scheduled day advance failed")
		}
	})
	return err
}

// Start runs the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule. The returned context is done once a running
// advance has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce advances one day, retrying on store conflicts.
func (s *Scheduler) RunOnce(ctx context.Context) (market.DayReport, error) {
	var report market.DayReport
	err := s.retry(ctx, "day advance", func() error {
		var err error
		report, err = s.market.AdvanceDay(ctx)
		return err
	})
	if err != nil {
		return market.DayReport{}, err
	}
	if s.onAdvance != nil {
		s.onAdvance(ctx, report)
	}
	return report, nil
}

// PayOnce pays one round of dividends at the latest prices, retrying on
// store conflicts.
func (s *Scheduler) PayOnce(ctx context.Context) (market.DividendReport, error) {
	var report market.DividendReport
	err := s.retry(ctx, "dividend payout", func() error {
		var err error
		report, err = s.market.PayDividends(ctx)
		return err
	})
	if err != nil {
		return market.DividendReport{}, err
	}
	return report, nil
}

func (s *Scheduler) retry(ctx context.Context, op string, fn func() error) error {
	backoff := s.backoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, market.ErrConflict) || attempt >= s.retries {
			return err
		}

		s.log.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"backoff": backoff.String(),
		}).Warn("transaction conflicted, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
