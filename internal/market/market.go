package market

import (
	"errors"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/lutinex/internal/metrics"
)

// Rand is the source of randomness used by the price walk.
type Rand interface {
	Int64N(n int64) int64
}

type globalRand struct{}

func (globalRand) Int64N(n int64) int64 { return rand.Int63n(n) }

// Walk bounds the daily random step. Each day a price moves by n * 10^-Scale,
// with n drawn uniformly from [-Step, Step].
type Walk struct {
	Step  int64
	Scale int32
}

// DefaultWalk moves prices by at most 0.285% a day.
var DefaultWalk = Walk{Step: 285, Scale: 5}

func (w Walk) delta(r Rand) decimal.Decimal {
	n := r.Int64N(2*w.Step+1) - w.Step
	return decimal.New(n, -w.Scale)
}

// DefaultStartDate is the calendar date of day 0.
var DefaultStartDate = time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)

// Market runs the game: the daily price walk, dividends, trading and the
// read-only views built on top of them. All state lives in the Store.
type Market struct {
	store     Store
	rng       Rand
	walk      Walk
	startDate time.Time
	log       logrus.FieldLogger
}

// Option configures a Market.
type Option func(*Market)

// WithRand sets the random source for the price walk.
func WithRand(r Rand) Option {
	return func(m *Market) { m.rng = r }
}

// WithWalk sets the bounds of the daily price step.
func WithWalk(w Walk) Option {
	return func(m *Market) { m.walk = w }
}

// WithStartDate sets the calendar date of day 0.
func WithStartDate(t time.Time) Option {
	return func(m *Market) { m.startDate = t }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Market) { m.log = l }
}

// New creates a market over the given store
func New(store Store, opts ...Option) *Market {
	m := &Market{
		store:     store,
		rng:       globalRand{},
		walk:      DefaultWalk,
		startDate: DefaultStartDate,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var hundred = decimal.NewFromInt(100)

// outcome labels an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func observeTrade(side string, quantity int64, err error) {
	metrics.ObserveTrade(side, outcome(err), quantity)
}
