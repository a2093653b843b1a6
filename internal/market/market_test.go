package market_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xtrntr/lutinex/internal/logging"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/memstore"
	"github.com/xtrntr/lutinex/internal/models"
)

// seqRand returns its values in order and then repeats the last one.
type seqRand struct {
	values []int64
	i      int
}

func (r *seqRand) Int64N(n int64) int64 {
	v := r.values[len(r.values)-1]
	if r.i < len(r.values) {
		v = r.values[r.i]
		r.i++
	}
	return v
}

// flat keeps prices unchanged with the default walk.
func flat() *seqRand { return &seqRand{values: []int64{market.DefaultWalk.Step}} }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	ctx    context.Context
	store  *memstore.Store
	market *market.Market
}

func newFixture(t *testing.T, opts ...market.Option) *fixture {
	t.Helper()
	store := memstore.New()
	opts = append([]market.Option{market.WithRand(flat()), market.WithLogger(logging.Discard())}, opts...)
	return &fixture{ctx: context.Background(), store: store, market: market.New(store, opts...)}
}

func (f *fixture) company(t *testing.T, code string, ipo string, rate string) models.Company {
	t.Helper()
	price := decimal.Zero
	if ipo != "" {
		price = dec(ipo)
	}
	c, err := f.store.CreateCompany(f.ctx, models.Company{
		Name:          code + " Corp",
		Code:          code,
		TotalShares:   1000,
		FloatShares:   600,
		InsiderShares: 100,
		GovShares:     100,
		DividendRate:  dec(rate),
	}, price)
	require.NoError(t, err)
	return c
}

func (f *fixture) user(t *testing.T, username, balance string) models.User {
	t.Helper()
	u, err := f.store.CreateUser(f.ctx, models.User{
		Name:     username,
		Username: username,
		Color:    "#123456",
		Balance:  dec(balance),
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	u, err := f.store.GetUser(f.ctx, id)
	require.NoError(t, err)
	return u.Balance
}

func (f *fixture) holdings(t *testing.T, id uuid.UUID) []market.Holding {
	t.Helper()
	h, err := f.market.UserHoldings(f.ctx, id)
	require.NoError(t, err)
	return h
}

var errCreditFailed = errors.New("credit failed")

// creditFailStore fails the failOn-th CreditBalance call of every Update.
type creditFailStore struct {
	market.Store
	failOn int
}

func (s *creditFailStore) Update(ctx context.Context, fn func(tx market.Tx) error) error {
	return s.Store.Update(ctx, func(tx market.Tx) error {
		return fn(&creditFailTx{Tx: tx, failOn: s.failOn})
	})
}

type creditFailTx struct {
	market.Tx
	failOn  int
	credits int
}

func (tx *creditFailTx) CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	tx.credits++
	if tx.credits == tx.failOn {
		return decimal.Zero, errCreditFailed
	}
	return tx.Tx.CreditBalance(ctx, userID, amount)
}
