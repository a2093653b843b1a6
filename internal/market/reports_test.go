package market_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/models"
)

func TestCompanies(t *testing.T) {
	f := newFixture(t, market.WithRand(&seqRand{values: []int64{385}}))
	f.company(t, "ZED", "10", "0")
	acm := f.company(t, "ACM", "100", "3")
	f.company(t, "NEW", "", "0")

	_, err := f.market.AdvanceDay(f.ctx)
	require.NoError(t, err)

	first, err := f.market.Companies(f.ctx)
	require.NoError(t, err)
	second, err := f.market.Companies(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Len(t, first, 3)
	assert.Equal(t, []string{"ACM", "NEW", "ZED"}, []string{first[0].Code, first[1].Code, first[2].Code})

	q := first[0]
	assert.Equal(t, acm.ID, q.ID)
	assert.True(t, q.Price.Equal(dec("100.1")))
	assert.True(t, q.Previous.Equal(dec("100")))
	assert.True(t, q.Change.Equal(dec("0.1")))
	assert.True(t, q.PercentChange.Equal(dec("0.1")), "got %s", q.PercentChange)
	assert.True(t, q.DividendRate.Equal(dec("3")))
	assert.Equal(t, int64(1000), q.TotalShares)

	unlisted := first[1]
	assert.True(t, unlisted.Price.IsZero())
	assert.True(t, unlisted.PercentChange.IsZero())
}

func TestCompany(t *testing.T) {
	start := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, market.WithStartDate(start))
	c := f.company(t, "ACM", "100", "0")

	company := "Acme Holdings"
	alice := f.user(t, "alice", "1000")
	bob := f.user(t, "bob", "1000")
	_, err := f.store.UpdateProfile(f.ctx, bob.ID, models.ProfileUpdate{OwnCompany: &company})
	require.NoError(t, err)

	_, err = f.market.Buy(f.ctx, alice.ID, c.ID, 5)
	require.NoError(t, err)
	_, err = f.market.Buy(f.ctx, bob.ID, c.ID, 7)
	require.NoError(t, err)

	for i := 0; i < 9; i++ {
		_, err := f.market.AdvanceDay(f.ctx)
		require.NoError(t, err)
	}

	detail, err := f.market.Company(f.ctx, c.ID)
	require.NoError(t, err)

	require.Len(t, detail.Prices, 7)
	assert.Equal(t, int64(3), detail.Prices[0].Day)
	assert.Equal(t, "04 Sep", detail.Prices[0].Date)
	assert.Equal(t, int64(9), detail.Prices[6].Day)
	assert.Equal(t, "10 Sep", detail.Prices[6].Date)

	require.Len(t, detail.Shares, 5)
	assert.Equal(t, market.ShareSlice{Owner: market.GovernmentHolder, Color: market.GovernmentColor, Shares: 100}, detail.Shares[0])
	assert.Equal(t, market.ShareSlice{Owner: market.InsiderHolder, Color: market.InsiderColor, Shares: 100}, detail.Shares[1])
	assert.Equal(t, market.ShareSlice{Owner: market.IPOHolder, Color: market.IPOColor, Shares: 388}, detail.Shares[2])
	assert.Equal(t, market.ShareSlice{
		Owner:         "Acme Holdings",
		OwnerName:     "bob",
		OwnerUsername: "bob",
		Color:         "#123456",
		Shares:        7,
		IsUser:        true,
	}, detail.Shares[3])
	assert.Equal(t, market.ShareSlice{
		Owner:     "alice",
		OwnerName: "alice",
		Color:     "#123456",
		Shares:    5,
		IsUser:    true,
	}, detail.Shares[4])

	_, err = f.market.Company(f.ctx, uuid.New())
	assert.ErrorIs(t, err, market.ErrNotFound)
}

func TestStocks(t *testing.T) {
	f := newFixture(t)
	f.company(t, "ACM", "100", "0")
	f.company(t, "BEE", "50", "0")

	details, err := f.market.Stocks(f.ctx)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "ACM", details[0].Quote.Code)
	assert.Len(t, details[1].Prices, 1)
	assert.Len(t, details[1].Shares, 3)
}

func TestCompanyHistory(t *testing.T) {
	f := newFixture(t)
	c := f.company(t, "ACM", "100", "0")
	for i := 0; i < 3; i++ {
		_, err := f.market.AdvanceDay(f.ctx)
		require.NoError(t, err)
	}

	history, err := f.market.CompanyHistory(f.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, p := range history {
		assert.Equal(t, int64(i), p.Day)
		assert.Equal(t, c.ID, p.CompanyID)
	}

	_, err = f.market.CompanyHistory(f.ctx, uuid.New())
	assert.ErrorIs(t, err, market.ErrNotFound)
}

func TestUsersAndProfile(t *testing.T) {
	f := newFixture(t)
	c := f.company(t, "ACM", "100", "0")
	alice := f.user(t, "alice", "1000")
	f.user(t, "bob", "50")

	_, err := f.market.Buy(f.ctx, alice.ID, c.ID, 4)
	require.NoError(t, err)

	users, err := f.market.Users(f.ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.True(t, users[0].Balance.Equal(dec("600")))
	assert.True(t, users[0].InShares.Equal(dec("400")))
	assert.Equal(t, "bob", users[1].Username)
	assert.True(t, users[1].InShares.IsZero())

	profile, err := f.market.UserProfile(f.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, profile.ID)
	require.Len(t, profile.Holdings, 1)
	assert.Equal(t, market.Holding{
		CompanyID: c.ID,
		Company:   "ACM Corp",
		Code:      "ACM",
		Shares:    4,
		Value:     profile.Holdings[0].Value,
	}, profile.Holdings[0])
	assert.True(t, profile.Holdings[0].Value.Equal(dec("400")))

	_, err = f.market.UserProfile(f.ctx, "nobody")
	assert.ErrorIs(t, err, market.ErrNotFound)

	_, err = f.market.UserHoldings(f.ctx, uuid.New())
	assert.ErrorIs(t, err, market.ErrNotFound)
}
