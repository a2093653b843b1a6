package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtrntr/lutinex/internal/logging"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/models"
)

var testDB *DB

func TestMain(m *testing.M) {
	url := os.Getenv("LUTINEX_TEST_DATABASE_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "LUTINEX_TEST_DATABASE_URL not set, skipping database tests")
		os.Exit(0)
	}

	if err := Migrate(url); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to apply migrations: %v\n", err)
		os.Exit(1)
	}

	var err error
	testDB, err = NewDB(context.Background(), url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	testDB.Close(context.Background())
	os.Exit(code)
}

func truncate(t *testing.T) {
	t.Helper()
	_, err := testDB.Pool.Exec(context.Background(), "TRUNCATE TABLE ownerships, share_prices, companies, users")
	require.NoError(t, err)
}

func seedLedger(t *testing.T) (models.User, models.Company) {
	t.Helper()
	truncate(t)
	ctx := context.Background()

	u, err := testDB.CreateUser(ctx, models.User{
		Name:         "Alice",
		Username:     "alice",
		PasswordHash: "hash",
		Color:        "#123456",
		Balance:      decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	c, err := testDB.CreateCompany(ctx, models.Company{
		Name:          "Acme",
		Code:          "ACM",
		TotalShares:   1000,
		FloatShares:   600,
		InsiderShares: 100,
		GovShares:     100,
		DividendRate:  decimal.RequireFromString("2.5"),
	}, decimal.NewFromInt(100))
	require.NoError(t, err)
	return u, c
}

func TestDB_Accounts(t *testing.T) {
	u, c := seedLedger(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		user        models.User
		expectError error
	}{
		{name: "Success", user: models.User{Name: "Bob", Username: "bob", PasswordHash: "hash", Color: "#000000"}},
		{name: "DuplicateUsername", user: models.User{Name: "Alice", Username: "alice", PasswordHash: "hash", Color: "#000000"}, expectError: models.ErrUsernameTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := testDB.CreateUser(ctx, tt.user)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, created.ID)
			assert.True(t, created.Balance.IsZero())
			assert.False(t, created.CreatedAt.IsZero())
		})
	}

	got, err := testDB.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)))

	_, err = testDB.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, market.ErrNotFound)

	byCode, err := testDB.GetCompanyByCode(ctx, "ACM")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byCode.ID)
	assert.True(t, byCode.DividendRate.Equal(decimal.RequireFromString("2.5")))

	_, err = testDB.GetCompanyByCode(ctx, "XYZ")
	assert.ErrorIs(t, err, market.ErrNotFound)
}

func TestDB_UpdateProfile(t *testing.T) {
	u, _ := seedLedger(t)
	ctx := context.Background()

	name, company := "Alice B", "Alice Inc"
	got, err := testDB.UpdateProfile(ctx, u.ID, models.ProfileUpdate{Name: &name, OwnCompany: &company})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.Name)
	assert.Equal(t, "#123456", got.Color)
	require.NotNil(t, got.OwnCompany)
	assert.Equal(t, "Alice Inc", *got.OwnCompany)

	got, err = testDB.UpdateProfile(ctx, u.ID, models.ProfileUpdate{ClearOwnCompany: true})
	require.NoError(t, err)
	assert.Nil(t, got.OwnCompany)
	assert.Equal(t, "Alice B", got.Name)

	_, err = testDB.UpdateProfile(ctx, uuid.New(), models.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, market.ErrNotFound)
}

func TestDB_Ledger(t *testing.T) {
	u, c := seedLedger(t)
	ctx := context.Background()

	err := testDB.Update(ctx, func(tx market.Tx) error {
		for day := int64(1); day <= 2; day++ {
			p := models.SharePrice{CompanyID: c.ID, Day: day, Price: decimal.NewFromInt(100 + day)}
			if err := tx.AppendPrice(ctx, p); err != nil {
				return err
			}
		}
		if _, err := tx.DebitBalance(ctx, u.ID, decimal.NewFromInt(510)); err != nil {
			return err
		}
		_, err := tx.AddShares(ctx, u.ID, c.ID, 5, 2)
		return err
	})
	require.NoError(t, err)

	err = testDB.View(ctx, func(tx market.Tx) error {
		latest, err := tx.LatestPrices(ctx, c.ID, 2)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, int64(2), latest[0].Day)
		assert.True(t, latest[0].Price.Equal(decimal.NewFromInt(102)))

		history, err := tx.PriceHistory(ctx, c.ID)
		require.NoError(t, err)
		assert.Len(t, history, 3)

		day, err := tx.CurrentDay(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), day)

		held, err := tx.SharesHeld(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), held)

		owned, err := tx.UserOwnerships(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, int64(2), owned[0].Day)

		user, err := tx.User(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, user.Balance.Equal(decimal.NewFromInt(490)))
		return nil
	})
	require.NoError(t, err)
}

func TestDB_View_ReadOnly(t *testing.T) {
	u, _ := seedLedger(t)
	ctx := context.Background()

	err := testDB.View(ctx, func(tx market.Tx) error {
		_, err := tx.CreditBalance(ctx, u.ID, decimal.NewFromInt(1))
		return err
	})
	assert.Error(t, err)
}

func TestDB_RemoveShares(t *testing.T) {
	u, c := seedLedger(t)
	ctx := context.Background()

	require.NoError(t, testDB.Update(ctx, func(tx market.Tx) error {
		_, err := tx.AddShares(ctx, u.ID, c.ID, 5, 0)
		return err
	}))

	tests := []struct {
		name        string
		quantity    int64
		expectError error
		remaining   int64
	}{
		{name: "Partial", quantity: 2, remaining: 3},
		{name: "TooMany", quantity: 4, expectError: market.ErrInsufficientShares, remaining: 3},
		{name: "SoldOut", quantity: 3, remaining: 0},
		{name: "NoPosition", quantity: 1, expectError: market.ErrInsufficientShares, remaining: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testDB.Update(ctx, func(tx market.Tx) error {
				left, err := tx.RemoveShares(ctx, u.ID, c.ID, tt.quantity)
				if err == nil {
					assert.Equal(t, tt.remaining, left)
				}
				return err
			})
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			} else {
				require.NoError(t, err)
			}

			require.NoError(t, testDB.View(ctx, func(tx market.Tx) error {
				held, err := tx.SharesHeld(ctx, c.ID)
				assert.Equal(t, tt.remaining, held)
				return err
			}))
		})
	}
}

func TestDB_DebitBalance(t *testing.T) {
	u, _ := seedLedger(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		user        uuid.UUID
		amount      int64
		expectError error
	}{
		{name: "InsufficientFunds", user: u.ID, amount: 1001, expectError: market.ErrInsufficientFunds},
		{name: "UnknownUser", user: uuid.New(), amount: 1, expectError: market.ErrNotFound},
		{name: "Success", user: u.ID, amount: 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testDB.Update(ctx, func(tx market.Tx) error {
				_, err := tx.DebitBalance(ctx, tt.user, decimal.NewFromInt(tt.amount))
				return err
			})
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDB_ConcurrentBuys(t *testing.T) {
	u, c := seedLedger(t)
	m := market.New(testDB, market.WithLogger(logging.Discard()))
	ctx := context.Background()

	// 1000 covers three buys of 3 shares at 100.
	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Buy(ctx, u.ID, c.ID, 3)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, market.ErrConflict) || errors.Is(err, market.ErrInsufficientFunds), "unexpected error: %v", err)
	}

	got, err := testDB.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(int64(1000-300*ok))), "balance %s after %d buys", got.Balance, ok)
	assert.False(t, got.Balance.IsNegative())

	holdings, err := m.UserHoldings(ctx, u.ID)
	require.NoError(t, err)
	if ok > 0 {
		require.Len(t, holdings, 1)
		assert.Equal(t, int64(3*ok), holdings[0].Shares)
	}
}
