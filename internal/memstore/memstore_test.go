package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/models"
)

func seed(t *testing.T) (*Store, models.User, models.Company) {
	t.Helper()
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, models.User{Username: "alice", Name: "Alice", Color: "#000000", Balance: decimal.NewFromInt(100)})
	require.NoError(t, err)
	c, err := s.CreateCompany(ctx, models.Company{
		Name:          "Acme",
		Code:          "ACM",
		TotalShares:   1000,
		FloatShares:   600,
		InsiderShares: 100,
		GovShares:     100,
		DividendRate:  decimal.NewFromInt(1),
	}, decimal.NewFromInt(10))
	require.NoError(t, err)
	return s, u, c
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s, u, c := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx market.Tx) error {
		if _, err := tx.DebitBalance(ctx, u.ID, decimal.NewFromInt(40)); err != nil {
			return err
		}
		if _, err := tx.AddShares(ctx, u.ID, c.ID, 4, 0); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))

	err = s.View(ctx, func(tx market.Tx) error {
		held, err := tx.SharesHeld(ctx, c.ID)
		assert.Zero(t, held)
		return err
	})
	require.NoError(t, err)
}

func TestUpdate_Commits(t *testing.T) {
	s, u, c := seed(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx market.Tx) error {
		if _, err := tx.DebitBalance(ctx, u.ID, decimal.NewFromInt(40)); err != nil {
			return err
		}
		_, err := tx.AddShares(ctx, u.ID, c.ID, 4, 0)
		return err
	})
	require.NoError(t, err)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(60)))
}

func TestView_RejectsWrites(t *testing.T) {
	s, u, c := seed(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		write func(tx market.Tx) error
	}{
		{name: "AppendPrice", write: func(tx market.Tx) error {
			return tx.AppendPrice(ctx, models.SharePrice{CompanyID: c.ID, Day: 1, Price: decimal.NewFromInt(11)})
		}},
		{name: "AddShares", write: func(tx market.Tx) error {
			_, err := tx.AddShares(ctx, u.ID, c.ID, 1, 0)
			return err
		}},
		{name: "RemoveShares", write: func(tx market.Tx) error {
			_, err := tx.RemoveShares(ctx, u.ID, c.ID, 1)
			return err
		}},
		{name: "CreditBalance", write: func(tx market.Tx) error {
			_, err := tx.CreditBalance(ctx, u.ID, decimal.NewFromInt(1))
			return err
		}},
		{name: "DebitBalance", write: func(tx market.Tx) error {
			_, err := tx.DebitBalance(ctx, u.ID, decimal.NewFromInt(1))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.View(ctx, tt.write)
			assert.ErrorIs(t, err, errReadOnly)
		})
	}
}

func TestUpdate_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(tx market.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestAppendPrice(t *testing.T) {
	s, _, c := seed(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		company     uuid.UUID
		day         int64
		expectError error
	}{
		{name: "NextDay", company: c.ID, day: 1},
		{name: "Gap", company: c.ID, day: 3, expectError: errors.New("memstore: price for day 3, expected day 2")},
		{name: "Repeat", company: c.ID, day: 0, expectError: errors.New("memstore: price for day 0, expected day 2")},
		{name: "UnknownCompany", company: uuid.New(), day: 0, expectError: market.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Update(ctx, func(tx market.Tx) error {
				return tx.AppendPrice(ctx, models.SharePrice{CompanyID: tt.company, Day: tt.day, Price: decimal.NewFromInt(11)})
			})
			switch {
			case tt.expectError == nil:
				assert.NoError(t, err)
			case errors.Is(tt.expectError, market.ErrNotFound):
				assert.ErrorIs(t, err, market.ErrNotFound)
			default:
				assert.EqualError(t, err, tt.expectError.Error())
			}
		})
	}
}

func TestLatestPrices(t *testing.T) {
	s, _, c := seed(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx market.Tx) error {
		for day := int64(1); day <= 3; day++ {
			p := models.SharePrice{CompanyID: c.ID, Day: day, Price: decimal.NewFromInt(10 + day)}
			if err := tx.AppendPrice(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx market.Tx) error {
		latest, err := tx.LatestPrices(ctx, c.ID, 2)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, int64(3), latest[0].Day)
		assert.Equal(t, int64(2), latest[1].Day)

		all, err := tx.LatestPrices(ctx, c.ID, 10)
		require.NoError(t, err)
		assert.Len(t, all, 4)

		day, err := tx.CurrentDay(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), day)
		return nil
	})
	require.NoError(t, err)
}

func TestShares(t *testing.T) {
	s, u, c := seed(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx market.Tx) error {
		n, err := tx.AddShares(ctx, u.ID, c.ID, 5, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		_, err = tx.AddShares(ctx, u.ID, c.ID, 0, 0)
		assert.ErrorIs(t, err, market.ErrValidation)

		n, err = tx.RemoveShares(ctx, u.ID, c.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		_, err = tx.RemoveShares(ctx, u.ID, c.ID, 4)
		assert.ErrorIs(t, err, market.ErrInsufficientShares)

		n, err = tx.RemoveShares(ctx, u.ID, c.ID, 3)
		require.NoError(t, err)
		assert.Zero(t, n)

		owned, err := tx.UserOwnerships(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, owned)
		return nil
	})
	require.NoError(t, err)
}

func TestDebitBalance_InsufficientFunds(t *testing.T) {
	s, u, _ := seed(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx market.Tx) error {
		_, err := tx.DebitBalance(ctx, u.ID, decimal.NewFromInt(101))
		return err
	})
	assert.ErrorIs(t, err, market.ErrInsufficientFunds)
	assert.EqualError(t, err, "insufficient balance: 101.00 needed")
}

func TestAccounts(t *testing.T) {
	s, u, c := seed(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, models.User{Username: "alice"})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	_, err = s.CreateCompany(ctx, models.Company{Code: "ACM"}, decimal.Zero)
	assert.Error(t, err)

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, market.ErrNotFound)

	byCode, err := s.GetCompanyByCode(ctx, "ACM")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byCode.ID)

	_, err = s.GetCompanyByCode(ctx, "XYZ")
	assert.ErrorIs(t, err, market.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	s, u, _ := seed(t)
	ctx := context.Background()

	name, color, company := "Alice B", "#ABCDEF", "Alice Inc"
	got, err := s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{Name: &name, Color: &color, OwnCompany: &company})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.Name)
	assert.Equal(t, "#ABCDEF", got.Color)
	require.NotNil(t, got.OwnCompany)
	assert.Equal(t, "Alice Inc", *got.OwnCompany)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))

	got, err = s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{ClearOwnCompany: true})
	require.NoError(t, err)
	assert.Nil(t, got.OwnCompany)
	assert.Equal(t, "Alice B", got.Name)

	_, err = s.UpdateProfile(ctx, uuid.New(), models.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, market.ErrNotFound)
}
