package memstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/models"
)

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = s.now()
	err := s.Update(ctx, func(tx market.Tx) error {
		st := tx.(*ledgerTx).st
		for _, existing := range st.users {
			if existing.Username == u.Username {
				return fmt.Errorf("%q: %w", u.Username, models.ErrUsernameTaken)
			}
		}
		st.users[u.ID] = u
		return nil
	})
	return u, err
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	err := s.View(ctx, func(tx market.Tx) error {
		var err error
		u, err = tx.User(ctx, id)
		return err
	})
	return u, err
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := s.View(ctx, func(tx market.Tx) error {
		var err error
		u, err = tx.UserByUsername(ctx, username)
		return err
	})
	return u, err
}

// UpdateProfile applies a profile edit. Balance is never touched here.
func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, p models.ProfileUpdate) (models.User, error) {
	var u models.User
	err := s.Update(ctx, func(tx market.Tx) error {
		var err error
		if u, err = tx.User(ctx, id); err != nil {
			return err
		}
		if p.Name != nil {
			u.Name = *p.Name
		}
		if p.Color != nil {
			u.Color = *p.Color
		}
		switch {
		case p.ClearOwnCompany:
			u.OwnCompany = nil
		case p.OwnCompany != nil:
			company := *p.OwnCompany
			u.OwnCompany = &company
		}
		tx.(*ledgerTx).st.users[id] = u
		return nil
	})
	return u, err
}

// CreateCompany inserts a company and, when ipoPrice is positive, its day 0
// share price.
func (s *Store) CreateCompany(ctx context.Context, c models.Company, ipoPrice decimal.Decimal) (models.Company, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := s.Update(ctx, func(tx market.Tx) error {
		st := tx.(*ledgerTx).st
		for _, existing := range st.companies {
			if existing.Code == c.Code {
				return fmt.Errorf("memstore: company code %q already exists", c.Code)
			}
		}
		st.companies[c.ID] = c
		if ipoPrice.Sign() > 0 {
			return tx.AppendPrice(ctx, models.SharePrice{CompanyID: c.ID, Day: 0, Price: ipoPrice})
		}
		return nil
	})
	return c, err
}

// GetCompanyByCode retrieves a company by ticker.
func (s *Store) GetCompanyByCode(ctx context.Context, code string) (models.Company, error) {
	var c models.Company
	err := s.View(ctx, func(tx market.Tx) error {
		companies, err := tx.Companies(ctx)
		if err != nil {
			return err
		}
		for _, existing := range companies {
			if existing.Code == code {
				c = existing
				return nil
			}
		}
		return fmt.Errorf("company %q: %w", code, market.ErrNotFound)
	})
	return c, err
}
