package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/models"
)

// CreateUser inserts a new user
func (db *DB) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	created, err := scanUser(db.Pool.QueryRow(ctx, `
		INSERT INTO users (id, name, username, password_hash, own_company, color, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		u.ID, u.Name, u.Username, u.PasswordHash, u.OwnCompany, u.Color, u.Balance.String()))
	if err != nil {
		if isUniqueViolation(err) {
			return created, fmt.Errorf("%q: %w", u.Username, models.ErrUsernameTaken)
		}
		return created, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// GetUser retrieves a user by id
func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return getUser(ctx, db.Pool, id)
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return getUserByUsername(ctx, db.Pool, username)
}

// UpdateProfile applies a profile edit. Balance is never touched here.
func (db *DB) UpdateProfile(ctx context.Context, id uuid.UUID, p models.ProfileUpdate) (models.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx, `
		UPDATE users SET
			name = COALESCE($2, name),
			color = COALESCE($3, color),
			own_company = CASE WHEN $5 THEN NULL ELSE COALESCE($4, own_company) END
		WHERE id = $1
		RETURNING `+userColumns,
		id, p.Name, p.Color, p.OwnCompany, p.ClearOwnCompany))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, fmt.Errorf("user %s: %w", id, market.ErrNotFound)
		}
		return u, fmt.Errorf("failed to update profile: %w", err)
	}
	return u, nil
}

// CreateCompany inserts a company and, when ipoPrice is positive, its day 0
// share price in the same transaction.
func (db *DB) CreateCompany(ctx context.Context, c models.Company, ipoPrice decimal.Decimal) (models.Company, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return c, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO companies (id, name, code, total_shares, float_shares, insider_shares, gov_shares, dividend_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Code, c.TotalShares, c.FloatShares, c.InsiderShares, c.GovShares, c.DividendRate.String())
	if err != nil {
		return c, fmt.Errorf("failed to create company: %w", err)
	}

	if ipoPrice.Sign() > 0 {
		_, err = tx.Exec(ctx,
			"INSERT INTO share_prices (company_id, day, price) VALUES ($1, 0, $2)",
			c.ID, ipoPrice.String())
		if err != nil {
			return c, fmt.Errorf("failed to insert ipo price: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return c, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return c, nil
}

// GetCompanyByCode retrieves a company by ticker
func (db *DB) GetCompanyByCode(ctx context.Context, code string) (models.Company, error) {
	c, err := scanCompany(db.Pool.QueryRow(ctx, "SELECT "+companyColumns+" FROM companies WHERE code = $1", code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, fmt.Errorf("company %q: %w", code, market.ErrNotFound)
		}
		return c, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}
