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

const (
	companyColumns = "id, name, code, total_shares, float_shares, insider_shares, gov_shares, dividend_rate"
	userColumns    = "id, name, username, password_hash, own_company, color, balance, created_at"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ledgerTx implements market.Tx on top of a pgx transaction
type ledgerTx struct {
	tx pgx.Tx
}

func scanCompany(row pgx.Row) (models.Company, error) {
	var c models.Company
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.TotalShares, &c.FloatShares, &c.InsiderShares, &c.GovShares, &c.DividendRate)
	return c, err
}

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.PasswordHash, &u.OwnCompany, &u.Color, &u.Balance, &u.CreatedAt)
	return u, err
}

func (l *ledgerTx) Companies(ctx context.Context) ([]models.Company, error) {
	rows, err := l.tx.Query(ctx, "SELECT "+companyColumns+" FROM companies ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to get companies: %w", err)
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (l *ledgerTx) Company(ctx context.Context, id uuid.UUID) (models.Company, error) {
	c, err := scanCompany(l.tx.QueryRow(ctx, "SELECT "+companyColumns+" FROM companies WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, fmt.Errorf("company %s: %w", id, market.ErrNotFound)
		}
		return c, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

func (l *ledgerTx) Users(ctx context.Context) ([]models.User, error) {
	rows, err := l.tx.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (l *ledgerTx) User(ctx context.Context, id uuid.UUID) (models.User, error) {
	return getUser(ctx, l.tx, id)
}

func (l *ledgerTx) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return getUserByUsername(ctx, l.tx, username)
}

func getUser(ctx context.Context, q querier, id uuid.UUID) (models.User, error) {
	u, err := scanUser(q.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, fmt.Errorf("user %s: %w", id, market.ErrNotFound)
		}
		return u, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func getUserByUsername(ctx context.Context, q querier, username string) (models.User, error) {
	u, err := scanUser(q.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, fmt.Errorf("user %q: %w", username, market.ErrNotFound)
		}
		return u, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (l *ledgerTx) LatestPrices(ctx context.Context, companyID uuid.UUID, limit int) ([]models.SharePrice, error) {
	return l.prices(ctx,
		"SELECT company_id, day, price FROM share_prices WHERE company_id = $1 ORDER BY day DESC LIMIT $2",
		companyID, limit)
}

func (l *ledgerTx) PriceHistory(ctx context.Context, companyID uuid.UUID) ([]models.SharePrice, error) {
	return l.prices(ctx,
		"SELECT company_id, day, price FROM share_prices WHERE company_id = $1 ORDER BY day",
		companyID)
}

func (l *ledgerTx) prices(ctx context.Context, sql string, args ...any) ([]models.SharePrice, error) {
	rows, err := l.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get share prices: %w", err)
	}
	defer rows.Close()

	var prices []models.SharePrice
	for rows.Next() {
		var p models.SharePrice
		if err := rows.Scan(&p.CompanyID, &p.Day, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan share price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (l *ledgerTx) CurrentDay(ctx context.Context) (int64, error) {
	var day int64
	if err := l.tx.QueryRow(ctx, "SELECT COALESCE(MAX(day), 0) FROM share_prices").Scan(&day); err != nil {
		return 0, fmt.Errorf("failed to get current day: %w", err)
	}
	return day, nil
}

func (l *ledgerTx) AppendPrice(ctx context.Context, p models.SharePrice) error {
	_, err := l.tx.Exec(ctx,
		"INSERT INTO share_prices (company_id, day, price) VALUES ($1, $2, $3)",
		p.CompanyID, p.Day, p.Price.String())
	if err != nil {
		return fmt.Errorf("failed to insert share price: %w", err)
	}
	return nil
}

func (l *ledgerTx) CompanyOwnerships(ctx context.Context, companyID uuid.UUID) ([]models.Ownership, error) {
	return l.ownerships(ctx, `
		SELECT user_id, company_id, day, shares_owned
		FROM ownerships
		WHERE company_id = $1
		ORDER BY shares_owned DESC, user_id
	`, companyID)
}

func (l *ledgerTx) UserOwnerships(ctx context.Context, userID uuid.UUID) ([]models.Ownership, error) {
	return l.ownerships(ctx, `
		SELECT o.user_id, o.company_id, o.day, o.shares_owned
		FROM ownerships o JOIN companies c ON c.id = o.company_id
		WHERE o.user_id = $1
		ORDER BY c.code
	`, userID)
}

func (l *ledgerTx) ownerships(ctx context.Context, sql string, args ...any) ([]models.Ownership, error) {
	rows, err := l.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get ownerships: %w", err)
	}
	defer rows.Close()

	var owned []models.Ownership
	for rows.Next() {
		var o models.Ownership
		if err := rows.Scan(&o.UserID, &o.CompanyID, &o.Day, &o.SharesOwned); err != nil {
			return nil, fmt.Errorf("failed to scan ownership: %w", err)
		}
		owned = append(owned, o)
	}
	return owned, rows.Err()
}

func (l *ledgerTx) SharesHeld(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var held int64
	err := l.tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(shares_owned), 0)::bigint FROM ownerships WHERE company_id = $1",
		companyID).Scan(&held)
	if err != nil {
		return 0, fmt.Errorf("failed to sum shares held: %w", err)
	}
	return held, nil
}

func (l *ledgerTx) AddShares(ctx context.Context, userID, companyID uuid.UUID, quantity, day int64) (int64, error) {
	var owned int64
	err := l.tx.QueryRow(ctx, `
		INSERT INTO ownerships (user_id, company_id, day, shares_owned)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, company_id)
		DO UPDATE SET shares_owned = ownerships.shares_owned + EXCLUDED.shares_owned
		RETURNING shares_owned
	`, userID, companyID, day, quantity).Scan(&owned)
	if err != nil {
		return 0, fmt.Errorf("failed to add shares: %w", err)
	}
	return owned, nil
}

func (l *ledgerTx) RemoveShares(ctx context.Context, userID, companyID uuid.UUID, quantity int64) (int64, error) {
	// Exactly one branch can match: the row is deleted when sold out and
	// decremented when shares remain.
	var owned int64
	err := l.tx.QueryRow(ctx, `
		WITH deleted AS (
			DELETE FROM ownerships
			WHERE user_id = $1 AND company_id = $2 AND shares_owned = $3
			RETURNING 0::bigint AS shares_owned
		), updated AS (
			UPDATE ownerships SET shares_owned = shares_owned - $3
			WHERE user_id = $1 AND company_id = $2 AND shares_owned > $3
			RETURNING shares_owned
		)
		SELECT shares_owned FROM deleted
		UNION ALL
		SELECT shares_owned FROM updated
	`, userID, companyID, quantity).Scan(&owned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: cannot sell %d shares", market.ErrInsufficientShares, quantity)
		}
		return 0, fmt.Errorf("failed to remove shares: %w", err)
	}
	return owned, nil
}

func (l *ledgerTx) CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.tx.QueryRow(ctx,
		"UPDATE users SET balance = balance + $2 WHERE id = $1 RETURNING balance",
		userID, amount.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return balance, fmt.Errorf("user %s: %w", userID, market.ErrNotFound)
		}
		return balance, fmt.Errorf("failed to credit balance: %w", err)
	}
	return balance, nil
}

func (l *ledgerTx) DebitBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.tx.QueryRow(ctx,
		"UPDATE users SET balance = balance - $2 WHERE id = $1 AND balance >= $2 RETURNING balance",
		userID, amount.String()).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return balance, fmt.Errorf("failed to debit balance: %w", err)
	}

	var exists bool
	if err := l.tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", userID).Scan(&exists); err != nil {
		return balance, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return balance, fmt.Errorf("user %s: %w", userID, market.ErrNotFound)
	}
	return balance, fmt.Errorf("%w: %s needed", market.ErrInsufficientFunds, amount.StringFixed(2))
}
