package market

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xtrntr/lutinex/internal/models"
)

// Store is the ledger the market runs against. Update runs fn in a single
// serializable transaction and commits only if fn returns nil. View runs fn
// against a consistent read-only snapshot.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of ledger operations available inside a transaction.
//
// Lookups of a missing user or company return an error wrapping ErrNotFound.
type Tx interface {
	Companies(ctx context.Context) ([]models.Company, error)
	Company(ctx context.Context, id uuid.UUID) (models.Company, error)

	Users(ctx context.Context) ([]models.User, error)
	User(ctx context.Context, id uuid.UUID) (models.User, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)

	// LatestPrices returns up to limit prices for the company, newest first.
	LatestPrices(ctx context.Context, companyID uuid.UUID, limit int) ([]models.SharePrice, error)
	// PriceHistory returns every price for the company, oldest first.
	PriceHistory(ctx context.Context, companyID uuid.UUID) ([]models.SharePrice, error)
	// CurrentDay returns the highest day recorded across all companies.
	CurrentDay(ctx context.Context) (int64, error)
	AppendPrice(ctx context.Context, price models.SharePrice) error

	CompanyOwnerships(ctx context.Context, companyID uuid.UUID) ([]models.Ownership, error)
	UserOwnerships(ctx context.Context, userID uuid.UUID) ([]models.Ownership, error)
	// SharesHeld returns the number of shares players hold in the company.
	SharesHeld(ctx context.Context, companyID uuid.UUID) (int64, error)
	// AddShares increments the position, creating it at day if absent, and
	// returns the resulting share count.
	AddShares(ctx context.Context, userID, companyID uuid.UUID, quantity, day int64) (int64, error)
	// RemoveShares decrements the position and deletes it when it reaches
	// zero. It fails with ErrInsufficientShares when the position is missing
	// or smaller than quantity.
	RemoveShares(ctx context.Context, userID, companyID uuid.UUID, quantity int64) (int64, error)

	// CreditBalance adds amount to the user's balance and returns the result.
	CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	// DebitBalance subtracts amount and returns the result. It fails with
	// ErrInsufficientFunds when the balance is lower than amount.
	DebitBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}
