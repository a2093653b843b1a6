package market

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LatestPrice returns the company's most recent price, or zero if it has none.
func (m *Market) LatestPrice(ctx context.Context, companyID uuid.UUID) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := m.store.View(ctx, func(tx Tx) error {
		var err error
		price, err = latestPrice(ctx, tx, companyID)
		return err
	})
	return price, err
}

// LatestTwoPrices returns the most recent and the previous price. Missing
// prices are zero.
func (m *Market) LatestTwoPrices(ctx context.Context, companyID uuid.UUID) (latest, previous decimal.Decimal, err error) {
	err = m.store.View(ctx, func(tx Tx) error {
		var err error
		latest, previous, err = latestTwoPrices(ctx, tx, companyID)
		return err
	})
	return latest, previous, err
}

// PriceChange returns the difference between the two most recent prices and
// the same difference as a percentage of the previous one.
func (m *Market) PriceChange(ctx context.Context, companyID uuid.UUID) (change, percent decimal.Decimal, err error) {
	latest, previous, err := m.LatestTwoPrices(ctx, companyID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	change, percent = priceChange(latest, previous)
	return change, percent, nil
}

// PortfolioValue returns the market value of everything the user owns.
func (m *Market) PortfolioValue(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var value decimal.Decimal
	err := m.store.View(ctx, func(tx Tx) error {
		if _, err := tx.User(ctx, userID); err != nil {
			return err
		}
		var err error
		value, err = portfolioValue(ctx, tx, userID)
		return err
	})
	return value, err
}

func latestPrice(ctx context.Context, tx Tx, companyID uuid.UUID) (decimal.Decimal, error) {
	prices, err := tx.LatestPrices(ctx, companyID, 1)
	if err != nil {
		return decimal.Zero, err
	}
	if len(prices) == 0 {
		return decimal.Zero, nil
	}
	return prices[0].Price, nil
}

func latestTwoPrices(ctx context.Context, tx Tx, companyID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	prices, err := tx.LatestPrices(ctx, companyID, 2)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	switch len(prices) {
	case 0:
		return decimal.Zero, decimal.Zero, nil
	case 1:
		return prices[0].Price, decimal.Zero, nil
	default:
		return prices[0].Price, prices[1].Price, nil
	}
}

// priceChange treats a zero baseline as no change in percent.
func priceChange(latest, previous decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	change := latest.Sub(previous)
	if previous.Sign() <= 0 {
		return change, decimal.Zero
	}
	return change, change.Div(previous).Mul(hundred)
}

func portfolioValue(ctx context.Context, tx Tx, userID uuid.UUID) (decimal.Decimal, error) {
	owned, err := tx.UserOwnerships(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, own := range owned {
		price, err := latestPrice(ctx, tx, own.CompanyID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(price.Mul(decimal.NewFromInt(own.SharesOwned)))
	}
	return total, nil
}
