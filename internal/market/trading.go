package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Buy purchases quantity shares of a company at its latest price and returns
// the player's new balance.
func (m *Market) Buy(ctx context.Context, userID, companyID uuid.UUID, quantity int64) (decimal.Decimal, error) {
	if quantity <= 0 {
		err := fmt.Errorf("%w: quantity must be positive", ErrValidation)
		observeTrade("buy", quantity, err)
		return decimal.Zero, err
	}

	var balance, price decimal.Decimal
	err := m.store.Update(ctx, func(tx Tx) error {
		if _, err := tx.User(ctx, userID); err != nil {
			return err
		}
		company, err := tx.Company(ctx, companyID)
		if err != nil {
			return err
		}

		latest, err := tx.LatestPrices(ctx, companyID, 1)
		if err != nil {
			return err
		}
		if len(latest) == 0 {
			return fmt.Errorf("%w: %s is not listed yet", ErrValidation, company.Code)
		}
		price = latest[0].Price

		held, err := tx.SharesHeld(ctx, companyID)
		if err != nil {
			return err
		}
		if available := company.PublicShares() - held; quantity > available {
			return fmt.Errorf("%w: only %d shares of %s left in the float", ErrInsufficientShares, max(available, 0), company.Code)
		}

		day, err := tx.CurrentDay(ctx)
		if err != nil {
			return err
		}

		cost := price.Mul(decimal.NewFromInt(quantity))
		balance, err = tx.DebitBalance(ctx, userID, cost)
		if err != nil {
			return err
		}
		_, err = tx.AddShares(ctx, userID, companyID, quantity, day)
		return err
	})
	observeTrade("buy", quantity, err)
	if err != nil {
		return decimal.Zero, err
	}

	m.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"company_id": companyID,
		"shares":     quantity,
		"price":      price.String(),
	}).Info("shares bought")
	return balance, nil
}

// Sell sells quantity shares of a company at its latest price and returns the
// player's new balance. A position sold down to zero is removed.
func (m *Market) Sell(ctx context.Context, userID, companyID uuid.UUID, quantity int64) (decimal.Decimal, error) {
	if quantity <= 0 {
		err := fmt.Errorf("%w: quantity must be positive", ErrValidation)
		observeTrade("sell", quantity, err)
		return decimal.Zero, err
	}

	var balance, price decimal.Decimal
	err := m.store.Update(ctx, func(tx Tx) error {
		if _, err := tx.User(ctx, userID); err != nil {
			return err
		}
		if _, err := tx.Company(ctx, companyID); err != nil {
			return err
		}

		if _, err := tx.RemoveShares(ctx, userID, companyID, quantity); err != nil {
			return err
		}

		var err error
		price, err = latestPrice(ctx, tx, companyID)
		if err != nil {
			return err
		}
		balance, err = tx.CreditBalance(ctx, userID, price.Mul(decimal.NewFromInt(quantity)))
		return err
	})
	observeTrade("sell", quantity, err)
	if err != nil {
		return decimal.Zero, err
	}

	m.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"company_id": companyID,
		"shares":     quantity,
		"price":      price.String(),
	}).Info("shares sold")
	return balance, nil
}
