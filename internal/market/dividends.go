package market

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/lutinex/internal/metrics"
)

// DividendReport summarizes one distribution.
type DividendReport struct {
	Total   decimal.Decimal // sum credited across all players
	Payouts int             // number of players credited
}

// PayDividends credits every shareholder with the dividend of each company at
// its latest price, in one transaction.
func (m *Market) PayDividends(ctx context.Context) (DividendReport, error) {
	var report DividendReport
	err := m.store.Update(ctx, func(tx Tx) error {
		var err error
		report, err = payDividends(ctx, tx)
		return err
	})
	if err != nil {
		return DividendReport{}, fmt.Errorf("failed to pay dividends: %w", err)
	}
	metrics.ObserveDividends(report.Total.InexactFloat64())

	m.log.WithFields(logrus.Fields{
		"total":   report.Total.StringFixed(2),
		"payouts": report.Payouts,
	}).Info("dividends paid")
	return report, nil
}

func payDividends(ctx context.Context, tx Tx) (DividendReport, error) {
	report := DividendReport{Total: decimal.Zero}

	companies, err := tx.Companies(ctx)
	if err != nil {
		return report, err
	}

	credits := make(map[uuid.UUID]decimal.Decimal)
	for _, c := range companies {
		price, err := latestPrice(ctx, tx, c.ID)
		if err != nil {
			return report, err
		}
		perShare := price.Mul(c.DividendRate).Div(hundred)
		if perShare.IsZero() {
			continue
		}

		owners, err := tx.CompanyOwnerships(ctx, c.ID)
		if err != nil {
			return report, err
		}
		for _, own := range owners {
			amount := perShare.Mul(decimal.NewFromInt(own.SharesOwned))
			credits[own.UserID] = credits[own.UserID].Add(amount)
		}
	}

	// Stable order keeps lock acquisition consistent across writers.
	users := make([]uuid.UUID, 0, len(credits))
	for id := range credits {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })

	for _, id := range users {
		amount := credits[id]
		if amount.Sign() <= 0 {
			continue
		}
		if _, err := tx.CreditBalance(ctx, id, amount); err != nil {
			return report, fmt.Errorf("failed to credit dividend to %s: %w", id, err)
		}
		report.Total = report.Total.Add(amount)
		report.Payouts++
	}
	return report, nil
}
