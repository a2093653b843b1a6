package market

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/lutinex/internal/metrics"
	"github.com/xtrntr/lutinex/internal/models"
)

// DayReport describes one completed day advance.
type DayReport struct {
	Day       int64               // highest day written, -1 if no company is listed
	Prices    []models.SharePrice // one new price per listed company
	Dividends DividendReport
}

// AdvanceDay moves every listed company forward by one simulated day and pays
// dividends on the new prices. Prices and payouts commit together, so
// concurrent trades see either the whole day or none of it.
//
// Calling it twice advances two days; callers schedule it once per day.
func (m *Market) AdvanceDay(ctx context.Context) (DayReport, error) {
	start := time.Now()

	var report DayReport
	err := m.store.Update(ctx, func(tx Tx) error {
		report = DayReport{Day: -1}

		prices, err := m.advancePrices(ctx, tx)
		if err != nil {
			return err
		}
		report.Prices = prices
		for _, p := range prices {
			if p.Day > report.Day {
				report.Day = p.Day
			}
		}

		report.Dividends, err = payDividends(ctx, tx)
		return err
	})
	metrics.ObserveDayAdvance(outcome(err), len(report.Prices), time.Since(start))
	if err != nil {
		return DayReport{}, fmt.Errorf("failed to advance day: %w", err)
	}
	metrics.ObserveDividends(report.Dividends.Total.InexactFloat64())

	m.log.WithFields(logrus.Fields{
		"day":       report.Day,
		"companies": len(report.Prices),
		"dividends": report.Dividends.Total.StringFixed(2),
		"payouts":   report.Dividends.Payouts,
	}).Info("share prices updated")
	return report, nil
}

// advancePrices appends the next day's price for every company that has a
// price history. Companies without one have not listed yet and are skipped.
func (m *Market) advancePrices(ctx context.Context, tx Tx) ([]models.SharePrice, error) {
	companies, err := tx.Companies(ctx)
	if err != nil {
		return nil, err
	}

	var prices []models.SharePrice
	for _, c := range companies {
		latest, err := tx.LatestPrices(ctx, c.ID, 1)
		if err != nil {
			return nil, err
		}
		if len(latest) == 0 {
			continue
		}

		next := models.SharePrice{
			CompanyID: c.ID,
			Day:       latest[0].Day + 1,
			Price:     m.nextPrice(latest[0].Price),
		}
		if err := tx.AppendPrice(ctx, next); err != nil {
			return nil, fmt.Errorf("failed to append price for %s: %w", c.Code, err)
		}
		prices = append(prices, next)
	}
	return prices, nil
}

// nextPrice applies one random step and rounds to cents.
func (m *Market) nextPrice(last decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(m.walk.delta(m.rng))
	return last.Mul(factor).Round(2)
}
