// Package seed loads a demo game: a few listed companies and two players.
// Running it again only adds what is missing.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/lutinex/internal/auth"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/models"
)

// Companies is the storage the seeder writes companies to
type Companies interface {
	CreateCompany(ctx context.Context, c models.Company, ipoPrice decimal.Decimal) (models.Company, error)
	GetCompanyByCode(ctx context.Context, code string) (models.Company, error)
}

// Registrar creates player accounts
type Registrar interface {
	Register(ctx context.Context, r auth.Registration) (models.User, error)
}

// Listing is a company together with its IPO price.
type Listing struct {
	Company models.Company
	IPO     decimal.Decimal
}

// DemoCompanies are listed by Demo.
var DemoCompanies = []Listing{
	{
		Company: models.Company{Name: "Ägavam Rail", Code: "AGR", TotalShares: 100000, FloatShares: 60000, InsiderShares: 10000, GovShares: 20000, DividendRate: decimal.RequireFromString("1.5")},
		IPO:     decimal.RequireFromString("42.00"),
	},
	{
		Company: models.Company{Name: "Lutin Mining", Code: "LTM", TotalShares: 50000, FloatShares: 30000, InsiderShares: 5000, GovShares: 5000, DividendRate: decimal.RequireFromString("2")},
		IPO:     decimal.RequireFromString("118.50"),
	},
	{
		Company: models.Company{Name: "Northern Lantern", Code: "NRL", TotalShares: 20000, FloatShares: 12000, InsiderShares: 4000, GovShares: 0, DividendRate: decimal.RequireFromString("0.5")},
		IPO:     decimal.RequireFromString("9.75"),
	},
	{
		Company: models.Company{Name: "Räntä Bank", Code: "RNB", TotalShares: 80000, FloatShares: 40000, InsiderShares: 8000, GovShares: 16000, DividendRate: decimal.RequireFromString("3")},
		IPO:     decimal.RequireFromString("64.20"),
	},
}

// DemoPlayers are registered by Demo.
var DemoPlayers = []auth.Registration{
	{Username: "trader1", Password: "password123", Name: "Trader One", Color: "#1F77B4"},
	{Username: "trader2", Password: "password123", Name: "Trader Two", Color: "#D62728"},
}

// Result counts what a seeding run created.
type Result struct {
	Companies int
	Players   int
}

// Demo lists DemoCompanies and registers DemoPlayers, skipping any that
// already exist.
func Demo(ctx context.Context, companies Companies, players Registrar, log logrus.FieldLogger) (Result, error) {
	var res Result
	for _, l := range DemoCompanies {
		_, err := companies.GetCompanyByCode(ctx, l.Company.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, market.ErrNotFound) {
			return res, fmt.Errorf("failed to check company %s: %w", l.Company.Code, err)
		}

		c, err := companies.CreateCompany(ctx, l.Company, l.IPO)
		if err != nil {
			return res, fmt.Errorf("failed to create company %s: %w", l.Company.Code, err)
		}
		res.Companies++
		log.WithFields(logrus.Fields{"company_id": c.ID, "code": c.Code, "ipo": l.IPO.StringFixed(2)}).Info("company listed")
	}

	for _, p := range DemoPlayers {
		u, err := players.Register(ctx, p)
		if errors.Is(err, models.ErrUsernameTaken) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("failed to register %s: %w", p.Username, err)
		}
		res.Players++
		log.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("player registered")
	}
	return res, nil
}
