package market

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xtrntr/lutinex/internal/models"
)

// Holders shown in every share breakdown besides the players.
const (
	GovernmentHolder = "Lötinäç'rä Ägavam"
	GovernmentColor  = "#7E0CE2"
	InsiderHolder    = "Insiders"
	InsiderColor     = "#FFC800"
	IPOHolder        = "IPO"
	IPOColor         = "#FFF"
)

// chartDays is the number of recent prices shown on a company page.
const chartDays = 7

// Quote is a company with its current price movement.
type Quote struct {
	ID            uuid.UUID
	Name          string
	Code          string
	Price         decimal.Decimal
	Previous      decimal.Decimal
	Change        decimal.Decimal
	PercentChange decimal.Decimal
	TotalShares   int64
	DividendRate  decimal.Decimal
}

// PricePoint is one day on a company chart.
type PricePoint struct {
	Day   int64
	Date  string // calendar label, e.g. "02 Sep"
	Price decimal.Decimal
}

// ShareSlice is one holder's part of a company's float.
type ShareSlice struct {
	Owner         string
	OwnerName     string // set for players
	OwnerUsername string // set for players representing a company
	Color         string
	Shares        int64
	IsUser        bool
}

// CompanyDetail is everything shown on a company page.
type CompanyDetail struct {
	Quote  Quote
	Prices []PricePoint
	Shares []ShareSlice
}

// Holding is one position valued at the latest price.
type Holding struct {
	CompanyID uuid.UUID
	Company   string
	Code      string
	Shares    int64
	Value     decimal.Decimal
}

// UserSummary is a player with cash and share value.
type UserSummary struct {
	ID         uuid.UUID
	Username   string
	Name       string
	Color      string
	OwnCompany *string
	Balance    decimal.Decimal
	InShares   decimal.Decimal
}

// UserProfile is a player page.
type UserProfile struct {
	UserSummary
	Holdings []Holding
}

// Companies returns a quote for every company, ordered by ticker.
func (m *Market) Companies(ctx context.Context) ([]Quote, error) {
	var quotes []Quote
	err := m.store.View(ctx, func(tx Tx) error {
		companies, err := tx.Companies(ctx)
		if err != nil {
			return err
		}
		quotes = make([]Quote, 0, len(companies))
		for _, c := range companies {
			q, err := quote(ctx, tx, c)
			if err != nil {
				return err
			}
			quotes = append(quotes, q)
		}
		return nil
	})
	return quotes, err
}

// Company returns the detail page of one company.
func (m *Market) Company(ctx context.Context, id uuid.UUID) (CompanyDetail, error) {
	var detail CompanyDetail
	err := m.store.View(ctx, func(tx Tx) error {
		c, err := tx.Company(ctx, id)
		if err != nil {
			return err
		}
		detail, err = m.companyDetail(ctx, tx, c)
		return err
	})
	return detail, err
}

// Stocks returns the detail page of every company.
func (m *Market) Stocks(ctx context.Context) ([]CompanyDetail, error) {
	var details []CompanyDetail
	err := m.store.View(ctx, func(tx Tx) error {
		companies, err := tx.Companies(ctx)
		if err != nil {
			return err
		}
		details = make([]CompanyDetail, 0, len(companies))
		for _, c := range companies {
			d, err := m.companyDetail(ctx, tx, c)
			if err != nil {
				return err
			}
			details = append(details, d)
		}
		return nil
	})
	return details, err
}

// CompanyHistory returns the full price series of a company, oldest first.
func (m *Market) CompanyHistory(ctx context.Context, id uuid.UUID) ([]models.SharePrice, error) {
	var history []models.SharePrice
	err := m.store.View(ctx, func(tx Tx) error {
		if _, err := tx.Company(ctx, id); err != nil {
			return err
		}
		var err error
		history, err = tx.PriceHistory(ctx, id)
		return err
	})
	return history, err
}

// UserHoldings returns the user's positions valued at the latest prices.
func (m *Market) UserHoldings(ctx context.Context, userID uuid.UUID) ([]Holding, error) {
	var holdings []Holding
	err := m.store.View(ctx, func(tx Tx) error {
		if _, err := tx.User(ctx, userID); err != nil {
			return err
		}
		var err error
		holdings, err = userHoldings(ctx, tx, userID)
		return err
	})
	return holdings, err
}

// Users returns every player with their balance and share value.
func (m *Market) Users(ctx context.Context) ([]UserSummary, error) {
	var summaries []UserSummary
	err := m.store.View(ctx, func(tx Tx) error {
		users, err := tx.Users(ctx)
		if err != nil {
			return err
		}
		summaries = make([]UserSummary, 0, len(users))
		for _, u := range users {
			s, err := summarize(ctx, tx, u)
			if err != nil {
				return err
			}
			summaries = append(summaries, s)
		}
		return nil
	})
	return summaries, err
}

// UserProfile returns a player's summary and holdings by username.
func (m *Market) UserProfile(ctx context.Context, username string) (UserProfile, error) {
	var profile UserProfile
	err := m.store.View(ctx, func(tx Tx) error {
		u, err := tx.UserByUsername(ctx, username)
		if err != nil {
			return err
		}
		if profile.UserSummary, err = summarize(ctx, tx, u); err != nil {
			return err
		}
		profile.Holdings, err = userHoldings(ctx, tx, u.ID)
		return err
	})
	return profile, err
}

func quote(ctx context.Context, tx Tx, c models.Company) (Quote, error) {
	latest, previous, err := latestTwoPrices(ctx, tx, c.ID)
	if err != nil {
		return Quote{}, err
	}
	change, percent := priceChange(latest, previous)
	return Quote{
		ID:            c.ID,
		Name:          c.Name,
		Code:          c.Code,
		Price:         latest,
		Previous:      previous,
		Change:        change,
		PercentChange: percent,
		TotalShares:   c.TotalShares,
		DividendRate:  c.DividendRate,
	}, nil
}

func (m *Market) companyDetail(ctx context.Context, tx Tx, c models.Company) (CompanyDetail, error) {
	q, err := quote(ctx, tx, c)
	if err != nil {
		return CompanyDetail{}, err
	}
	q.PercentChange = q.PercentChange.Round(2)

	recent, err := tx.LatestPrices(ctx, c.ID, chartDays)
	if err != nil {
		return CompanyDetail{}, err
	}
	points := make([]PricePoint, len(recent))
	for i, p := range recent {
		// recent is newest first; the chart reads left to right.
		points[len(recent)-1-i] = PricePoint{
			Day:   p.Day,
			Date:  m.startDate.AddDate(0, 0, int(p.Day)).Format("02 Jan"),
			Price: p.Price,
		}
	}

	shares, err := shareBreakdown(ctx, tx, c)
	if err != nil {
		return CompanyDetail{}, err
	}
	return CompanyDetail{Quote: q, Prices: points, Shares: shares}, nil
}

func shareBreakdown(ctx context.Context, tx Tx, c models.Company) ([]ShareSlice, error) {
	owners, err := tx.CompanyOwnerships(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	var held int64
	players := make([]ShareSlice, 0, len(owners))
	for _, own := range owners {
		u, err := tx.User(ctx, own.UserID)
		if err != nil {
			return nil, err
		}
		slice := ShareSlice{
			Owner:     u.DisplayOwner(),
			OwnerName: u.Name,
			Color:     u.Color,
			Shares:    own.SharesOwned,
			IsUser:    true,
		}
		if u.OwnCompany != nil && *u.OwnCompany != "" {
			slice.OwnerUsername = u.Username
		}
		players = append(players, slice)
		held += own.SharesOwned
	}

	slices := []ShareSlice{
		{Owner: GovernmentHolder, Color: GovernmentColor, Shares: c.GovShares},
		{Owner: InsiderHolder, Color: InsiderColor, Shares: c.InsiderShares},
		{Owner: IPOHolder, Color: IPOColor, Shares: c.PublicShares() - held},
	}
	return append(slices, players...), nil
}

func userHoldings(ctx context.Context, tx Tx, userID uuid.UUID) ([]Holding, error) {
	owned, err := tx.UserOwnerships(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings := make([]Holding, 0, len(owned))
	for _, own := range owned {
		c, err := tx.Company(ctx, own.CompanyID)
		if err != nil {
			return nil, err
		}
		price, err := latestPrice(ctx, tx, c.ID)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, Holding{
			CompanyID: c.ID,
			Company:   c.Name,
			Code:      c.Code,
			Shares:    own.SharesOwned,
			Value:     price.Mul(decimal.NewFromInt(own.SharesOwned)),
		})
	}
	return holdings, nil
}

func summarize(ctx context.Context, tx Tx, u models.User) (UserSummary, error) {
	inShares, err := portfolioValue(ctx, tx, u.ID)
	if err != nil {
		return UserSummary{}, err
	}
	return UserSummary{
		ID:         u.ID,
		Username:   u.Username,
		Name:       u.Name,
		Color:      u.Color,
		OwnCompany: u.OwnCompany,
		Balance:    u.Balance,
		InShares:   inShares,
	}, nil
}
