package api

import (
	"github.com/shopspring/decimal"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/models"
)

// JSON shapes served to the frontend. Money goes out as plain numbers.

type listingJSON struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Code          string  `json:"code"`
	LatestPrice   float64 `json:"latest_price"`
	PreviousPrice float64 `json:"previous_price"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
	TotalShares   int64   `json:"total_shares"`
	Dividends     float64 `json:"dividends"`
}

type companyJSON struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Code          string  `json:"code"`
	Price         float64 `json:"price"`
	PreviousPrice float64 `json:"previous_price"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
	TotalShares   int64   `json:"total_shares"`
	Dividends     float64 `json:"dividends"`
}

type pricePointJSON struct {
	Day   int64   `json:"day"`
	Date  string  `json:"date,omitempty"`
	Price float64 `json:"price"`
}

type shareSliceJSON struct {
	Owner         string  `json:"owner"`
	OwnerName     *string `json:"owner_name,omitempty"`
	OwnerUsername *string `json:"owner_username,omitempty"`
	Color         string  `json:"color"`
	Shares        int64   `json:"shares"`
	IsUser        bool    `json:"is_user"`
}

type companyDetailJSON struct {
	Company    companyJSON      `json:"company"`
	PriceData  []pricePointJSON `json:"price_data"`
	SharesData []shareSliceJSON `json:"shares_data"`
}

type holdingJSON struct {
	CompanyID    string  `json:"company_id"`
	Company      string  `json:"company"`
	Code         string  `json:"code"`
	SharesOwned  int64   `json:"shares_owned"`
	CurrentValue float64 `json:"current_value"`
}

type userJSON struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	OwnCompany *string `json:"own_company"`
	Balance    float64 `json:"balance"`
	InShares   float64 `json:"in_shares"`
}

type accountJSON struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	OwnCompany *string `json:"own_company"`
	Balance    float64 `json:"balance"`
}

type profileJSON struct {
	userJSON
	Stocks []holdingJSON `json:"stocks"`
}

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func listingView(q market.Quote) listingJSON {
	return listingJSON{
		ID:            q.ID.String(),
		Name:          q.Name,
		Code:          q.Code,
		LatestPrice:   money(q.Price),
		PreviousPrice: money(q.Previous),
		Change:        money(q.Change),
		PercentChange: money(q.PercentChange),
		TotalShares:   q.TotalShares,
		Dividends:     money(q.DividendRate),
	}
}

func listingViews(quotes []market.Quote) []listingJSON {
	out := make([]listingJSON, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, listingView(q))
	}
	return out
}

func companyDetailView(d market.CompanyDetail) companyDetailJSON {
	q := d.Quote
	out := companyDetailJSON{
		Company: companyJSON{
			ID:            q.ID.String(),
			Name:          q.Name,
			Code:          q.Code,
			Price:         money(q.Price),
			PreviousPrice: money(q.Previous),
			Change:        money(q.Change),
			PercentChange: money(q.PercentChange),
			TotalShares:   q.TotalShares,
			Dividends:     money(q.DividendRate),
		},
		PriceData:  make([]pricePointJSON, 0, len(d.Prices)),
		SharesData: make([]shareSliceJSON, 0, len(d.Shares)),
	}
	for _, p := range d.Prices {
		out.PriceData = append(out.PriceData, pricePointJSON{Day: p.Day, Date: p.Date, Price: money(p.Price)})
	}
	for _, s := range d.Shares {
		out.SharesData = append(out.SharesData, shareSliceJSON{
			Owner:         s.Owner,
			OwnerName:     optional(s.OwnerName),
			OwnerUsername: optional(s.OwnerUsername),
			Color:         s.Color,
			Shares:        s.Shares,
			IsUser:        s.IsUser,
		})
	}
	return out
}

func historyView(prices []models.SharePrice) []pricePointJSON {
	out := make([]pricePointJSON, 0, len(prices))
	for _, p := range prices {
		out = append(out, pricePointJSON{Day: p.Day, Price: money(p.Price)})
	}
	return out
}

func holdingViews(holdings []market.Holding) []holdingJSON {
	out := make([]holdingJSON, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, holdingJSON{
			CompanyID:    h.CompanyID.String(),
			Company:      h.Company,
			Code:         h.Code,
			SharesOwned:  h.Shares,
			CurrentValue: money(h.Value),
		})
	}
	return out
}

func userView(s market.UserSummary) userJSON {
	return userJSON{
		ID:         s.ID.String(),
		Username:   s.Username,
		Name:       s.Name,
		Color:      s.Color,
		OwnCompany: s.OwnCompany,
		Balance:    money(s.Balance),
		InShares:   money(s.InShares),
	}
}

func accountView(u models.User) accountJSON {
	return accountJSON{
		ID:         u.ID.String(),
		Username:   u.Username,
		Name:       u.Name,
		Color:      u.Color,
		OwnCompany: u.OwnCompany,
		Balance:    money(u.Balance),
	}
}
