package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUsernameTaken is returned when registering a username that exists.
var ErrUsernameTaken = errors.New("username already taken")

// User represents a registered player
type User struct {
	ID           uuid.UUID
	Name         string
	Username     string
	PasswordHash string
	OwnCompany   *string         // company the player represents, if any
	Color        string          // "#rrggbb"
	Balance      decimal.Decimal // never negative
	CreatedAt    time.Time
}

// DisplayOwner returns the label used for the player in share breakdowns.
func (u User) DisplayOwner() string {
	if u.OwnCompany != nil && *u.OwnCompany != "" {
		return *u.OwnCompany
	}
	return u.Name
}

// ProfileUpdate lists the profile fields a player may change. Nil fields are
// left untouched; ClearOwnCompany removes the company marker.
type ProfileUpdate struct {
	Name            *string
	Color           *string
	OwnCompany      *string
	ClearOwnCompany bool
}

// Company represents a listed company
type Company struct {
	ID            uuid.UUID
	Name          string
	Code          string // ticker, unique
	TotalShares   int64
	FloatShares   int64 // shares available to the public market
	InsiderShares int64
	GovShares     int64
	DividendRate  decimal.Decimal // percent of the share price paid per distribution
}

// PublicShares returns the float left for players once insider and
// government holdings are taken out.
func (c Company) PublicShares() int64 {
	return c.FloatShares - c.InsiderShares - c.GovShares
}

// SharePrice is one point of a company's daily price series
type SharePrice struct {
	CompanyID uuid.UUID       `json:"company_id"`
	Day       int64           `json:"day"`
	Price     decimal.Decimal `json:"price"`
}

// Ownership is a player's current stake in a company
type Ownership struct {
	UserID      uuid.UUID
	CompanyID   uuid.UUID
	Day         int64 // simulated day of first acquisition
	SharesOwned int64 // always > 0; empty positions are deleted
}
