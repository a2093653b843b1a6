// Package memstore is an in-memory market ledger. Update transactions are
// serialized and applied to a copy of the state that replaces the live one
// only when the transaction succeeds.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/models"
)

var errReadOnly = errors.New("memstore: write in read-only transaction")

type positionKey struct {
	user    uuid.UUID
	company uuid.UUID
}

type state struct {
	users     map[uuid.UUID]models.User
	companies map[uuid.UUID]models.Company
	prices    map[uuid.UUID][]models.SharePrice // ascending by day
	positions map[positionKey]models.Ownership
}

func newState() *state {
	return &state{
		users:     make(map[uuid.UUID]models.User),
		companies: make(map[uuid.UUID]models.Company),
		prices:    make(map[uuid.UUID][]models.SharePrice),
		positions: make(map[positionKey]models.Ownership),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.prices {
		c.prices[k] = append([]models.SharePrice(nil), v...)
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	return c
}

// Store is an in-memory implementation of market.Store.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// Update runs fn against a private copy of the state and publishes the copy
// if fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(tx market.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	if err := fn(&ledgerTx{st: next}); err != nil {
		return err
	}
	s.st = next
	return nil
}

// View runs fn against the current state. Writes fail.
func (s *Store) View(ctx context.Context, fn func(tx market.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&ledgerTx{st: s.st, readOnly: true})
}

type ledgerTx struct {
	st       *state
	readOnly bool
}

func (t *ledgerTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *ledgerTx) Companies(ctx context.Context) ([]models.Company, error) {
	companies := make([]models.Company, 0, len(t.st.companies))
	for _, c := range t.st.companies {
		companies = append(companies, c)
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].Code < companies[j].Code })
	return companies, nil
}

func (t *ledgerTx) Company(ctx context.Context, id uuid.UUID) (models.Company, error) {
	c, ok := t.st.companies[id]
	if !ok {
		return c, fmt.Errorf("company %s: %w", id, market.ErrNotFound)
	}
	return c, nil
}

func (t *ledgerTx) Users(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0, len(t.st.users))
	for _, u := range t.st.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (t *ledgerTx) User(ctx context.Context, id uuid.UUID) (models.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return u, fmt.Errorf("user %s: %w", id, market.ErrNotFound)
	}
	return u, nil
}

func (t *ledgerTx) UserByUsername(ctx context.Context, username string) (models.User, error) {
	for _, u := range t.st.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("user %q: %w", username, market.ErrNotFound)
}

func (t *ledgerTx) LatestPrices(ctx context.Context, companyID uuid.UUID, limit int) ([]models.SharePrice, error) {
	series := t.st.prices[companyID]
	var latest []models.SharePrice
	for i := len(series) - 1; i >= 0 && len(latest) < limit; i-- {
		latest = append(latest, series[i])
	}
	return latest, nil
}

func (t *ledgerTx) PriceHistory(ctx context.Context, companyID uuid.UUID) ([]models.SharePrice, error) {
	return append([]models.SharePrice(nil), t.st.prices[companyID]...), nil
}

func (t *ledgerTx) CurrentDay(ctx context.Context) (int64, error) {
	var day int64
	for _, series := range t.st.prices {
		if n := len(series); n > 0 && series[n-1].Day > day {
			day = series[n-1].Day
		}
	}
	return day, nil
}

func (t *ledgerTx) AppendPrice(ctx context.Context, p models.SharePrice) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.companies[p.CompanyID]; !ok {
		return fmt.Errorf("company %s: %w", p.CompanyID, market.ErrNotFound)
	}
	series := t.st.prices[p.CompanyID]
	next := int64(0)
	if n := len(series); n > 0 {
		next = series[n-1].Day + 1
	}
	if p.Day != next {
		return fmt.Errorf("memstore: price for day %d, expected day %d", p.Day, next)
	}
	t.st.prices[p.CompanyID] = append(series, p)
	return nil
}

func (t *ledgerTx) CompanyOwnerships(ctx context.Context, companyID uuid.UUID) ([]models.Ownership, error) {
	var owned []models.Ownership
	for k, o := range t.st.positions {
		if k.company == companyID {
			owned = append(owned, o)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].SharesOwned != owned[j].SharesOwned {
			return owned[i].SharesOwned > owned[j].SharesOwned
		}
		return owned[i].UserID.String() < owned[j].UserID.String()
	})
	return owned, nil
}

func (t *ledgerTx) UserOwnerships(ctx context.Context, userID uuid.UUID) ([]models.Ownership, error) {
	var owned []models.Ownership
	for k, o := range t.st.positions {
		if k.user == userID {
			owned = append(owned, o)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return t.st.companies[owned[i].CompanyID].Code < t.st.companies[owned[j].CompanyID].Code
	})
	return owned, nil
}

func (t *ledgerTx) SharesHeld(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var held int64
	for k, o := range t.st.positions {
		if k.company == companyID {
			held += o.SharesOwned
		}
	}
	return held, nil
}

func (t *ledgerTx) AddShares(ctx context.Context, userID, companyID uuid.UUID, quantity, day int64) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", market.ErrValidation)
	}
	k := positionKey{user: userID, company: companyID}
	o, ok := t.st.positions[k]
	if !ok {
		o = models.Ownership{UserID: userID, CompanyID: companyID, Day: day}
	}
	o.SharesOwned += quantity
	t.st.positions[k] = o
	return o.SharesOwned, nil
}

func (t *ledgerTx) RemoveShares(ctx context.Context, userID, companyID uuid.UUID, quantity int64) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	k := positionKey{user: userID, company: companyID}
	o, ok := t.st.positions[k]
	if !ok || o.SharesOwned < quantity {
		return 0, fmt.Errorf("%w: cannot sell %d shares", market.ErrInsufficientShares, quantity)
	}
	o.SharesOwned -= quantity
	if o.SharesOwned == 0 {
		delete(t.st.positions, k)
		return 0, nil
	}
	t.st.positions[k] = o
	return o.SharesOwned, nil
}

func (t *ledgerTx) CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := t.writable(); err != nil {
		return decimal.Zero, err
	}
	u, err := t.User(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	u.Balance = u.Balance.Add(amount)
	t.st.users[userID] = u
	return u.Balance, nil
}

func (t *ledgerTx) DebitBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := t.writable(); err != nil {
		return decimal.Zero, err
	}
	u, err := t.User(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if u.Balance.LessThan(amount) {
		return u.Balance, fmt.Errorf("%w: %s needed", market.ErrInsufficientFunds, amount.StringFixed(2))
	}
	u.Balance = u.Balance.Sub(amount)
	t.st.users[userID] = u
	return u.Balance, nil
}
