package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/xtrntr/lutinex/internal/market"
)

func companyIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("company %q: %w", raw, market.ErrNotFound)
	}
	return id, nil
}

// GetCompanies lists every company with its price movement
func (h *Handler) GetCompanies(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.Market.Companies(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listingViews(quotes))
}

// GetCompany returns one company page
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := companyIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	detail, err := h.Market.Company(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companyDetailView(detail))
}

// GetCompanyHistory returns the full price series of a company
func (h *Handler) GetCompanyHistory(w http.ResponseWriter, r *http.Request) {
	id, err := companyIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	history, err := h.Market.CompanyHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyView(history))
}

// GetStocks returns every company page
func (h *Handler) GetStocks(w http.ResponseWriter, r *http.Request) {
	details, err := h.Market.Stocks(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]companyDetailJSON, 0, len(details))
	for _, d := range details {
		out = append(out, companyDetailView(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetUsers returns the leaderboard
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Market.Users(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]userJSON, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, userView(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetUser returns a player page by username
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Market.UserProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileJSON{
		userJSON: userView(profile.UserSummary),
		Stocks:   holdingViews(profile.Holdings),
	})
}

// GetHoldings returns the caller's positions
func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	caller, _ := userFromContext(r.Context())
	holdings, err := h.Market.UserHoldings(r.Context(), caller.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, holdingViews(holdings))
}
