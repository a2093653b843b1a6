package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/lutinex/internal/auth"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/metrics"
	"github.com/xtrntr/lutinex/internal/models"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Market      *market.Market
	AuthService *auth.AuthService
	Hub         *Hub
	CronSecret  string

	limiter *RateLimiter
	log     logrus.FieldLogger
}

// Config holds the HTTP settings that are not dependencies
type Config struct {
	CronSecret string
	TradeRate  float64 // trade requests per second per user
	TradeBurst int
}

// NewHandler creates a new handler
func NewHandler(m *market.Market, authService *auth.AuthService, hub *Hub, cfg Config, log logrus.FieldLogger) *Handler {
	if cfg.TradeRate <= 0 {
		cfg.TradeRate = 5
	}
	if cfg.TradeBurst <= 0 {
		cfg.TradeBurst = 10
	}
	return &Handler{
		Market:      m,
		AuthService: authService,
		Hub:         hub,
		CronSecret:  cfg.CronSecret,
		limiter:     NewRateLimiter(cfg.TradeRate, cfg.TradeBurst, log),
		log:         log,
	}
}

// Routes builds the router. Extra middleware, such as CORS, runs before
// routing.
func (h *Handler) Routes(mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer, metrics.InstrumentHandler)
	r.Use(mw...)

	r.Get("/", h.Home)
	r.Get("/companies", h.GetCompanies)
	r.Get("/company/{id}", h.GetCompany)
	r.Get("/company/{id}/history", h.GetCompanyHistory)
	r.Get("/stocks", h.GetStocks)
	r.Get("/users", h.GetUsers)
	r.Get("/user/{username}", h.GetUser)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/stock-update", h.StockUpdate)
	r.Handle("/metrics", metrics.Handler())
	if h.Hub != nil {
		r.Handle("/ws", h.Hub)
	}

	// Protected endpoints (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(h.JWTAuthMiddleware)
		r.Patch("/auth/update", h.UpdateProfile)
		r.Get("/holdings", h.GetHoldings)

		r.Group(func(r chi.Router) {
			r.Use(h.limiter.Handler)
			r.Post("/stocks/buy", h.Buy)
			r.Post("/stocks/sell", h.Sell)
		})
	})
	return r
}

// Home answers a liveness probe
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Connected to Lutinex API"})
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Color    string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.AuthService.Register(r.Context(), auth.Registration{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Color:    req.Color,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"user":    accountView(user),
	})
}

// Login handles user login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, user, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  accountView(user),
	})
}

// UpdateProfile changes the caller's name, color or company marker. A null
// own_company clears it.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, _ := userFromContext(r.Context())

	var req map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var update models.ProfileUpdate
	fields := map[string]**string{"name": &update.Name, "color": &update.Color, "own_company": &update.OwnCompany}
	for key, dst := range fields {
		raw, ok := req[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", key))
			return
		}
	}
	if _, ok := req["own_company"]; ok && (update.OwnCompany == nil || *update.OwnCompany == "") {
		update.OwnCompany = nil
		update.ClearOwnCompany = true
	}

	user, err := h.AuthService.UpdateProfile(r.Context(), caller.ID, update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User updated successfully",
		"user":    accountView(user),
	})
}

type tradeRequest struct {
	CompanyID string `json:"company_id"`
	Shares    int64  `json:"shares"`
}

func decodeTrade(r *http.Request) (uuid.UUID, int64, error) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return uuid.Nil, 0, fmt.Errorf("%w: invalid request body", market.ErrValidation)
	}
	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("company %q: %w", req.CompanyID, market.ErrNotFound)
	}
	return companyID, req.Shares, nil
}

// Buy purchases shares for the caller
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	caller, _ := userFromContext(r.Context())
	companyID, shares, err := decodeTrade(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	balance, err := h.Market.Buy(r.Context(), caller.ID, companyID, shares)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Bought %d shares", shares),
		"balance": money(balance),
	})
}

// Sell sells shares for the caller
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	caller, _ := userFromContext(r.Context())
	companyID, shares, err := decodeTrade(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	balance, err := h.Market.Sell(r.Context(), caller.ID, companyID, shares)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Sold %d shares", shares),
		"balance": money(balance),
	})
}

// StockUpdate advances the market by one day. It is meant for an external
// scheduler presenting the cron secret.
func (h *Handler) StockUpdate(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-CRON-KEY")
	if h.CronSecret == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.CronSecret)) != 1 {
		writeMessage(w, http.StatusForbidden, "Unauthorized")
		return
	}

	report, err := h.Market.AdvanceDay(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.Hub != nil {
		h.Hub.Publish(r.Context())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Share prices updated successfully",
		"day":       report.Day,
		"companies": len(report.Prices),
		"dividends": money(report.Dividends.Total),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors to HTTP statuses. Unexpected errors are
// logged and hidden from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrUsernameTaken):
		writeMessage(w, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, market.ErrValidation),
		errors.Is(err, market.ErrInsufficientFunds),
		errors.Is(err, market.ErrInsufficientShares):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrConflict):
		writeMessage(w, http.StatusConflict, "Concurrent update, please retry")
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
