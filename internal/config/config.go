// Package config loads the service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Ledger backends
const (
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

const dateLayout = "2006-01-02"

// Config holds every setting of the server and the admin CLI.
type Config struct {
	Addr        string `env:"LUTINEX_ADDR" envDefault:":8080"`
	Ledger      string `env:"LUTINEX_LEDGER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	AutoMigrate bool   `env:"LUTINEX_AUTO_MIGRATE" envDefault:"true"`
	SeedDemo    bool   `env:"LUTINEX_SEED_DEMO" envDefault:"false"`

	SecretKey  string        `env:"SECRET_KEY"`
	CronSecret string        `env:"CRON_SECRET"`
	TokenTTL   time.Duration `env:"LUTINEX_TOKEN_TTL" envDefault:"24h"`

	// AdvanceSchedule is a cron expression for the in-process day advance.
	// Empty leaves advancing to an external caller of /stock-update.
	AdvanceSchedule string          `env:"LUTINEX_ADVANCE_SCHEDULE" envDefault:"@midnight"`
	StartDate       string          `env:"LUTINEX_START_DATE" envDefault:"2025-09-01"`
	WalkStep        int64           `env:"LUTINEX_WALK_STEP" envDefault:"285"`
	WalkScale       int32           `env:"LUTINEX_WALK_SCALE" envDefault:"5"`
	StartingBalance decimal.Decimal `env:"LUTINEX_STARTING_BALANCE" envDefault:"0"`

	TradeRate  float64       `env:"LUTINEX_TRADE_RATE" envDefault:"5"`
	TradeBurst int           `env:"LUTINEX_TRADE_BURST" envDefault:"10"`
	CacheSize  int           `env:"LUTINEX_IDENTITY_CACHE_SIZE" envDefault:"1024"`
	CacheTTL   time.Duration `env:"LUTINEX_IDENTITY_CACHE_TTL" envDefault:"1m"`

	BroadcastInterval time.Duration `env:"LUTINEX_BROADCAST_INTERVAL" envDefault:"5s"`
	CORSOrigins       []string      `env:"LUTINEX_CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	LogLevel  string `env:"LUTINEX_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LUTINEX_LOG_FORMAT" envDefault:"json"`
}

// Load reads envFile, when it exists, and then the environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	switch c.Ledger {
	case LedgerPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres ledger")
		}
	case LedgerMemory:
	default:
		return fmt.Errorf("LUTINEX_LEDGER must be %q or %q, got %q", LedgerPostgres, LedgerMemory, c.Ledger)
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("LUTINEX_TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}

	if c.AdvanceSchedule != "" {
		if _, err := cron.ParseStandard(c.AdvanceSchedule); err != nil {
			return fmt.Errorf("LUTINEX_ADVANCE_SCHEDULE: %w", err)
		}
	}
	if _, err := time.Parse(dateLayout, c.StartDate); err != nil {
		return fmt.Errorf("LUTINEX_START_DATE must look like 2025-09-01: %w", err)
	}
	if c.WalkStep < 0 {
		return fmt.Errorf("LUTINEX_WALK_STEP must be >= 0, got %d", c.WalkStep)
	}
	if c.WalkScale < 0 || c.WalkScale > 18 {
		return fmt.Errorf("LUTINEX_WALK_SCALE must be between 0 and 18, got %d", c.WalkScale)
	}
	if c.StartingBalance.IsNegative() {
		return fmt.Errorf("LUTINEX_STARTING_BALANCE must be >= 0, got %s", c.StartingBalance)
	}

	if c.TradeRate <= 0 {
		return fmt.Errorf("LUTINEX_TRADE_RATE must be positive, got %g", c.TradeRate)
	}
	if c.TradeBurst < 1 {
		return fmt.Errorf("LUTINEX_TRADE_BURST must be >= 1, got %d", c.TradeBurst)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("LUTINEX_IDENTITY_CACHE_SIZE must be >= 1, got %d", c.CacheSize)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("LUTINEX_IDENTITY_CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.BroadcastInterval <= 0 {
		return fmt.Errorf("LUTINEX_BROADCAST_INTERVAL must be positive, got %s", c.BroadcastInterval)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LUTINEX_LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LUTINEX_LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// ValidateServer runs Validate and also checks what only the HTTP server
// needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}
	return nil
}

// Start returns the calendar date of day 0.
func (c *Config) Start() time.Time {
	t, _ := time.Parse(dateLayout, c.StartDate)
	return t
}
