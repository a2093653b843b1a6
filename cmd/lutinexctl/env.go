package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/xtrntr/lutinex/internal/config"
	"github.com/xtrntr/lutinex/internal/db"
	"github.com/xtrntr/lutinex/internal/logging"
	"github.com/xtrntr/lutinex/internal/market"
)

// env is what every command starts from.
type env struct {
	cfg *config.Config
	log *logrus.Logger
	db  *db.DB
}

func loadEnv() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(*envFile)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Ledger != config.LedgerPostgres {
		return nil, nil, fmt.Errorf("lutinexctl works on the postgres ledger, LUTINEX_LEDGER is %q", cfg.Ledger)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// connect loads the configuration and opens the database.
func connect(ctx context.Context) (*env, error) {
	cfg, log, err := loadEnv()
	if err != nil {
		return nil, err
	}
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, db: database}, nil
}

func (e *env) close() {
	e.db.Close(context.Background())
}

func (e *env) market() *market.Market {
	return market.New(e.db,
		market.WithWalk(market.Walk{Step: e.cfg.WalkStep, Scale: e.cfg.WalkScale}),
		market.WithStartDate(e.cfg.Start()),
		market.WithLogger(e.log),
	)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
