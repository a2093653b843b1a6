package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/lutinex/internal/api"
	"github.com/xtrntr/lutinex/internal/auth"
	"github.com/xtrntr/lutinex/internal/config"
	"github.com/xtrntr/lutinex/internal/db"
	"github.com/xtrntr/lutinex/internal/logging"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/memstore"
	"github.com/xtrntr/lutinex/internal/scheduler"
	"github.com/xtrntr/lutinex/internal/seed"
)

// ledger is what the server needs from a store
type ledger interface {
	market.Store
	auth.UserStore
	seed.Companies
}

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// run sets up the ledger, market, and HTTP server and blocks until a signal
// arrives.
func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	m := market.New(store,
		market.WithWalk(market.Walk{Step: cfg.WalkStep, Scale: cfg.WalkScale}),
		market.WithStartDate(cfg.Start()),
		market.WithLogger(log.WithField("component", "market")),
	)

	authService := auth.NewAuthService(store, auth.Config{
		Secret:          []byte(cfg.SecretKey),
		TokenTTL:        cfg.TokenTTL,
		StartingBalance: cfg.StartingBalance,
		CacheSize:       cfg.CacheSize,
		CacheTTL:        cfg.CacheTTL,
	})

	if cfg.SeedDemo {
		res, err := seed.Demo(ctx, store, authService, log.WithField("component", "seed"))
		if err != nil {
			return fmt.Errorf("seed demo game: %w", err)
		}
		log.WithFields(logrus.Fields{"companies": res.Companies, "players": res.Players}).Info("demo game seeded")
	}

	hub := api.NewHub(m, cfg.CORSOrigins, log.WithField("component", "ws"))
	defer hub.Close()
	go hub.Run(ctx, cfg.BroadcastInterval)

	if cfg.AdvanceSchedule != "" {
		sched := scheduler.New(m, log.WithField("component", "scheduler"),
			scheduler.OnAdvance(func(ctx context.Context, _ market.DayReport) { hub.Publish(ctx) }),
		)
		if err := sched.Schedule(cfg.AdvanceSchedule); err != nil {
			return fmt.Errorf("schedule day advance: %w", err)
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
		log.WithField("schedule", cfg.AdvanceSchedule).Info("day advance scheduled")
	}

	handler := api.NewHandler(m, authService, hub, api.Config{
		CronSecret: cfg.CronSecret,
		TradeRate:  cfg.TradeRate,
		TradeBurst: cfg.TradeBurst,
	}, log.WithField("component", "api"))

	router := handler.Routes(cors.Handler(corsOptions(cfg.CORSOrigins)))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openLedger(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (ledger, func(), error) {
	if cfg.Ledger == config.LedgerMemory {
		log.Warn("using the in-memory ledger; state is lost on restart")
		return memstore.New(), func() {}, nil
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
	}
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return database, func() { database.Close(context.Background()) }, nil
}

// corsOptions allows the browser client to call the API. Tokens travel in the
// Authorization header, so no cookies are shared across origins.
func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CRON-KEY"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}
}
