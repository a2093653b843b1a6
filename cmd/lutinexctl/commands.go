package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/xtrntr/lutinex/internal/auth"
	"github.com/xtrntr/lutinex/internal/db"
	"github.com/xtrntr/lutinex/internal/scheduler"
	"github.com/xtrntr/lutinex/internal/seed"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending schema migrations" }
func (*migrateCmd) Usage() string {
	return `lutinexctl migrate

  Applies every pending migration to DATABASE_URL.
`
}

func (*migrateCmd) SetFlags(f *flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg, log, err := loadEnv()
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	log.Info("migrations applied")
	return subcommands.ExitSuccess
}

type seedCmd struct{}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "list the demo companies and register the demo players" }
func (*seedCmd) Usage() string {
	return `lutinexctl seed

  Creates the demo companies with their IPO prices and the demo players.
  Companies and players that already exist are left alone.
`
}

func (*seedCmd) SetFlags(f *flag.FlagSet) {}

func (*seedCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e, err := connect(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.close()

	authService := auth.NewAuthService(e.db, auth.Config{
		Secret:          []byte(e.cfg.SecretKey),
		StartingBalance: e.cfg.StartingBalance,
	})
	res, err := seed.Demo(ctx, e.db, authService, e.log)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Created %d companies and %d players.\n", res.Companies, res.Players)
	return subcommands.ExitSuccess
}

type advanceCmd struct {
	days int
}

func (*advanceCmd) Name() string     { return "advance" }
func (*advanceCmd) Synopsis() string { return "advance the market by one or more days" }
func (*advanceCmd) Usage() string {
	return `lutinexctl advance [-n <days>]

  Moves every listed company to the next day's price and pays the dividends
  on the new prices, once per day.
`
}

func (c *advanceCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "n", 1, "number of days to advance")
}

func (c *advanceCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.days < 1 {
		fail(fmt.Errorf("-n must be at least 1, got %d", c.days))
		return subcommands.ExitUsageError
	}
	e, err := connect(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.close()

	sched := scheduler.New(e.market(), e.log)
	for i := 0; i < c.days; i++ {
		report, err := sched.RunOnce(ctx)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Day %d: %d prices, %s paid in dividends to %d players.\n",
			report.Day, len(report.Prices), report.Dividends.Total.StringFixed(2), report.Dividends.Payouts)
	}
	return subcommands.ExitSuccess
}

type payDividendsCmd struct{}

func (*payDividendsCmd) Name() string     { return "pay-dividends" }
func (*payDividendsCmd) Synopsis() string { return "pay one round of dividends at the latest prices" }
func (*payDividendsCmd) Usage() string {
	return `lutinexctl pay-dividends

  Credits every shareholder with shares * latest price * rate / 100 without
  moving prices.
`
}

func (*payDividendsCmd) SetFlags(f *flag.FlagSet) {}

func (*payDividendsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e, err := connect(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.close()

	report, err := scheduler.New(e.market(), e.log).PayOnce(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Paid %s to %d players.\n", report.Total.StringFixed(2), report.Payouts)
	return subcommands.ExitSuccess
}
