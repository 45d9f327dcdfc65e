package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/config"
	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/platinummonkey/softwarehub/pkg/storage"
)

func main() {
	fixturePath := flag.String("fixture", "", "YAML fixture with users and softwares to create instead of the defaults")
	events := flag.Int("events", 0, "Number of test audit events to generate over the last 72h")
	bcryptCost := flag.Int("bcrypt-cost", 10, "bcrypt cost for seeded passwords")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall deadline")
	flag.Parse()

	logger := observability.NewLogger(observability.InfoLevel, os.Stdout).WithField("service", "softwarehub-seed")
	if err := run(logger, *fixturePath, *events, *bcryptCost, *timeout); err != nil {
		logger.WithError(err).Error("seed failed")
		os.Exit(1)
	}
}

func run(logger *observability.Logger, fixturePath string, events, bcryptCost int, timeout time.Duration) error {
	fixture := DefaultFixture()
	if fixturePath != "" {
		f, err := LoadFixture(fixturePath)
		if err != nil {
			return err
		}
		fixture = f
	}

	cfg, err := config.LoadStorageConfig()
	if err != nil {
		return err
	}
	cfg.AutoMigrate = true

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	seeder, err := NewSeeder(db, auth.NewPasswordHasher(bcryptCost), logger)
	if err != nil {
		return err
	}
	report, err := seeder.Apply(ctx, fixture, events)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"users_created":     report.UsersCreated,
		"users_skipped":     report.UsersSkipped,
		"softwares_created": report.SoftwaresCreated,
		"softwares_skipped": report.SoftwaresSkipped,
		"events_created":    report.EventsCreated,
	}).Info(fmt.Sprintf("seed complete on %s", cfg.Driver))
	return nil
}
