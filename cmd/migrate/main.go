package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
	"github.com/davidleathers/fraud-scoring-service/migrations"
)

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath, "Path to configuration file")
		database   = flag.String("database", "", "Postgres URL (defaults to storage.postgres.url)")
		action     = flag.String("action", "up", "Migration action: up, down, version, force")
		steps      = flag.Int("steps", 0, "Number of migrations to apply or roll back (0 = all)")
		version    = flag.Int("version", -1, "Version to force (force action only)")
	)
	flag.Parse()

	url := *database
	if url == "" {
		cfg, err := config.LoadFile(*configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		url = cfg.Storage.Postgres.URL
	}
	if url == "" {
		slog.Error("no database url: set -database or storage.postgres.url")
		os.Exit(1)
	}

	m, err := migrations.New(url)
	if err != nil {
		slog.Error("failed to create migrator", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := runAction(m, *action, *steps, *version); err != nil {
		slog.Error("migration failed", "action", *action, "error", err)
		os.Exit(1)
	}
}

// Migrator is the subset of *migrate.Migrate the actions use
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
}

func runAction(m Migrator, action string, steps, forceVersion int) error {
	var err error
	switch action {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "force":
		if forceVersion < 0 {
			return errors.New("force requires -version")
		}
		err = m.Force(forceVersion)
	case "version":
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("no migrations to apply", "action", action)
		err = nil
	}
	if err != nil {
		return err
	}

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		slog.Info("database has no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("migration state", "version", v, "dirty", dirty)
	return nil
}
