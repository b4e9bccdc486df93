// Package persistence selects and opens the configured storage backend.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/cohort-metrics/config"
	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/cohort-metrics/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/cohort-metrics/pkg/logger"
	"github.com/alem-hub/cohort-metrics/pkg/retry"
)

// Stores bundles the repositories of one backend.
type Stores struct {
	Driver     string
	Sessions   session.Repository
	Objectives objective.Repository
	Centers    center.Repository

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks the backend is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the backend.
func (s *Stores) Close() error {
	return s.close()
}

// Open connects to the backend named by cfg.Driver. PostgreSQL is retried
// while it comes up and migrated when cfg.AutoMigrate is set; SQLite always
// applies its embedded schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Stores, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("storage"), logger.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, log)
	case config.DriverSQLite:
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("persistence: unknown driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Stores, error) {
	opts := postgres.DefaultOptions()
	opts.MaxConns = cfg.MaxConns
	opts.MinConns = cfg.MinConns
	opts.MaxConnLifetime = cfg.ConnMaxLifetime
	opts.MaxConnIdleTime = cfg.ConnMaxIdleTime
	opts.QueryTimeout = cfg.QueryTimeout

	var conn *postgres.Connection
	retrier := retry.StartupRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying",
			logger.Int("attempt", attempt), logger.Duration("delay", delay), logger.Err(err))
	})
	err := retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		conn, err = postgres.NewConnectionFromURL(ctx, cfg.URL, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info("database schema is up to date")
	}

	return &Stores{
		Driver:     config.DriverPostgres,
		Sessions:   postgres.NewSessionRepository(conn),
		Objectives: postgres.NewObjectiveRepository(conn),
		Centers:    postgres.NewCenterRepository(conn),
		ping:       conn.Ping,
		close: func() error {
			conn.Close()
			return nil
		},
	}, nil
}

func openSQLite(cfg config.DatabaseConfig, log *logger.Logger) (*Stores, error) {
	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	log.Info("sqlite store ready", logger.String("path", cfg.SQLitePath))

	return &Stores{
		Driver:     config.DriverSQLite,
		Sessions:   sqlite.NewSessionRepository(store),
		Objectives: sqlite.NewObjectiveRepository(store),
		Centers:    sqlite.NewCenterRepository(store),
		ping:       store.Ping,
		close:      store.Close,
	}, nil
}
