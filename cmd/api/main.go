// Package main - точка входа HTTP API сервиса метрик когорт.
//
// API принимает записи сессий, годовые цели и справочник центров и отдаёт
// сводки по трекам: по центру, по департаменту и глобально. Все метрики
// считаются по запросу из хранилища; Redis (опционально) кэширует агрегаты.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alem-hub/cohort-metrics/config"
	"github.com/alem-hub/cohort-metrics/internal/application/command"
	"github.com/alem-hub/cohort-metrics/internal/application/query"
	"github.com/alem-hub/cohort-metrics/internal/domain/attainment"
	"github.com/alem-hub/cohort-metrics/internal/infrastructure/persistence"
	"github.com/alem-hub/cohort-metrics/internal/infrastructure/persistence/redis"
	httpapi "github.com/alem-hub/cohort-metrics/internal/interface/http"
	"github.com/alem-hub/cohort-metrics/internal/interface/http/handlers"
	"github.com/alem-hub/cohort-metrics/pkg/circuitbreaker"
	"github.com/alem-hub/cohort-metrics/pkg/logger"
	"github.com/alem-hub/cohort-metrics/pkg/retry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddCaller: true,
	}).With(logger.String("service", cfg.App.Name), logger.String("version", cfg.App.Version))
	defer func() { _ = log.Sync() }()

	log.Info("starting cohort metrics API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("driver", cfg.Database.Driver),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (PostgreSQL или SQLite)
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := persistence.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing storage")
		if err := stores.Close(); err != nil {
			log.Warn("storage close failed", logger.Err(err))
		}
	}()

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.NewDatabaseCheck(stores))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. КЭШ АГРЕГАТОВ (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var cache attainment.AggregateCache
	if cfg.Redis.Enabled {
		rc, err := connectRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		} else {
			defer func() { _ = rc.Close() }()
			breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()))
			})
			cache = redis.NewGuardedAggregateCache(redis.NewAggregateCache(rc), breaker, cfg.Engine.AggregateCacheTTL)
			health.AddCheck("cache", handlers.NewCacheCheck(rc))
			log.Info("aggregate cache enabled", logger.Duration("ttl", cfg.Engine.AggregateCacheTTL))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ДВИЖОК И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	engineOpts := []query.EngineOption{query.WithLogger(log.With(logger.Component("engine")))}
	if cache != nil {
		engineOpts = append(engineOpts, query.WithAggregateCache(cache, cfg.Engine.AggregateCacheTTL))
	}
	engine := query.NewEngine(stores.Sessions, stores.Objectives, stores.Centers, engineOpts...)

	cmdLog := log.With(logger.Component("command"))
	deps := httpapi.Dependencies{
		Engine:         engine,
		ListSessions:   query.NewListSessionsHandler(stores.Sessions),
		RecordSession:  command.NewRecordSessionHandler(stores.Sessions, cache, cmdLog),
		SetObjective:   command.NewSetObjectiveHandler(stores.Objectives, cmdLog),
		RegisterCenter: command.NewRegisterCenterHandler(stores.Centers, cmdLog),
		RemoveCenter:   command.NewRemoveCenterHandler(stores.Centers, cache, cmdLog),
		HealthChecker:  health,
		Logger:         log.With(logger.Component("http")),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout

	server := httpapi.NewServer(serverCfg, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return err
		}
		return errors.New("http server stopped unexpectedly")
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// connectRedis dials Redis, retrying while it comes up.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Cache, error) {
	rcfg := redis.DefaultConfig()
	rcfg.Host = cfg.Host
	rcfg.Port = cfg.Port
	rcfg.Password = cfg.Password
	rcfg.DB = cfg.DB
	rcfg.PoolSize = cfg.PoolSize
	rcfg.MinIdleConns = cfg.MinIdleConns
	rcfg.DialTimeout = cfg.DialTimeout
	rcfg.ReadTimeout = cfg.ReadTimeout
	rcfg.WriteTimeout = cfg.WriteTimeout

	return retry.DoWithData(ctx, func(context.Context) (*redis.Cache, error) {
		return redis.NewCache(rcfg)
	},
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("redis not ready, retrying",
				logger.Int("attempt", attempt), logger.Duration("delay", delay), logger.Err(err))
		}),
	)
}
