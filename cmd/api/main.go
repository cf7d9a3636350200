package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"scv_dedup_backend/internal/customers"
	"scv_dedup_backend/internal/events"
	apphttp "scv_dedup_backend/internal/http"
	"scv_dedup_backend/internal/http/router"
	"scv_dedup_backend/internal/ingest"
	"scv_dedup_backend/internal/livebook"
	"scv_dedup_backend/internal/offers"
	"scv_dedup_backend/migrations"
	"scv_dedup_backend/platform/config"
	"scv_dedup_backend/platform/db"
	"scv_dedup_backend/platform/logger"
	"scv_dedup_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules; the journal
	// consumes everything the engine publishes
	eventBus := events.NewInMemoryBus(log)
	events.SubscribeJournal(eventBus, log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Redis backs the live-book verdict cache
	redisOpt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		panic("failed to parse redis url: " + err.Error())
	}
	rdb := redis.NewClient(redisOpt)
	defer rdb.Close()

	checker := livebook.NewCachedChecker(
		livebook.NewClient(cfg, log),
		rdb,
		cfg.GetLiveBookCacheTTL(),
		log,
	)
	log.Info("live book client initialized", "url", cfg.GetLiveBookURL())

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	customersModule := customers.NewModule(pool, eventBus, cfg, log, val)
	offersModule := offers.NewModule(pool, eventBus, cfg, log, val, customersModule.Service(), checker)

	ingestClient, err := ingest.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize ingest client", "error", err)
		panic("failed to initialize ingest client: " + err.Error())
	}
	defer ingestClient.Close()
	ingestModule := ingest.NewModule(ingestClient, eventBus, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			customersModule,
			offersModule,
			ingestModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
