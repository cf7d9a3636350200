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

	log := logger.New(cfg.Env)
	log.Info("starting ingestion worker", "env", cfg.Env, "partitions", cfg.GetQueuePartitions())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

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

	eventBus := events.NewInMemoryBus(log)
	events.SubscribeJournal(eventBus, log)
	val := validator.New()

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

	customersModule := customers.NewModule(pool, eventBus, cfg, log, val)
	offersModule := offers.NewModule(pool, eventBus, cfg, log, val, customersModule.Service(), checker)

	worker, err := ingest.NewWorker(cfg, offersModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize ingestion worker", "error", err)
		panic("failed to initialize ingestion worker: " + err.Error())
	}

	log.Info("ingestion worker listening", "concurrency", cfg.GetQueueConcurrency())
	worker.Run(ctx)

	// Let in-flight event handlers drain before exiting.
	eventBus.Wait()
	log.Info("ingestion worker stopped")
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
