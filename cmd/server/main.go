package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "pharmatrack/internal/adapters/web"
	"pharmatrack/internal/app"
	"pharmatrack/internal/config"
	"pharmatrack/internal/core"
	"pharmatrack/internal/db"
	"pharmatrack/internal/logging"
	"pharmatrack/internal/notify"
	"pharmatrack/internal/observability"
	"pharmatrack/internal/store/memory"
	"pharmatrack/internal/store/postgres"
	"pharmatrack/migrations"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, config.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush spans", zap.Error(err))
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	notifiers := []core.Notifier{notify.NewStoreNotifier(store)}
	if cfg.KafkaBroker != "" {
		kafkaNotifier := notify.NewKafkaNotifier(notify.NewWriter(cfg.KafkaBroker, cfg.KafkaTopic), logger)
		defer func() {
			if err := kafkaNotifier.Close(); err != nil {
				logger.Warn("failed to close kafka writer", zap.Error(err))
			}
		}()
		notifiers = append(notifiers, kafkaNotifier)
		logger.Info("publishing notifications to kafka",
			zap.String("broker", cfg.KafkaBroker),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	orderService := core.NewOrderService(store, notify.NewFanout(logger, notifiers...), logger)
	reportingService := core.NewReportingService(store)
	userService := core.NewUserService(store)
	svc := app.NewAppService(orderService, reportingService, userService)

	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
		Logger:         logger,
		TracerProvider: tp,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore returns the configured store. Postgres is migrated on startup.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (core.Store, func(), error) {
	if cfg.Store == "memory" {
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	if err := db.Migrate(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return postgres.New(pool), pool.Close, nil
}
