package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"docsend/internal/config"
	"docsend/internal/database"
	"docsend/internal/database/migration"
	"docsend/internal/dispatch"
	handlers "docsend/internal/http/handler"
	"docsend/internal/http/middleware"
	"docsend/internal/otel"
	"docsend/internal/queue"
	"docsend/internal/repository/postgres"
	"docsend/internal/service"
	"docsend/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// PostgreSQL connection (with pooling via database/sql, otelsql instrumented)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		logger.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := pingRedis(ctx, rdb); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)

	// Metrics registry shared by the HTTP middleware and the dispatcher
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dispatchMetrics, err := dispatch.NewMetrics(registry)
	if err != nil {
		logger.Error("failed to register dispatch metrics", "error", err)
		os.Exit(1)
	}

	// Repositories
	docRepo := postgres.NewDocumentPostgres(db)
	custRepo := postgres.NewCustomerPostgres(db)
	delRepo := postgres.NewDeliveryPostgres(db)

	// One Sender for the whole process: constructed with lifetime-fixed state
	// only, shared by every worker goroutine.
	sender := dispatch.NewSender(dispatch.NewHTTPClient(cfg.Dispatch.RequestTimeout), cfg.Dispatch, dispatchMetrics)
	publisher := queue.NewPublisher(rdb, logger)

	// Services
	docSvc := service.NewDocumentService(objStore, docRepo)
	custSvc := service.NewCustomerService(custRepo)
	delSvc := service.NewDeliveryService(delRepo, custRepo, docRepo, objStore, sender, publisher)

	// Delivery worker pool
	worker := queue.NewWorker(rdb, delSvc, logger, cfg.Worker)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil {
			logger.Error("worker stopped", "error", err)
		}
	}()

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, db, rdb, handlers.Services{
		Documents:  docSvc,
		Customers:  custSvc,
		Deliveries: delSvc,
	}, registry)

	go func() {
		addr := ":" + cfg.Port
		logger.Info("starting server", "addr", addr)
		if err := app.Listen(addr); err != nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	<-workerDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}
	logger.Info("stopped")
}

// pingRedis verifies connectivity, retrying with exponential backoff since
// redis may still be starting when the service comes up.
func pingRedis(ctx context.Context, rdb *redis.Client) error {
	op := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx))
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.AppConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
