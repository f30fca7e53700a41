package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/vanir/internal"
	"github.com/dukerupert/vanir/internal/events"
	"github.com/dukerupert/vanir/internal/fulfillment"
	"github.com/dukerupert/vanir/internal/inventory"
	"github.com/dukerupert/vanir/internal/payment"
	"github.com/dukerupert/vanir/internal/postgres"
	"github.com/dukerupert/vanir/internal/region"
	"github.com/dukerupert/vanir/internal/service"
	"github.com/dukerupert/vanir/internal/store"
	"github.com/dukerupert/vanir/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	orderStore := postgres.NewStore(pool)

	// Event publisher: JetStream when NATS is configured, in-memory otherwise
	var publisher events.Publisher
	if cfg.Nats.Enabled {
		logger.Info("Connecting to NATS...", "url", cfg.Nats.URL)
		nc, err := nats.Connect(cfg.Nats.URL)
		if err != nil {
			return fmt.Errorf("NATS connection failed: %w", err)
		}
		defer nc.Drain()

		publisher, err = events.NewNATSPublisher(ctx, nc)
		if err != nil {
			return fmt.Errorf("failed to initialize NATS publisher: %w", err)
		}
		logger.Info("NATS publisher initialized")
	} else {
		logger.Warn("NATS disabled, order events will not leave the process")
		publisher = events.NewMemoryPublisher()
	}

	metrics := telemetry.NewBusinessMetrics(cfg.Metrics.Namespace)

	// Collaborators. The local payment and fulfillment providers stand in
	// until real gateway integrations are plugged behind the same interfaces.
	inventorySvc := inventory.NewMemoryService(nil)
	paymentProvider := payment.NewLocalProvider()
	fulfillmentProvider := fulfillment.NewLocalProvider()
	regionSvc := region.NewMemoryService()

	orderService := service.NewOrderService(
		orderStore,
		inventorySvc,
		paymentProvider,
		fulfillmentProvider,
		regionSvc,
		publisher,
		metrics,
		logger,
	)
	logger.Info("Order service initialized")

	// The public API surface lives in a separate gateway; this process only
	// exposes operational endpoints.
	mux := http.NewServeMux()
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := orderService.ListAndCount(r.Context(), store.Selector{}, service.QueryConfig{Take: 1}); err != nil {
			http.Error(w, "order store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Server listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
