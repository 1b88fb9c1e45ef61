// Command identity starts the user accounts HTTP service.
//
// The service owns registration, token issuance, and per-user favorites.
// Favorite adds are validated synchronously against the catalog service;
// registrations emit a UserRegistered event to the broker.
//
// Usage:
//
//	go run ./cmd/identity [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cinesync/cinesync/internal/events"
	"github.com/cinesync/cinesync/internal/identity/auth"
	"github.com/cinesync/cinesync/internal/identity/catalogclient"
	"github.com/cinesync/cinesync/internal/identity/favorites"
	"github.com/cinesync/cinesync/internal/identity/handler"
	"github.com/cinesync/cinesync/internal/identity/store"
	"github.com/cinesync/cinesync/internal/identity/users"
	"github.com/cinesync/cinesync/pkg/config"
	"github.com/cinesync/cinesync/pkg/health"
	"github.com/cinesync/cinesync/pkg/kafka"
	"github.com/cinesync/cinesync/pkg/logger"
	"github.com/cinesync/cinesync/pkg/metrics"
	"github.com/cinesync/cinesync/pkg/middleware"
	"github.com/cinesync/cinesync/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting identity service", "port", cfg.Server.Port)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	identityStore := store.New(db)
	if err := identityStore.Setup(); err != nil {
		slog.Error("failed to prepare database schema", "error", err)
		os.Exit(1)
	}

	tokenManager, err := auth.NewTokenManager(cfg.Auth)
	if err != nil {
		slog.Error("failed to configure token manager", "error", err)
		os.Exit(1)
	}

	catalogClient, err := catalogclient.New(cfg.Peers)
	if err != nil {
		slog.Error("failed to create catalog client", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.UserEventTopic)
	publisher := events.NewPublisher(cfg.Kafka, producer, m)
	if err := publisher.Connect(ctx); err != nil {
		slog.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	userService := users.New(identityStore, tokenManager, publisher)
	coordinator := favorites.New(identityStore, catalogClient)
	h := handler.New(userService, coordinator)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		if err := kafka.Ping(ctx, cfg.Kafka.Brokers); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	h.Routes(mux, tokenManager)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("identity service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("identity service stopped")
}
