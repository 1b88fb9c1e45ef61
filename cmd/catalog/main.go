// Command catalog starts the movie catalog HTTP service.
//
// The service proxies the upstream movie provider behind a read-through
// Redis cache. Search results are cached for a fixed TTL; lookups by id go
// straight to the provider.
//
// Usage:
//
//	go run ./cmd/catalog [-config configs/development.yaml]
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

	"github.com/cinesync/cinesync/internal/catalog/cache"
	"github.com/cinesync/cinesync/internal/catalog/gateway"
	"github.com/cinesync/cinesync/internal/catalog/handler"
	"github.com/cinesync/cinesync/internal/catalog/tmdb"
	"github.com/cinesync/cinesync/pkg/config"
	"github.com/cinesync/cinesync/pkg/health"
	"github.com/cinesync/cinesync/pkg/logger"
	"github.com/cinesync/cinesync/pkg/metrics"
	"github.com/cinesync/cinesync/pkg/middleware"
	pkgredis "github.com/cinesync/cinesync/pkg/redis"
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
	slog.Info("starting catalog service", "port", cfg.Server.Port)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	provider, err := tmdb.New(cfg.TMDB)
	if err != nil {
		slog.Error("failed to create tmdb client", "error", err)
		os.Exit(1)
	}

	var searchCache *cache.SearchCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		searchCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	gw := gateway.New(provider, searchCache)
	h := handler.New(gw)

	checker := health.NewChecker()
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("GET /movies/{id}", h.GetMovie)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	slog.Info("catalog service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog service stopped")
}
