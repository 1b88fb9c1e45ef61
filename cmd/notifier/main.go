// Command notifier starts the user-event consumer.
//
// It drains the user-events topic and sends a welcome notification for each
// registration. Broker outages are survived by reconnecting with a fixed
// delay; the consumer never exits on its own.
//
// Usage:
//
//	go run ./cmd/notifier [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cinesync/cinesync/internal/notifier"
	"github.com/cinesync/cinesync/internal/notifier/mailer"
	"github.com/cinesync/cinesync/pkg/config"
	"github.com/cinesync/cinesync/pkg/logger"
	"github.com/cinesync/cinesync/pkg/metrics"
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
	slog.Info("starting notifier service",
		"topic", cfg.Kafka.UserEventTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	consumer := notifier.New(cfg.Kafka, mailer.NewLogMailer(), m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("consumer stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("notifier service stopped")
}
