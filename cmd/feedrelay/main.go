// Command feedrelay forwards Postgres change notifications to NATS so several
// server replicas can share one LISTEN connection.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"campusconnect/internal/config"
	"campusconnect/internal/natsfeed"
	"campusconnect/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.LogLevel == "debug" {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))

	if cfg.DBDSN == "" || cfg.NATSURL == "" {
		logger.Error("feedrelay needs APP_DB_DSN and APP_NATS_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Open(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db open failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	nc, err := natsfeed.Connect(cfg.NATSURL, "campusconnect-feedrelay")
	if err != nil {
		logger.Error("nats connect failed", "err", err)
		os.Exit(1)
	}
	defer nc.Drain()

	listener := &postgres.ChangeListener{
		Pool:   pool,
		Out:    &natsfeed.Publisher{Conn: nc, Prefix: cfg.NATSPrefix, Logger: logger},
		Logger: logger,
	}
	logger.Info("feedrelay running", "channel", postgres.ChangeChannel, "prefix", cfg.NATSPrefix)
	if err := listener.Run(ctx); err != nil {
		logger.Error("listener stopped", "err", err)
	}
}
