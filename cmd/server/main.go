package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"campusconnect/internal/changes"
	"campusconnect/internal/config"
	"campusconnect/internal/httpapi"
	"campusconnect/internal/livesync"
	"campusconnect/internal/media"
	"campusconnect/internal/metrics"
	"campusconnect/internal/natsfeed"
	"campusconnect/internal/store/memory"
	"campusconnect/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := changes.NewHub(logger)
	hub.DropFunc = func(f changes.Filter) { metrics.EventDropped(f.Table) }
	defer hub.Close()

	workers, wctx := errgroup.WithContext(ctx)

	var (
		stores livesync.Stores
		dbPing func(context.Context) error
	)

	switch cfg.Store {
	case config.StorePostgres:
		pgPool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		if cfg.DBMigrate {
			if err := postgres.Migrate(ctx, pgPool); err != nil {
				logger.Error("db migrate failed", "err", err)
				os.Exit(1)
			}
			logger.Info("db migrated")
		}

		stores = postgres.NewStores(pgPool)
		dbPing = pgPool.Ping

		if cfg.ChangeFeed == config.FeedPostgres {
			listener := &postgres.ChangeListener{Pool: pgPool, Out: hub, Logger: logger}
			workers.Go(func() error { return listener.Run(wctx) })
		}
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		mem := memory.New(hub)
		stores = livesync.Stores{
			Messages:      mem,
			Comments:      mem,
			Posts:         mem,
			Notifications: mem,
			Connections:   mem,
			Profiles:      mem,
		}
	}

	if cfg.ChangeFeed == config.FeedNATS {
		nc, err := natsfeed.Connect(cfg.NATSURL, "campusconnect-server")
		if err != nil {
			logger.Error("nats connect failed", "err", err)
			os.Exit(1)
		}
		defer nc.Close()

		bridge := &natsfeed.Bridge{Conn: nc, Prefix: cfg.NATSPrefix, Hub: hub, Logger: logger}
		workers.Go(func() error { return bridge.Run(wctx) })
	}

	if cfg.MediaEnabled() {
		store, err := media.NewS3Store(ctx, media.Config{
			Region:     cfg.S3Region,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			PublicBase: cfg.MediaPublicURL,
			PathStyle:  cfg.S3Endpoint != "",
		})
		if err != nil {
			logger.Error("media store init failed", "err", err)
			os.Exit(1)
		}
		stores.Media = store
	} else {
		logger.Info("media uploads disabled", "hint", "set APP_S3_ENDPOINT or APP_S3_ACCESS_KEY")
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:         logger,
		IsProd:         cfg.IsProd(),
		DBPing:         dbPing,
		Stores:         stores,
		Feed:           hub,
		Metrics:        metrics.NewSync(),
		Timeout:        cfg.FetchTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "store", cfg.Store, "change_feed", cfg.ChangeFeed)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-wctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
			_ = workers.Wait()
			os.Exit(1)
		}
	}

	stop()
	if err := workers.Wait(); err != nil {
		logger.Error("background worker failed", "err", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
