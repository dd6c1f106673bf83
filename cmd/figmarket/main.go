package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/figmp/figmarket/internal/config"
	"github.com/figmp/figmarket/internal/engine"
	"github.com/figmp/figmarket/internal/handler"
	"github.com/figmp/figmarket/internal/market"
	"github.com/figmp/figmarket/internal/scales"
	"github.com/figmp/figmarket/internal/service"
	"github.com/figmp/figmarket/internal/store"
)

func main() {
	configPath := flag.String("config", "figmarket.yaml", "Path to YAML config file")
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load the persisted registry; any load failure falls back to an
	// empty registry and is logged, never fatal.
	snapshots := store.NewSnapshotStore(cfg.StorePath)
	registry := loadRegistry(snapshots, logger)

	// Debounced persistence.
	flusher := store.NewFlusher(cfg.FlushInterval, registry, snapshots, logger)

	// External collaborators.
	transfer := scales.NewClient(cfg.ScalesURL, cfg.ScalesAPIToken, cfg.ScalesTimeout)
	notifier := service.NewNotifier(cfg.NotifyURL, cfg.NotifyTimeout)

	// Engine.
	matcher := engine.NewMatcher(registry, transfer, notifier, flusher, logger)
	lifecycle := engine.NewLifecycle(registry, flusher, logger)

	// Read-only shop queries.
	shopSvc := service.NewShopService(registry)

	// Router.
	router := handler.NewRouter(matcher, lifecycle, shopSvc, logger)

	// Start flush goroutine with cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	flusher.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops flush
	// goroutine), then flush once more so the last mutation reaches disk.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	flusher.Flush()

	logger.Info("server stopped")
}

// loadRegistry restores the market registry from the snapshot store. A
// corrupt file degrades to an empty registry; individually unreadable
// records are skipped so the rest of the markets survive.
func loadRegistry(snapshots *store.SnapshotStore, logger *slog.Logger) *market.Registry {
	state, err := snapshots.Load()
	if err != nil {
		var corrupt *store.CorruptStoreError
		if errors.As(err, &corrupt) {
			logger.Error("market store is corrupt, starting empty", slog.String("error", err.Error()))
		} else {
			logger.Error("couldn't read market store, starting empty", slog.String("error", err.Error()))
		}
		return market.NewRegistry()
	}

	registry, skipped := market.Restore(state)
	for _, key := range skipped {
		logger.Error("skipping unreadable market record", slog.String("key", key))
	}
	return registry
}
