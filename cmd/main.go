package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/affinity/internal/adapters/http/api"
	"github.com/okian/affinity/internal/adapters/store"
	app "github.com/okian/affinity/internal/app"
	"github.com/okian/affinity/internal/config"
	"github.com/okian/affinity/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Build the service with configuration options. A configured store
	// URL selects the vector-store adapter; otherwise profiles live in
	// memory, which only makes sense for local experimentation.
	opts := []app.Option{
		app.WithLogger(log),
		app.WithAlpha(cfg.EMAAlpha),
		app.WithEventWeights(cfg.EventWeights),
		app.WithLockShards(cfg.LockShards),
		app.WithBatchWorkers(cfg.BatchWorkers),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithNeighborCount(cfg.NeighborCount),
		app.WithTopK(cfg.TopK),
		app.WithAggregateMode(cfg.AggregateMode),
	}
	if cfg.StoreURL != "" {
		qdrant, qerr := store.NewQdrant(ctx, cfg.StoreURL, cfg.StoreCollection,
			store.WithSparseName(cfg.StoreSparseName),
			store.WithAPIKey(cfg.StoreAPIKey),
		)
		if qerr != nil {
			os.Stderr.WriteString("failed to connect to vector store: " + qerr.Error() + "\n")
			return
		}
		opts = append(opts, app.WithStore(qdrant))
	} else {
		log.Warn(ctx, "store_url not set; using in-memory profile store")
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	serverOpts := []api.ServerOption{}
	if cfg.AuthEnabled {
		serverOpts = append(serverOpts, api.WithAuthenticator(api.NewAuthenticator(cfg.JWTSecret)))
	}
	apiServer := api.NewServer(svc, svc, serverOpts...)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
