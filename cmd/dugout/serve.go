package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/dugout/internal/adapters/http/live"
	app "github.com/okian/dugout/internal/app"
	"github.com/okian/dugout/pkg/logger"
	"github.com/okian/dugout/pkg/metrics"
	"github.com/spf13/cobra"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config addr)")
	return cmd
}

func runServe(ctx context.Context, addr string) error {
	cfg, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	lbCache, err := openCache(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return err
	}

	hub := live.NewHub(live.WithLogger(log.Named("live")))
	defer func() { _ = hub.Close() }()

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithCache(lbCache),
		app.WithPublisher(hub),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
	)
	if err := svc.Start(ctx); err != nil {
		_ = lbCache.Close()
		_ = store.Close()
		return err
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc, hub)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, hub, newAuthenticator(ctx, cfg, log), log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			return err
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service, hub *live.Hub) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc, hub)
		}
	}
}

func updateServiceMetrics(svc *app.Service, hub *live.Hub) {
	// GetStats also refreshes the worker gauge.
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	metrics.UpdateLiveConnections(hub.Count())
}
