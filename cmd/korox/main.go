package main

import (
	"context"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"korox/internal/api"
	"korox/internal/config"
	"korox/internal/graph"
	"korox/internal/infra/health"
	"korox/internal/infra/http/middleware"
	"korox/internal/infra/log"
	"korox/internal/infra/metrics"
	"korox/internal/infra/netutil"
	"korox/internal/infra/runner"
	"korox/internal/infra/version"
	"korox/internal/optimizer"
	"korox/internal/telemetry"

	"github.com/benbjohnson/clock"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.NewLogger(cfg)

	routeGraph, err := graph.New(graph.XCMRoutes, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("route catalog failed to load")
	}

	source := telemetry.NewSubstrateClient(cfg, logger)
	cache := telemetry.NewCache(cfg, source, logger, clock.New())
	opt := optimizer.New(routeGraph, cache, cfg, logger)

	// metrics plus admin endpoints behind an IP allowlist gate
	registry := metrics.Init(logger)
	mux := http.NewServeMux()
	adminCIDRs := netutil.MustParseCIDRs(cfg.Server.AdminAllowCIDRs)
	mux.Handle("/metrics", middleware.AdminGate(adminCIDRs, metrics.Handler(registry)))
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.Readyz)
	mux.HandleFunc("/version", version.Handler)
	if cfg.Server.Pprof {
		mux.Handle("/debug/pprof/", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Index)))
		mux.Handle("/debug/pprof/cmdline", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Cmdline)))
		mux.Handle("/debug/pprof/profile", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Profile)))
		mux.Handle("/debug/pprof/symbol", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Symbol)))
		mux.Handle("/debug/pprof/trace", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Trace)))
	}
	mux.Handle("/api/v1/", api.NewServer(cfg, opt, cache, logger).Handler())

	handler := middleware.RequestID(middleware.Logger(logger)(mux))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	logger.Info().Str("addr", cfg.Server.Addr).Msg("route engine started")

	// background telemetry refresh keeps the cache warm for request traffic
	g := &runner.Group{}
	monitorErrCh := g.Go(ctx, func(ctx context.Context) error {
		cache.StartMonitoring(ctx)
		<-ctx.Done()
		return nil
	})

	health.SetReady(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case s := <-sigCh:
		logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
	case err := <-monitorErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("monitor worker error")
			health.SetReady(false)
		}
	}

	health.SetReady(false)
	cache.StopMonitoring()
	source.DisconnectAll()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	cancel()
	g.Wait()
	logger.Info().Msg("shutdown complete")
}
