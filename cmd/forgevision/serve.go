// cmd/forgevision/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forgevision/internal/common/config"
	"forgevision/internal/common/observability"
	"forgevision/internal/dashboard"
	"forgevision/internal/session"
	"forgevision/pkg/registry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const sweepInterval = time.Minute

func newServeCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), address)
		},
	}

	cmd.Flags().StringVar(&address, "addr", "", "listen address (overrides server.address)")
	return cmd
}

func runServe(ctx context.Context, address string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	obs := observability.New("forgevision")
	defer obs.Shutdown()

	a, err := newApp(ctx, obs, false)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	if address != "" {
		cfg.Server.Address = address
	}

	reg, err := registry.Default()
	if err != nil {
		return err
	}

	checks := map[string]dashboard.ReadyCheck{}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
		if cfg.Metrics.Enabled {
			if err := a.redis.RegisterPoolMetrics(prometheus.DefaultRegisterer); err != nil {
				a.zap.Warn("Redis pool metrics unavailable", zap.Error(err))
			}
		}
	}

	srv, err := dashboard.NewServer(dashboard.Config{
		Address:        cfg.Server.Address,
		AppName:        "ForgeVision",
		Version:        cfg.App.Version,
		ReadTimeout:    config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout:   config.GetDuration(cfg.Server.WriteTimeout),
		RequestTimeout: config.GetDuration(cfg.Server.RequestTimeout),
		CookieName:     cfg.Session.CookieName,
		CookieTTL:      time.Duration(cfg.Session.TTL) * time.Second,
		CookieSecure:   cfg.App.Environment == "production",
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		Engine: dashboard.EngineStatus{
			TextModel:  cfg.APIs.Gemini.Model,
			ImageModel: cfg.APIs.HuggingFace.Model,
		},
	}, a.orchestrator, reg, checks, a.log)
	if err != nil {
		return err
	}

	httpServer := srv.HTTPServer()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if mem, ok := a.store.(*session.MemoryStore); ok {
		go sweepSessions(sweepCtx, mem, a.zap)
	}

	errCh := make(chan error, 1)
	go func() {
		a.zap.Info("Dashboard listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err, ok := <-errCh:
		if ok {
			a.zap.Error("Dashboard server failed", zap.Error(err))
			return err
		}
		return nil
	case <-sigCh:
	}

	a.zap.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownGrace))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.zap.Error("Error during shutdown", zap.Error(err))
		return err
	}

	a.zap.Info("Dashboard stopped gracefully")
	return nil
}

func sweepSessions(ctx context.Context, store *session.MemoryStore, log *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				log.Debug("Expired sessions removed", zap.Int("count", n))
			}
		}
	}
}
