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

	"github.com/deflectd/deflectd/internal/api"
	"github.com/deflectd/deflectd/internal/callback"
	"github.com/deflectd/deflectd/internal/config"
	"github.com/deflectd/deflectd/internal/dispatch"
	"github.com/deflectd/deflectd/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional; env vars and defaults apply without it)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("deflectd starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"http_port", cfg.HTTPPort,
		"upstream", cfg.Upstream.BaseURL,
		"verify_tls", cfg.Upstream.VerifyTLS,
		"workers", cfg.Jobs.Workers,
		"delay_min", cfg.Jobs.DelayMin,
		"delay_max", cfg.Jobs.DelayMax,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	sender := callback.New(cfg.Upstream, m)
	disp := dispatch.New(cfg.Jobs, sender, m)

	dispatcherDone := make(chan struct{})
	go func() {
		disp.Run(ctx)
		close(dispatcherDone)
	}()

	// The runtime config is immutable; the watcher only flags drift so
	// operators know a restart is needed.
	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, func(*config.Config) {
				slog.Warn("config file changed on disk — restart to apply")
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(disp, cfg, m))
	httpMux.Handle("/metrics", m)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("deflectd shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
	<-dispatcherDone
}
