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

	"github.com/plantqc/historian-bridge/server/internal/api"
	"github.com/plantqc/historian-bridge/server/internal/config"
	"github.com/plantqc/historian-bridge/server/internal/correlation"
	"github.com/plantqc/historian-bridge/server/internal/flowrate"
	"github.com/plantqc/historian-bridge/server/internal/historian"
	"github.com/plantqc/historian-bridge/server/internal/logging"
	"github.com/plantqc/historian-bridge/server/internal/metrics"
	"github.com/plantqc/historian-bridge/server/internal/registry"
	"github.com/plantqc/historian-bridge/server/internal/store"
	"github.com/plantqc/historian-bridge/server/internal/tags"
	"github.com/plantqc/historian-bridge/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	watch := flag.Bool("watch", true, "reload the config file when it changes")
	flag.Parse()

	level := new(slog.LevelVar)
	logger, _ := logging.New(config.LogConfig{}, level)
	slog.SetDefault(logger)

	slog.Info("historian-bridge starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Log.SlogLevel())
	if cfg.Log.File != "" {
		fileLogger, closer := logging.New(cfg.Log, level)
		defer closer.Close() //nolint:errcheck
		slog.SetDefault(fileLogger)
		slog.Info("logging to file", "file", cfg.Log.File, "max_size_mb", cfg.Log.MaxSizeMB)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"historian_driver", cfg.Historian.Driver,
		"poll_interval", cfg.Live.PollInterval,
		"cycle_count", cfg.Historian.CycleCount,
		"max_concurrency", cfg.Correlation.MaxConcurrency,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resolver, err := tags.New(cfg.Tags)
	if err != nil {
		slog.Error("invalid tag templates", "err", err)
		os.Exit(1)
	}

	// One connection manager for the process; every historian caller shares it.
	mgr := historian.NewManager(historian.Dialer(cfg.Historian), historian.NewSimulator(cfg.Simulator.Step))
	defer mgr.Close() //nolint:errcheck
	hc := historian.NewClient(mgr, cfg.Historian.CycleCount)

	var reg registry.Registry
	if sqlReg, err := registry.Open(cfg.Registry); err != nil {
		slog.Warn("batch registry unavailable, correlation requests will fail", "err", err)
		reg = registry.Unavailable(err)
	} else {
		defer sqlReg.Close() //nolint:errcheck
		reg = sqlReg
	}
	engine := correlation.New(reg, hc, resolver, cfg.Correlation.MaxConcurrency)
	flow := flowrate.New(mgr, cfg.FlowRate)

	// Latest-reading cache with background TTL eviction.
	st := store.New(cfg.Live.CacheTTL)
	go st.Run(ctx)

	// WebSocket hub: one shared poller fans readings out to every client.
	hub := ws.New(hc, resolver.All(), st, cfg.Live.PollInterval)
	go hub.Run(ctx)

	if *watch {
		go func() {
			err := config.Watch(ctx, *configPath, func(next *config.Config) {
				level.Set(next.Log.SlogLevel())
				hub.SetInterval(next.Live.PollInterval)
				hc.SetCycleCount(next.Historian.CycleCount)
				engine.SetMaxConcurrency(next.Correlation.MaxConcurrency)
				flow.SetConfig(next.FlowRate)
				slog.Info("config reloaded",
					"poll_interval", next.Live.PollInterval,
					"cycle_count", next.Historian.CycleCount,
					"max_concurrency", next.Correlation.MaxConcurrency,
				)
			})
			if err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/telemetry/", api.New(api.Deps{
		Historian:   hc,
		Tags:        resolver,
		Store:       st,
		Correlation: engine,
		FlowRate:    flow,
		Live:        hub,
	}))
	httpMux.Handle("/metrics", metrics.Handler())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("historian-bridge shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
