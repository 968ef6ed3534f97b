// run.go: Run the plugin host until interrupted
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pluginhost "github.com/agilira/go-pluginhost"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorld    = 301
	shutdownTimeout = 5 * time.Second
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [-- PLUGIN_ARGS...]",
		Short: "Discover plugins, serve the control plane and drive the client",
		Long:  "Arguments after -- are passed to the plugin selected with --plugin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runHost(ctx, args)
		},
	}
	cmd.Flags().String(pluginhost.PropWorld, "", "world to select once the login screen is reached")
	cmd.Flags().String(pluginhost.PropPlugin, "", "plugin to start after discovery")
	return cmd
}

func (a *app) runHost(ctx context.Context, pluginArgs []string) error {
	logger := a.logger

	settings, watcher, err := a.watchHostConfig()
	if err != nil {
		return err
	}
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}
	cfg := settings()

	metrics := pluginhost.NewMetrics(pluginhost.DefaultMetricsNamespace, prometheus.NewRegistry())
	bus := pluginhost.NewEventBus(logger)

	pool, err := pluginhost.NewWorkerPool(cfg.PoolSize, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(shutdownTimeout); err != nil {
			logger.Warn("Worker pool did not drain in time", "error", err)
		}
	}()

	host := pluginhost.DefaultHostTypes()
	store := pluginhost.NewMemoryConfigStore()
	manager, err := pluginhost.NewManager(pluginhost.ManagerConfig{
		Container: pluginhost.NewLuaContainer(host, store, logger),
		Gate:      pluginhost.NewDefaultGate(logger, cfg.DeniedPlugins...),
		Store:     store,
		Bus:       bus,
		Runner:    pool,
		HostTypes: host,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}

	discoverer := pluginhost.NewDiscoverer(host, logger).WithMetrics(metrics)
	discoverer.Discover(ctx, a.pluginsDir(cfg))

	client := pluginhost.NewHeadlessClient(bus, cfg.Tick(), defaultWorld, logger)

	idle := pluginhost.NewIdleScheduler(pluginhost.IdleSchedulerConfig{
		Input:   client,
		Keys:    client,
		Runner:  pool,
		Enabled: func() bool { return settings().Humanize },
		Logger:  logger,
		Metrics: metrics,
	})
	defer idle.Attach(bus)()

	if cfg.WorldDirectoryURL != "" {
		selector := pluginhost.NewWorldSelector(pluginhost.WorldSelectorConfig{
			Client:    client,
			Directory: pluginhost.NewHTTPWorldDirectory(cfg.WorldDirectoryURL, logger),
			Source:    a.props,
			Runner:    pool,
			Logger:    logger,
			Metrics:   metrics,
		})
		defer selector.Attach(bus)()
	}

	control := pluginhost.NewControlServer(manager, discoverer, logger)
	health := pluginhost.NewHealthHandler(pluginhost.HealthTargets{Manager: manager, Pool: pool, Watcher: watcher}, metrics)

	managerCtx, stopManager := context.WithCancel(context.Background())
	defer stopManager()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(managerCtx) })
	g.Go(func() error { return control.ListenAndServe(gctx, a.controlAddress(cfg)) })
	g.Go(func() error { return client.Run(gctx) })
	if cfg.MetricsAddress != "" {
		g.Go(func() error {
			return serveObservability(gctx, cfg.MetricsAddress, pluginhost.NewObservabilityMux(metrics, health))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.StopPlugin(stopCtx); err != nil {
			logger.Warn("Active plugin did not stop cleanly", "error", err)
		}
		stopManager()
		return nil
	})

	if name := a.props.Plugin(); name != "" {
		g.Go(func() error {
			select {
			case <-manager.Ready():
			case <-gctx.Done():
				return nil
			}
			if err := startNamed(gctx, manager, discoverer, name, pluginArgs); err != nil {
				logger.Error("Failed to start plugin", "plugin", name, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchHostConfig returns an accessor for the live configuration. Without a
// config file the defaults are used and no watcher is started.
func (a *app) watchHostConfig() (func() pluginhost.HostConfig, *pluginhost.HostConfigWatcher, error) {
	path := a.props.ConfigPath()
	if path == "" {
		cfg := pluginhost.DefaultHostConfig()
		return func() pluginhost.HostConfig { return cfg }, nil, nil
	}
	watcher, err := pluginhost.NewHostConfigWatcher(path, pluginhost.DefaultHostConfigWatcherOptions(), a.logger)
	if err != nil {
		return nil, nil, err
	}
	if err := watcher.Start(); err != nil {
		return nil, nil, err
	}
	watcher.OnChange(func(old, updated pluginhost.HostConfig) {
		if old.Humanize != updated.Humanize {
			a.logger.Info("Humanize setting changed", "humanize", updated.Humanize)
		}
	})
	return watcher.Current, watcher, nil
}

func startNamed(ctx context.Context, manager *pluginhost.Manager, catalog pluginhost.Catalog, name string, args []string) error {
	entry, err := catalog.Find(name)
	if err != nil {
		return err
	}
	return manager.StartPlugin(ctx, entry, args...)
}

func serveObservability(ctx context.Context, address string, handler http.Handler) error {
	srv := &http.Server{Addr: address, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
