// health_checker.go: Liveness and readiness endpoints
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
)

// DefaultGoroutineThreshold fails liveness when the process runs more goroutines.
const DefaultGoroutineThreshold = 10000

// HealthTargets are the components whose state decides readiness.
type HealthTargets struct {
	Manager *Manager
	Pool    *WorkerPool
	Watcher *HostConfigWatcher
}

// NewHealthHandler builds the /live and /ready handler. When metrics is not
// nil, check results are also exported on its registry.
func NewHealthHandler(targets HealthTargets, metrics *Metrics) healthcheck.Handler {
	var h healthcheck.Handler
	if metrics != nil {
		h = healthcheck.NewMetricsHandler(metrics.Registry(), DefaultMetricsNamespace)
	} else {
		h = healthcheck.NewHandler()
	}

	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(DefaultGoroutineThreshold))
	h.AddLivenessCheck("gc-max-pause", healthcheck.GCMaxPauseCheck(time.Second))

	if targets.Manager != nil {
		h.AddReadinessCheck("lifecycle-manager", func() error {
			if !targets.Manager.Running() {
				return fmt.Errorf("lifecycle manager is not running")
			}
			return nil
		})
	}
	if targets.Pool != nil {
		h.AddReadinessCheck("worker-pool", func() error {
			if targets.Pool.Closed() {
				return fmt.Errorf("worker pool is closed")
			}
			return nil
		})
	}
	if targets.Watcher != nil {
		h.AddReadinessCheck("config-watcher", func() error {
			if !targets.Watcher.IsRunning() {
				return fmt.Errorf("configuration watcher is not running")
			}
			return nil
		})
	}
	return h
}

// NewObservabilityMux serves metrics on /metrics and health on /live and /ready.
func NewObservabilityMux(metrics *Metrics, health healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)
	return mux
}
