// health_checker_test.go: Tests for the liveness and readiness endpoints
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, handler http.Handler, path string) int {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestHealthHandler(t *testing.T) {
	t.Run("ReadyWhileComponentsRun", func(t *testing.T) {
		f := newManagerFixture(t)
		pool, err := NewWorkerPool(1, nil, nil)
		require.NoError(t, err)
		defer pool.Close(time.Second)

		metrics := NewMetrics("", prometheus.NewRegistry())
		mux := NewObservabilityMux(metrics, NewHealthHandler(HealthTargets{Manager: f.manager, Pool: pool}, metrics))

		assert.Equal(t, http.StatusOK, probe(t, mux, "/live"))
		assert.Equal(t, http.StatusOK, probe(t, mux, "/ready"))
		assert.Equal(t, http.StatusOK, probe(t, mux, "/metrics"))
	})

	t.Run("NotReadyAfterShutdown", func(t *testing.T) {
		f := newManagerFixture(t)
		pool, err := NewWorkerPool(1, nil, nil)
		require.NoError(t, err)

		mux := NewObservabilityMux(nil, NewHealthHandler(HealthTargets{Manager: f.manager, Pool: pool}, nil))

		require.NoError(t, pool.Close(time.Second))
		assert.Equal(t, http.StatusServiceUnavailable, probe(t, mux, "/ready"))
		assert.Equal(t, http.StatusOK, probe(t, mux, "/live"))
		assert.Equal(t, http.StatusNotFound, probe(t, mux, "/metrics"))
	})

	t.Run("ManagerNotRunning", func(t *testing.T) {
		f := newManagerFixture(t)
		f.cancel()
		require.True(t, waitFor(t, 2*time.Second, func() bool { return !f.manager.Running() }))

		h := NewHealthHandler(HealthTargets{Manager: f.manager}, nil)
		assert.Equal(t, http.StatusServiceUnavailable, probe(t, h, "/ready"))
	})

	t.Run("WatcherNotStarted", func(t *testing.T) {
		w, err := NewHostConfigWatcher("unused.yaml", DefaultHostConfigWatcherOptions(), nil)
		require.NoError(t, err)

		h := NewHealthHandler(HealthTargets{Watcher: w}, nil)
		assert.Equal(t, http.StatusServiceUnavailable, probe(t, h, "/ready"))
	})
}
