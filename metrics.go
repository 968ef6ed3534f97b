// metrics.go: Prometheus collectors for the plugin host
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMetricsNamespace prefixes every collector.
const DefaultMetricsNamespace = "pluginhost"

// Discovery outcomes.
const (
	DiscoveryAccepted      = "accepted"
	DiscoverySkipped       = "skipped"
	DiscoveryArchiveFailed = "archive_failed"
)

// World selection outcomes.
const (
	WorldOutcomeApplied  = "applied"
	WorldOutcomeSkipped  = "skipped"
	WorldOutcomeNotFound = "not_found"
	WorldOutcomeFailed   = "failed"
)

// Metrics groups the host collectors on a private registry.
//
// All recording methods are safe on a nil *Metrics, so components can be
// built without observability.
type Metrics struct {
	registry *prometheus.Registry

	discoveryEntries     *prometheus.CounterVec
	lifecycleTransitions *prometheus.CounterVec
	idleActions          prometheus.Counter
	worldSelections      *prometheus.CounterVec
	poolRejected         *prometheus.CounterVec
	activePlugin         prometheus.Gauge
}

// NewMetrics registers the host collectors. A nil registry gets a fresh one.
func NewMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		discoveryEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_entries_total",
			Help:      "Module entries examined by discovery, by outcome",
		}, []string{"outcome"}),
		lifecycleTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Plugin lifecycle notifications, by state",
		}, []string{"state"}),
		idleActions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_actions_total",
			Help:      "Simulated key presses fired by the idle scheduler",
		}),
		worldSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "world_selections_total",
			Help:      "World selection attempts, by outcome",
		}, []string{"outcome"}),
		poolRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_rejected_total",
			Help:      "Background tasks rejected by the worker pool",
		}, []string{"task"}),
		activePlugin: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_plugin",
			Help:      "1 while a plugin session is active",
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// DiscoveryOutcome counts one examined module entry.
func (m *Metrics) DiscoveryOutcome(outcome string) {
	if m == nil {
		return
	}
	m.discoveryEntries.WithLabelValues(outcome).Inc()
}

// Transition counts one lifecycle notification.
func (m *Metrics) Transition(state PluginState) {
	if m == nil {
		return
	}
	m.lifecycleTransitions.WithLabelValues(state.String()).Inc()
}

// IdleAction counts one simulated key press.
func (m *Metrics) IdleAction() {
	if m == nil {
		return
	}
	m.idleActions.Inc()
}

// WorldSelection counts one world selection attempt.
func (m *Metrics) WorldSelection(outcome string) {
	if m == nil {
		return
	}
	m.worldSelections.WithLabelValues(outcome).Inc()
}

// PoolRejected counts one task refused by the worker pool.
func (m *Metrics) PoolRejected(task string) {
	if m == nil {
		return
	}
	m.poolRejected.WithLabelValues(task).Inc()
}

// SetActive records whether a plugin session is active.
func (m *Metrics) SetActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.activePlugin.Set(1)
	} else {
		m.activePlugin.Set(0)
	}
}
