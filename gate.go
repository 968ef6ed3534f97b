// gate.go: Plugin activation gate
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sync"
)

// ActivationGate decides whether a plugin may be activated or deactivated.
// A false result is a refusal, not an error.
type ActivationGate interface {
	StartPlugin(p Plugin) bool
	StopPlugin(p Plugin) bool
}

// DefaultGate runs the plugin's Lifecycle hooks and refuses when a hook fails.
// Plugins named in the deny list are always refused.
type DefaultGate struct {
	logger Logger

	mu      sync.Mutex
	started map[Plugin]struct{}
	denied  map[string]struct{}
}

// NewDefaultGate creates a gate that refuses the given plugin names.
func NewDefaultGate(logger Logger, denied ...string) *DefaultGate {
	g := &DefaultGate{
		logger:  NewLogger(logger).With("component", "activation_gate"),
		started: make(map[Plugin]struct{}),
		denied:  make(map[string]struct{}, len(denied)),
	}
	for _, name := range denied {
		g.denied[name] = struct{}{}
	}
	return g
}

// StartPlugin runs StartUp once per plugin. Denied names are refused.
func (g *DefaultGate) StartPlugin(p Plugin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.denied[p.Name()]; ok {
		g.logger.Warn("Plugin activation denied", "plugin_name", p.Name())
		return false
	}
	if _, ok := g.started[p]; ok {
		return true
	}
	if lc, ok := p.(Lifecycle); ok {
		if err := lc.StartUp(); err != nil {
			g.logger.Warn("Plugin start up failed", "plugin_name", p.Name(), "error", err)
			return false
		}
	}
	g.started[p] = struct{}{}
	return true
}

// StopPlugin runs ShutDown for a started plugin.
func (g *DefaultGate) StopPlugin(p Plugin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.started[p]; !ok {
		return true
	}
	if lc, ok := p.(Lifecycle); ok {
		if err := lc.ShutDown(); err != nil {
			g.logger.Warn("Plugin shut down failed", "plugin_name", p.Name(), "error", err)
			return false
		}
	}
	delete(g.started, p)
	return true
}

// Started reports whether p has been activated and not yet deactivated.
func (g *DefaultGate) Started(p Plugin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.started[p]
	return ok
}
