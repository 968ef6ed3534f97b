// argus_config_watcher.go: Host configuration hot reload with Argus
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// HostConfigWatcherOptions tunes file polling and auditing.
type HostConfigWatcherOptions struct {
	PollInterval time.Duration
	CacheTTL     time.Duration
	// AuditConfig enables the argus audit trail when Enabled is set.
	AuditConfig argus.AuditConfig
}

// DefaultHostConfigWatcherOptions polls every two seconds without auditing.
func DefaultHostConfigWatcherOptions() HostConfigWatcherOptions {
	return HostConfigWatcherOptions{
		PollInterval: 2 * time.Second,
		CacheTTL:     time.Second,
		AuditConfig: argus.AuditConfig{
			Enabled:       false,
			OutputFile:    "pluginhost-config-audit.jsonl",
			MinLevel:      argus.AuditInfo,
			BufferSize:    256,
			FlushInterval: 5 * time.Second,
		},
	}
}

// HostConfigWatcher keeps the current HostConfig in sync with its file.
//
// An invalid file is rejected and the previous configuration stays in effect.
// A stopped watcher cannot be restarted.
type HostConfigWatcher struct {
	path        string
	logger      Logger
	options     HostConfigWatcherOptions
	watcher     *argus.Watcher
	auditLogger *argus.AuditLogger

	current atomic.Pointer[HostConfig]

	enabled  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	mutex    sync.Mutex

	listenersMu sync.RWMutex
	listeners   []configListener
}

// NewHostConfigWatcher creates a watcher for path. The file is read on Start.
func NewHostConfigWatcher(path string, options HostConfigWatcherOptions, logger Logger) (*HostConfigWatcher, error) {
	logger = NewLogger(logger).With("component", "host_config_watcher")

	watcher := argus.New(argus.Config{
		PollInterval:         options.PollInterval,
		CacheTTL:             options.CacheTTL,
		MaxWatchedFiles:      1,
		Audit:                options.AuditConfig,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, filepath string) {
			logger.Error("Config file watching error", "error", err, "file", filepath)
		},
	})

	var auditLogger *argus.AuditLogger
	if options.AuditConfig.Enabled {
		var err error
		auditLogger, err = argus.NewAuditLogger(options.AuditConfig)
		if err != nil {
			return nil, NewConfigWatcherError("failed to create audit logger", err)
		}
	}

	return &HostConfigWatcher{
		path:        path,
		logger:      logger,
		options:     options,
		watcher:     watcher,
		auditLogger: auditLogger,
	}, nil
}

// Start loads the file and begins watching it.
func (w *HostConfigWatcher) Start() error {
	if w.stopped.Load() {
		return NewConfigWatcherError("watcher has been stopped", fmt.Errorf("restart not supported"))
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.enabled.CompareAndSwap(false, true) {
		return NewConfigWatcherError("watcher already running", fmt.Errorf("already started"))
	}

	initial, err := LoadHostConfig(w.path)
	if err != nil {
		w.enabled.Store(false)
		return err
	}
	w.current.Store(&initial)
	w.auditEvent("configuration_loaded", map[string]interface{}{"path": w.path})

	if err := w.watcher.Watch(w.path, w.handleChange); err != nil {
		w.enabled.Store(false)
		return NewConfigWatcherError("failed to watch config file", err)
	}
	if err := w.watcher.Start(); err != nil {
		w.enabled.Store(false)
		return NewConfigWatcherError("failed to start file watcher", err)
	}

	w.logger.Info("Host configuration watcher started", "config_path", w.path, "poll_interval", w.options.PollInterval)
	return nil
}

// Stop stops watching. Only the first call has an effect.
func (w *HostConfigWatcher) Stop() error {
	var stopErr error
	w.stopOnce.Do(func() {
		w.mutex.Lock()
		defer w.mutex.Unlock()

		w.stopped.Store(true)
		if !w.enabled.CompareAndSwap(true, false) {
			return
		}
		if err := w.watcher.Stop(); err != nil {
			stopErr = NewConfigWatcherError("failed to stop file watcher", err)
		}
		if w.auditLogger != nil {
			if err := w.auditLogger.Close(); err != nil {
				w.logger.Warn("Failed to close audit logger", "error", err)
			}
		}
		w.logger.Info("Host configuration watcher stopped")
	})
	return stopErr
}

// IsRunning reports whether the watcher is started and not stopped.
func (w *HostConfigWatcher) IsRunning() bool {
	return w.enabled.Load() && !w.stopped.Load()
}

// Current returns the configuration in effect, or DefaultHostConfig before Start.
func (w *HostConfigWatcher) Current() HostConfig {
	if cfg := w.current.Load(); cfg != nil {
		return *cfg
	}
	return DefaultHostConfig()
}

// Humanize reports the current humanize flag.
func (w *HostConfigWatcher) Humanize() bool {
	return w.Current().Humanize
}

// OnChange registers fn to run after every accepted reload.
func (w *HostConfigWatcher) OnChange(fn func(old, updated HostConfig)) {
	w.listenersMu.Lock()
	defer w.listenersMu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// configListener receives the previous and the newly applied configuration.
type configListener func(old, updated HostConfig)

func (w *HostConfigWatcher) handleChange(event argus.ChangeEvent) {
	if event.IsDelete {
		w.logger.Warn("Configuration file was deleted, keeping current configuration", "path", event.Path)
		w.auditEvent("config_file_deleted", map[string]interface{}{"path": event.Path})
		return
	}
	w.reload(event.Path)
}

// reload applies the file at path, keeping the previous configuration on failure.
func (w *HostConfigWatcher) reload(path string) {
	updated, err := LoadHostConfig(path)
	if err != nil {
		w.logger.Error("Rejected configuration change", "path", path, "error", err)
		w.auditEvent("config_reload_rejected", map[string]interface{}{"path": path, "error": err.Error()})
		return
	}

	oldPtr := w.current.Swap(&updated)
	old := DefaultHostConfig()
	if oldPtr != nil {
		old = *oldPtr
	}
	w.logger.Info("Configuration reloaded", "path", path, "humanize", updated.Humanize)
	w.auditEvent("configuration_changed", map[string]interface{}{
		"path":     path,
		"humanize": updated.Humanize,
	})

	w.listenersMu.RLock()
	listeners := append([]configListener(nil), w.listeners...)
	w.listenersMu.RUnlock()
	for _, fn := range listeners {
		func() {
			defer withComponentRecover(w.logger, "config_listener")()
			fn(old, updated)
		}()
	}
}

func (w *HostConfigWatcher) auditEvent(eventType string, context map[string]interface{}) {
	if w.auditLogger == nil {
		return
	}
	context["component"] = "host_config_watcher"
	context["timestamp"] = time.Now().Format(time.RFC3339)
	context["pid"] = os.Getpid()
	w.auditLogger.LogSecurityEvent(eventType, "Host configuration change", context)
}
