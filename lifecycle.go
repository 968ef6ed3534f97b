// lifecycle.go: Single-active-plugin lifecycle manager
//
// The manager owns the session of the one active plugin. Start, stop, restart
// and pause are commands executed one at a time by the goroutine running
// Manager.Run, so a restart can never interleave with a concurrent start or
// stop. Readers use Session and IsScriptRunning, which never block.
//
// Event handlers run on the poster's goroutine. A handler that reacts to a
// PluginChanged notification must not call StartPlugin, StopPlugin or
// RestartPlugin synchronously: use RequestRestart, or hand the call to a
// TaskRunner.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	timecache "github.com/agilira/go-timecache"
)

// DefaultCommandQueueSize is the default capacity of the manager command queue.
const DefaultCommandQueueSize = 16

// Container instantiates plugin types and tracks the activated instances.
type Container interface {
	// LoadPlugins instantiates the types admitted by filter.
	LoadPlugins(types []*TypeHandle, filter func(*TypeHandle) bool) ([]Plugin, error)
	Add(p Plugin)
	Remove(p Plugin)
}

// ManagerConfig carries the collaborators of a Manager.
type ManagerConfig struct {
	Container Container      // required
	Gate      ActivationGate // required
	Store     ConfigStore    // required
	Bus       Bus            // required

	// Runner executes event-triggered restarts. Defaults to a goroutine per task.
	Runner    TaskRunner
	HostTypes *HostTypes
	Logger    Logger
	Metrics   *Metrics
	QueueSize int
}

type command struct {
	name  string
	run   func() error
	reply chan error
}

// Manager is the lifecycle manager.
type Manager struct {
	container Container
	gate      ActivationGate
	store     ConfigStore
	bus       Bus
	runner    TaskRunner
	host      *HostTypes
	logger    Logger
	metrics   *Metrics

	commands chan command
	started  atomic.Bool
	running  atomic.Bool
	ready    chan struct{}
	stopped  chan struct{}

	// session is written only by the command loop.
	session  Session
	snapshot atomic.Pointer[Session]

	unsubscribe func()
}

// NewManager validates cfg and subscribes the manager to its own notifications.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	switch {
	case cfg.Container == nil:
		return nil, NewConfigValidationError("lifecycle manager requires a container", nil)
	case cfg.Gate == nil:
		return nil, NewConfigValidationError("lifecycle manager requires an activation gate", nil)
	case cfg.Store == nil:
		return nil, NewConfigValidationError("lifecycle manager requires a configuration store", nil)
	case cfg.Bus == nil:
		return nil, NewConfigValidationError("lifecycle manager requires an event bus", nil)
	}

	logger := NewLogger(cfg.Logger).With("component", "lifecycle_manager")
	if cfg.HostTypes == nil {
		cfg.HostTypes = DefaultHostTypes()
	}
	if cfg.Runner == nil {
		cfg.Runner = goRunner{logger: logger}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultCommandQueueSize
	}

	m := &Manager{
		container: cfg.Container,
		gate:      cfg.Gate,
		store:     cfg.Store,
		bus:       cfg.Bus,
		runner:    cfg.Runner,
		host:      cfg.HostTypes,
		logger:    logger,
		metrics:   cfg.Metrics,
		commands:  make(chan command, cfg.QueueSize),
		ready:     make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	m.snapshot.Store(&Session{})
	m.unsubscribe = Subscribe(cfg.Bus, m.onPluginChanged)
	return m, nil
}

// Run executes lifecycle commands until ctx is cancelled. Commands still
// queued at that point fail with LIFECYCLE_3008.
func (m *Manager) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("lifecycle manager can only be run once")
	}
	m.running.Store(true)
	close(m.ready)
	m.logger.Debug("Lifecycle manager started")

	for {
		select {
		case <-ctx.Done():
			m.running.Store(false)
			close(m.stopped)
			m.drain(ctx.Err())
			m.unsubscribe()
			m.logger.Debug("Lifecycle manager stopped")
			return nil
		case cmd := <-m.commands:
			cmd.reply <- m.execute(cmd)
		}
	}
}

func (m *Manager) execute(cmd command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(m.logger, "lifecycle:"+cmd.name, r)
			err = fmt.Errorf("%s panicked: %v", cmd.name, r)
		}
	}()
	return cmd.run()
}

func (m *Manager) drain(cause error) {
	for {
		select {
		case cmd := <-m.commands:
			cmd.reply <- NewManagerStoppedError(cause)
		default:
			return
		}
	}
}

// submit queues fn and waits for its result.
func (m *Manager) submit(ctx context.Context, name string, fn func() error) error {
	if !m.running.Load() {
		return NewManagerNotRunningError()
	}
	cmd := command{name: name, run: fn, reply: make(chan error, 1)}

	select {
	case m.commands <- cmd:
	case <-m.stopped:
		return NewManagerStoppedError(context.Canceled)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-m.stopped:
		return NewManagerStoppedError(context.Canceled)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartPlugin instantiates and activates the plugin described by entry. An
// active plugin is stopped first.
//
// A gate refusal is not an error: the call returns nil and no session is recorded.
func (m *Manager) StartPlugin(ctx context.Context, entry *CatalogEntry, args ...string) error {
	return m.submit(ctx, "start", func() error {
		return m.start(entry, args)
	})
}

// StopPlugin deactivates the active plugin. It is a no-op without a session.
func (m *Manager) StopPlugin(ctx context.Context) error {
	return m.submit(ctx, "stop", m.stop)
}

// RestartPlugin stops the active plugin and starts its entry again with the
// recorded arguments, as one command. Without a session it fails like a start
// with no entry.
func (m *Manager) RestartPlugin(ctx context.Context) error {
	return m.submit(ctx, "restart", m.restart)
}

// PauseScript pauses the active plugin when it is Pausable.
func (m *Manager) PauseScript(ctx context.Context) error {
	return m.submit(ctx, "pause", func() error {
		p, ok := m.session.Plugin.(Pausable)
		if !m.session.Active() || !ok {
			return nil
		}
		if err := p.PauseScript(); err != nil {
			return NewScriptPauseError(p.Name(), err)
		}
		return nil
	})
}

// Ready is closed once Run has started accepting commands.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

// Running reports whether the command loop is executing.
func (m *Manager) Running() bool { return m.running.Load() }

// IsScriptRunning reports whether a session is active and its plugin is Scriptable.
func (m *Manager) IsScriptRunning() bool {
	s := m.snapshot.Load()
	if !s.Active() {
		return false
	}
	_, ok := s.Plugin.(Scriptable)
	return ok
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() Session {
	s := *m.snapshot.Load()
	if s.Args != nil {
		s.Args = append([]string{}, s.Args...)
	}
	return s
}

// RequestRestart posts a RESTARTING notification for the active plugin.
// The restart itself runs on the task runner. It reports whether a plugin was active.
func (m *Manager) RequestRestart() bool {
	s := m.snapshot.Load()
	if !s.Active() {
		return false
	}
	m.post(s.Plugin, PluginRestarting)
	return true
}

func (m *Manager) start(entry *CatalogEntry, args []string) error {
	if entry == nil || entry.Type == nil {
		return NewInvalidCatalogEntryError()
	}
	typeName := entry.Type.Name()

	if m.session.Active() {
		if err := m.stop(); err != nil {
			return err
		}
		if m.session.Active() {
			m.logger.Warn("Start abandoned: active plugin was not stopped", "plugin_name", m.session.Plugin.Name())
			return nil
		}
	}

	plugins, err := m.container.LoadPlugins([]*TypeHandle{entry.Type}, func(t *TypeHandle) bool {
		return t == entry.Type
	})
	if err != nil {
		return NewInstantiationError(typeName, err)
	}
	if len(plugins) == 0 {
		return NewNoPluginInstanceError(typeName)
	}
	for _, extra := range plugins[1:] {
		releasePlugin(extra)
	}
	p := plugins[0]

	if !m.gate.StartPlugin(p) {
		m.logger.Warn("Plugin activation refused", "plugin_name", p.Name(), "type", typeName)
		releasePlugin(p)
		return nil
	}

	m.session = Session{Plugin: p, Entry: entry, Args: append([]string{}, args...)}
	m.container.Add(p)

	cfg, err := m.resolveConfig(p, entry.Type)
	if err != nil {
		m.rollback(p)
		return NewConfigResolutionError(p.Name(), err)
	}
	if cfg == nil {
		cfg = NoConfig
	} else if err := m.store.SetDefaultConfiguration(cfg, false); err != nil {
		m.rollback(p)
		return NewConfigResolutionError(p.Name(), err)
	}
	m.session.Config = cfg

	if s, ok := p.(Scriptable); ok {
		if err := s.OnStart(m.session.Args); err != nil {
			m.rollback(p)
			return NewScriptStartError(p.Name(), err)
		}
	}

	m.publish()
	m.logger.Info("Plugin started", "plugin_name", p.Name(), "type", typeName, "args", m.session.Args)
	m.post(p, PluginStarted)
	return nil
}

// rollback undoes a partially completed start.
func (m *Manager) rollback(p Plugin) {
	if !m.gate.StopPlugin(p) {
		m.logger.Warn("Activation gate refused stop during rollback", "plugin_name", p.Name())
	}
	m.container.Remove(p)
	m.session = Session{}
	m.publish()
}

func (m *Manager) stop() error {
	if !m.session.Active() {
		return nil
	}
	p := m.session.Plugin
	if !m.gate.StopPlugin(p) {
		m.logger.Warn("Plugin deactivation refused", "plugin_name", p.Name())
		return nil
	}
	m.post(p, PluginStopped)
	m.container.Remove(p)
	m.session = Session{}
	m.publish()
	m.logger.Info("Plugin stopped", "plugin_name", p.Name())
	return nil
}

func (m *Manager) restart() error {
	entry, args := m.session.Entry, m.session.Args
	if err := m.stop(); err != nil {
		return err
	}
	if m.session.Active() {
		m.logger.Warn("Restart abandoned: active plugin was not stopped", "plugin_name", m.session.Plugin.Name())
		return nil
	}
	return m.start(entry, args)
}

// resolveConfig asks the plugin for its configuration, then falls back to the
// configuration types bound in its injector within the plugin's namespace.
// When several bindings match, the last one visited wins.
func (m *Manager) resolveConfig(p Plugin, pluginType *TypeHandle) (Config, error) {
	if r, ok := p.(ConfigResolver); ok {
		cfg, found, err := r.ResolveConfig()
		if err != nil {
			return nil, err
		}
		if found {
			return cfg, nil
		}
	}

	provider, ok := p.(InjectorProvider)
	if !ok || provider.Injector() == nil {
		return nil, nil
	}
	namespace := pluginType.Namespace()

	var chosen Config
	matches := 0
	for _, key := range provider.Injector().Bindings() {
		if key.Type == nil || !key.Type.AssignableTo(m.host.Config()) {
			continue
		}
		if !inNamespace(key.Type.Namespace(), namespace) {
			continue
		}
		instance, err := provider.Injector().Instance(key)
		if err != nil {
			return nil, err
		}
		cfg, ok := instance.(Config)
		if !ok {
			return nil, fmt.Errorf("binding %s is not a configuration object", key.Type.Name())
		}
		chosen = cfg
		matches++
	}
	if matches > 1 {
		m.logger.Warn("Multiple configuration bindings matched, using the last one",
			"plugin_name", p.Name(), "matches", matches, "group", chosen.Group())
	}
	return chosen, nil
}

// inNamespace reports whether ns is root or nested under it. The empty root
// contains every namespace.
func inNamespace(ns, root string) bool {
	return root == "" || ns == root || strings.HasPrefix(ns, root+".")
}

func (m *Manager) publish() {
	s := m.session
	m.snapshot.Store(&s)
	m.metrics.SetActive(s.Active())
}

func (m *Manager) post(p Plugin, state PluginState) {
	m.metrics.Transition(state)
	m.bus.Post(PluginChanged{Plugin: p, State: state, At: timecache.CachedTime()})
}

func (m *Manager) onPluginChanged(e PluginChanged) {
	name := ""
	if e.Plugin != nil {
		name = e.Plugin.Name()
	}
	m.logger.Info("Plugin state changed", "plugin_name", name, "state", e.State.String())

	if e.State != PluginRestarting {
		return
	}
	err := m.runner.Submit("restart", func() {
		if err := m.RestartPlugin(context.Background()); err != nil {
			m.logger.Error("Plugin restart failed", "plugin_name", name, "error", err)
		}
	})
	if err != nil {
		m.logger.Error("Plugin restart not scheduled", "plugin_name", name, "error", err)
	}
}

// goRunner runs every task on its own goroutine.
type goRunner struct {
	logger Logger
}

func (r goRunner) Submit(name string, task func()) error {
	SafeGo(r.logger.With("task", name), task)
	return nil
}
