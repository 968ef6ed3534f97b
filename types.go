// types.go: Shared data types and capability interfaces
//
// This file holds the data model shared by the loader, the discoverer, the
// lifecycle manager and the event-driven schedulers, together with the small
// capability interfaces a plugin instance may implement.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"time"
)

// Descriptor is the registration metadata that marks a loadable type as a plugin.
//
// It is declared by the module itself (the `descriptor` field of the returned
// class table) and checked structurally at discovery time.
type Descriptor struct {
	Name             string   `json:"name" yaml:"name"`
	Description      string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags             []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	EnabledByDefault bool     `json:"enabled_by_default,omitempty" yaml:"enabled_by_default,omitempty"`
	Hidden           bool     `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// CatalogEntry pairs a discovered plugin type with the first descriptor it carries.
// Entries are immutable once produced by a discovery pass.
type CatalogEntry struct {
	Type       *TypeHandle `json:"-"`
	Descriptor Descriptor  `json:"descriptor"`
	Archive    string      `json:"archive"`
}

// TypeName returns the qualified name of the entry's type, or "" for a nil entry.
func (e *CatalogEntry) TypeName() string {
	if e == nil || e.Type == nil {
		return ""
	}
	return e.Type.Name()
}

// Plugin is the capability every plugin instance exposes.
type Plugin interface {
	Name() string
}

// Scriptable is the optional start-with-arguments capability.
type Scriptable interface {
	Plugin
	OnStart(args []string) error
}

// Pausable is the optional pause capability of a script.
type Pausable interface {
	Plugin
	PauseScript() error
}

// Lifecycle hooks are invoked by the default activation gate.
type Lifecycle interface {
	StartUp() error
	ShutDown() error
}

// Config is a plugin configuration object: a named group with default values.
type Config interface {
	Group() string
	Defaults() map[string]string
}

// ConfigResolver lets a plugin hand over its configuration object directly.
// The bool result is false when the plugin declares no configuration.
type ConfigResolver interface {
	ResolveConfig() (Config, bool, error)
}

// BindingKey identifies one binding of a plugin's private injector.
type BindingKey struct {
	Type *TypeHandle
}

// Injector enumerates and resolves the bindings private to one plugin instance.
type Injector interface {
	Bindings() []BindingKey
	Instance(key BindingKey) (any, error)
}

// InjectorProvider is implemented by plugins that carry a private injector.
type InjectorProvider interface {
	Injector() Injector
}

// PluginState is the state carried by a lifecycle notification.
type PluginState int

const (
	PluginStarted PluginState = iota + 1
	PluginStopped
	PluginRestarting
)

// String returns the wire name of the state.
func (s PluginState) String() string {
	switch s {
	case PluginStarted:
		return "STARTED"
	case PluginStopped:
		return "STOPPED"
	case PluginRestarting:
		return "RESTARTING"
	default:
		return "UNKNOWN"
	}
}

// PluginChanged is broadcast on every lifecycle transition.
type PluginChanged struct {
	Plugin Plugin
	State  PluginState
	At     time.Time
}

// Session is the state bundle of the single active plugin.
//
// Plugin, Entry, Args and Config are either all meaningful (Active) or all zero.
// A plugin without a configuration object records NoConfig rather than nil so
// the all-or-nothing rule holds.
type Session struct {
	Plugin Plugin
	Entry  *CatalogEntry
	Args   []string
	Config Config
}

// Active reports whether the session holds a running plugin.
func (s Session) Active() bool {
	return s.Plugin != nil
}

// NoConfig is the configuration recorded for plugins that declare none.
var NoConfig Config = emptyConfig{}

type emptyConfig struct{}

func (emptyConfig) Group() string               { return "" }
func (emptyConfig) Defaults() map[string]string { return nil }

// GameState is the host client state reported through GameStateChanged.
type GameState int

const (
	GameStateUnknown GameState = iota
	GameStateStarting
	GameStateLoginScreen
	GameStateLoggingIn
	GameStateLoading
	GameStateLoggedIn
	GameStateHopping
)

// String returns the state name.
func (s GameState) String() string {
	switch s {
	case GameStateStarting:
		return "STARTING"
	case GameStateLoginScreen:
		return "LOGIN_SCREEN"
	case GameStateLoggingIn:
		return "LOGGING_IN"
	case GameStateLoading:
		return "LOADING"
	case GameStateLoggedIn:
		return "LOGGED_IN"
	case GameStateHopping:
		return "HOPPING"
	default:
		return "UNKNOWN"
	}
}

// GameTick is posted once per host simulation tick.
type GameTick struct {
	Tick int64
}

// GameStateChanged is posted when the host client changes state.
type GameStateChanged struct {
	State GameState
}

// KeyCode identifies a simulated key.
type KeyCode int

// KeyUp is the arrow key pressed by the idle scheduler.
const KeyUp KeyCode = 38

// InputState reports how long the user has been idle, in ticks.
type InputState interface {
	KeyboardIdleTicks() int
	MouseIdleTicks() int
}

// KeyPresser simulates key input on the host.
type KeyPresser interface {
	Press(key KeyCode)
	Release(key KeyCode)
}

// WorldClient is the part of the host client the world selector drives.
type WorldClient interface {
	World() int
	CreateWorld() *WorldDescriptor
	ChangeWorld(world *WorldDescriptor)
}
