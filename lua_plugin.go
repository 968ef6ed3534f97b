// lua_plugin.go: Plugin instances backed by a private Lua state
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// TypeConfig is the configuration object of a configuration type: its group and
// the defaults the type declares.
type TypeConfig struct {
	typ *TypeHandle
}

// NewTypeConfig wraps a configuration type handle.
func NewTypeConfig(t *TypeHandle) *TypeConfig {
	return &TypeConfig{typ: t}
}

// Type returns the configuration type.
func (c *TypeConfig) Type() *TypeHandle { return c.typ }

// Group returns the declared group, or the qualified type name when none is declared.
func (c *TypeConfig) Group() string {
	if c.typ.Group() != "" {
		return c.typ.Group()
	}
	return c.typ.Name()
}

// Defaults returns the defaults declared by the configuration type.
func (c *TypeConfig) Defaults() map[string]string { return c.typ.Defaults() }

// luaObject is a non-configuration binding of a plugin injector.
type luaObject struct {
	typ   *TypeHandle
	table *lua.LTable
}

// TypeHandle returns the bound type.
func (o *luaObject) TypeHandle() *TypeHandle { return o.typ }

type luaInjector struct {
	configType *TypeHandle
	bindings   []BindingKey
	objects    map[*TypeHandle]*luaObject
}

func (i *luaInjector) Bindings() []BindingKey {
	return append([]BindingKey(nil), i.bindings...)
}

func (i *luaInjector) Instance(key BindingKey) (any, error) {
	if key.Type == nil {
		return nil, fmt.Errorf("binding without type")
	}
	if key.Type.AssignableTo(i.configType) {
		return NewTypeConfig(key.Type), nil
	}
	if obj, ok := i.objects[key.Type]; ok {
		return obj, nil
	}
	return nil, NewTypeNotFoundError(key.Type.Name())
}

// luaPlugin is a plugin instance. All calls into its Lua state are serialised.
type luaPlugin struct {
	typ      *TypeHandle
	name     string
	logger   Logger
	timeout  time.Duration
	injector *luaInjector

	mu     sync.Mutex
	L      *lua.LState
	self   *lua.LTable
	closed bool
}

func (p *luaPlugin) Name() string { return p.name }

// Type returns the handle the instance was created from.
func (p *luaPlugin) Type() *TypeHandle { return p.typ }

func (p *luaPlugin) StartUp() error  { return p.call("start_up") }
func (p *luaPlugin) ShutDown() error { return p.call("shut_down") }

func (p *luaPlugin) Injector() Injector { return p.injector }

// ResolveConfig returns the configuration type the plugin names explicitly.
func (p *luaPlugin) ResolveConfig() (Config, bool, error) {
	if p.typ.ConfigType() == nil {
		return nil, false, nil
	}
	return NewTypeConfig(p.typ.ConfigType()), true, nil
}

// Close releases the Lua state. Further hook calls fail.
func (p *luaPlugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.L.Close()
	return nil
}

func (p *luaPlugin) call(hook string, args ...lua.LValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("plugin %s: state closed", p.name)
	}
	found, err := callMethod(p.L, p.self, hook, p.timeout, args...)
	if err != nil {
		return fmt.Errorf("plugin %s: %s: %w", p.name, hook, err)
	}
	if !found {
		p.logger.Debug("Hook not defined", "hook", hook)
	}
	return nil
}

// luaScript is a plugin whose type extends the host script type.
type luaScript struct {
	*luaPlugin
}

func (s *luaScript) OnStart(args []string) error {
	s.mu.Lock()
	tbl := stringArgs(s.L, args)
	s.mu.Unlock()
	return s.call("on_start", tbl)
}

func (s *luaScript) PauseScript() error { return s.call("pause") }
