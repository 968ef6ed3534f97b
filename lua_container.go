// lua_container.go: Dependency-injection container for Lua plugins
//
// The container instantiates plugin types discovered by the isolated loaders.
// Every instance gets its own Lua state: the class chain is rebuilt from the
// source snapshots carried by the type handles, so instances never share
// globals with each other or with the loaders that produced the handles.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ConfigReader exposes stored configuration values to plugins.
type ConfigReader interface {
	Get(group, key string) (string, bool)
}

// LuaContainer implements Container for Lua plugin types.
type LuaContainer struct {
	host    *HostTypes
	store   ConfigReader
	logger  Logger
	timeout time.Duration

	mu   sync.Mutex
	live map[Plugin]struct{}
}

// NewLuaContainer creates a container. store may be nil, in which case
// config.get always returns nil inside plugins.
func NewLuaContainer(host *HostTypes, store ConfigReader, logger Logger) *LuaContainer {
	if host == nil {
		host = DefaultHostTypes()
	}
	return &LuaContainer{
		host:    host,
		store:   store,
		logger:  NewLogger(logger).With("component", "lua_container"),
		timeout: DefaultEvalTimeout,
		live:    make(map[Plugin]struct{}),
	}
}

// LoadPlugins instantiates every concrete plugin type admitted by filter.
func (c *LuaContainer) LoadPlugins(types []*TypeHandle, filter func(*TypeHandle) bool) ([]Plugin, error) {
	var plugins []Plugin
	for _, t := range types {
		if t == nil || (filter != nil && !filter(t)) {
			continue
		}
		if t.Abstract() || !t.AssignableTo(c.host.Plugin()) {
			c.logger.Debug("Skipping non-instantiable type", "type", t.Name())
			continue
		}
		p, err := c.instantiate(t)
		if err != nil {
			for _, created := range plugins {
				releasePlugin(created)
			}
			return nil, err
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

// Add registers an activated plugin.
func (c *LuaContainer) Add(p Plugin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live[p] = struct{}{}
}

// Remove unregisters a plugin and releases its Lua state.
func (c *LuaContainer) Remove(p Plugin) {
	c.mu.Lock()
	delete(c.live, p)
	c.mu.Unlock()
	releasePlugin(p)
}

// Plugins returns the registered plugins.
func (c *LuaContainer) Plugins() []Plugin {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Plugin, 0, len(c.live))
	for p := range c.live {
		out = append(out, p)
	}
	return out
}

func (c *LuaContainer) instantiate(t *TypeHandle) (Plugin, error) {
	name := t.Name()
	if d := t.Descriptors(); len(d) > 0 {
		name = d[0].Name
	}
	logger := c.logger.With("plugin", name, "type", t.Name())

	L := newSandboxedState()
	classes := make(map[*TypeHandle]*lua.LTable)

	c.installGlobals(L, t, logger)

	self, err := c.newObject(L, t, classes)
	if err != nil {
		L.Close()
		return nil, err
	}

	inj := &luaInjector{configType: c.host.Config(), objects: make(map[*TypeHandle]*luaObject)}
	services := L.NewTable()
	for _, dep := range t.Injects() {
		inj.bindings = append(inj.bindings, BindingKey{Type: dep})
		if dep.AssignableTo(c.host.Config()) {
			services.RawSetString(dep.Name(), mapTable(L, dep.Defaults()))
			continue
		}
		obj, err := c.newObject(L, dep, classes)
		if err != nil {
			L.Close()
			return nil, err
		}
		inj.objects[dep] = &luaObject{typ: dep, table: obj}
		services.RawSetString(dep.Name(), obj)
	}
	self.RawSetString("services", services)
	self.RawSetString("name", lua.LString(name))

	p := &luaPlugin{
		typ:      t,
		name:     name,
		logger:   logger,
		timeout:  c.timeout,
		injector: inj,
		L:        L,
		self:     self,
	}
	if t.AssignableTo(c.host.Script()) {
		return &luaScript{luaPlugin: p}, nil
	}
	return p, nil
}

// newObject builds the class chain of t in L and returns a fresh instance table.
func (c *LuaContainer) newObject(L *lua.LState, t *TypeHandle, classes map[*TypeHandle]*lua.LTable) (*lua.LTable, error) {
	class, err := c.class(L, t, classes)
	if err != nil {
		return nil, err
	}
	obj := L.NewTable()
	meta := L.NewTable()
	meta.RawSetString("__index", class)
	L.SetMetatable(obj, meta)
	return obj, nil
}

func (c *LuaContainer) class(L *lua.LState, t *TypeHandle, classes map[*TypeHandle]*lua.LTable) (*lua.LTable, error) {
	if class, ok := classes[t]; ok {
		return class, nil
	}

	var class *lua.LTable
	if t.IsHostType() {
		class = L.NewTable()
	} else {
		ret, err := evalChunk(L, strings.ReplaceAll(t.Name(), ".", "/")+ModuleSuffix, t.source, c.timeout)
		if err != nil {
			return nil, NewTypeEvaluationError(t.Name(), err)
		}
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return nil, NewInvalidTypeDefinitionError(t.Name(), "module must return a table")
		}
		class = tbl
	}

	if t.Super() != nil {
		super, err := c.class(L, t.Super(), classes)
		if err != nil {
			return nil, err
		}
		meta := L.NewTable()
		meta.RawSetString("__index", super)
		L.SetMetatable(class, meta)
	}
	classes[t] = class
	return class, nil
}

// installGlobals exposes the log and config tables to the plugin.
func (c *LuaContainer) installGlobals(L *lua.LState, t *TypeHandle, logger Logger) {
	logFn := func(emit func(string, ...any)) lua.LGFunction {
		return func(L *lua.LState) int {
			msg := L.CheckString(1)
			var args []any
			for i := 2; i+1 <= L.GetTop(); i += 2 {
				args = append(args, L.Get(i).String(), L.Get(i+1).String())
			}
			emit(msg, args...)
			return 0
		}
	}
	logTable := L.NewTable()
	L.SetFuncs(logTable, map[string]lua.LGFunction{
		"debug": logFn(logger.Debug),
		"info":  logFn(logger.Info),
		"warn":  logFn(logger.Warn),
		"error": logFn(logger.Error),
	})
	L.SetGlobal("log", logTable)

	group := ""
	if ct := t.ConfigType(); ct != nil {
		group = NewTypeConfig(ct).Group()
	}
	configTable := L.NewTable()
	L.SetFuncs(configTable, map[string]lua.LGFunction{
		"get": func(L *lua.LState) int {
			key := L.CheckString(1)
			g := L.OptString(2, group)
			if c.store == nil || g == "" {
				L.Push(lua.LNil)
				return 1
			}
			if v, ok := c.store.Get(g, key); ok {
				L.Push(lua.LString(v))
				return 1
			}
			L.Push(lua.LNil)
			return 1
		},
	})
	L.SetGlobal("config", configTable)
}

func mapTable(L *lua.LState, m map[string]string) *lua.LTable {
	tbl := L.CreateTable(0, len(m))
	for k, v := range m {
		tbl.RawSetString(k, lua.LString(v))
	}
	return tbl
}

// releasePlugin closes the plugin's resources when it holds any.
func releasePlugin(p Plugin) {
	if closer, ok := p.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
