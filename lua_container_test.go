// lua_container_test.go: Tests for Lua plugin instantiation and injection
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterModule = `
local Counter = { extends = "plugin.Plugin", descriptor = { name = "Counter" } }
function Counter:start_up()
  hits = (hits or 0) + 1
  log.info("start_up", "hits", hits)
end
return Counter
`

func loadOne(t *testing.T, c *LuaContainer, entry *CatalogEntry) Plugin {
	t.Helper()
	plugins, err := c.LoadPlugins([]*TypeHandle{entry.Type}, nil)
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	t.Cleanup(func() { releasePlugin(plugins[0]) })
	return plugins[0]
}

func TestLuaContainer_Instances(t *testing.T) {
	t.Run("InstancesDoNotShareGlobals", func(t *testing.T) {
		logger := NewTestLogger()
		c := NewLuaContainer(nil, nil, logger)
		entry := catalogEntry(t, map[string]string{"a/Counter.lua": counterModule}, "a.Counter")

		first := loadOne(t, c, entry).(Lifecycle)
		second := loadOne(t, c, entry).(Lifecycle)
		require.NoError(t, first.StartUp())
		require.NoError(t, second.StartUp())
		require.NoError(t, first.StartUp())

		var hits []string
		for _, m := range logger.Messages() {
			if m.Message == "start_up" {
				v, _ := m.Arg("hits")
				hits = append(hits, v.(string))
			}
		}
		assert.Equal(t, []string{"1", "1", "2"}, hits)
	})

	t.Run("ScriptTypesAreScriptable", func(t *testing.T) {
		c := NewLuaContainer(nil, nil, NewTestLogger())

		script := loadOne(t, c, catalogEntry(t, map[string]string{"net/acme/wood/Woodcutter.lua": woodcutterModule}, "net.acme.wood.Woodcutter"))
		_, ok := script.(Scriptable)
		assert.True(t, ok)
		_, ok = script.(Pausable)
		assert.True(t, ok)
		assert.Equal(t, "Woodcutter", script.Name())

		plain := loadOne(t, c, catalogEntry(t, map[string]string{"a/Counter.lua": counterModule}, "a.Counter"))
		_, ok = plain.(Scriptable)
		assert.False(t, ok)
	})

	t.Run("InheritedHooks", func(t *testing.T) {
		logger := NewTestLogger()
		c := NewLuaContainer(nil, nil, logger)
		entry := catalogEntry(t, map[string]string{
			"a/Base.lua": `
local Base = { extends = "plugin.Script", abstract = true }
function Base:on_start(args) log.info("base on_start", "first", args[1], "name", self.name) end
return Base`,
			"a/Child.lua": `return { extends = "a.Base", descriptor = { name = "Child" } }`,
		}, "a.Child")

		p := loadOne(t, c, entry).(Scriptable)
		require.NoError(t, p.OnStart([]string{"go"}))

		msgs := logger.Messages()
		var found bool
		for _, m := range msgs {
			if m.Message == "base on_start" {
				first, _ := m.Arg("first")
				name, _ := m.Arg("name")
				assert.Equal(t, "go", first)
				assert.Equal(t, "Child", name)
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("SkipsAbstractAndFilteredTypes", func(t *testing.T) {
		c := NewLuaContainer(nil, nil, NewTestLogger())
		loader := openTestArchive(t, map[string]string{
			"a/Base.lua":  `return { extends = "plugin.Plugin", abstract = true }`,
			"a/Util.lua":  `return {}`,
			"a/Child.lua": `return { extends = "a.Base" }`,
		})
		var types []*TypeHandle
		for _, name := range []string{"a.Base", "a.Util", "a.Child"} {
			typ, err := loader.LoadType(name)
			require.NoError(t, err)
			types = append(types, typ)
		}

		plugins, err := c.LoadPlugins(types, nil)
		require.NoError(t, err)
		require.Len(t, plugins, 1)
		assert.Equal(t, "a.Child", plugins[0].Name())
		releasePlugin(plugins[0])

		plugins, err = c.LoadPlugins(types, func(*TypeHandle) bool { return false })
		require.NoError(t, err)
		assert.Empty(t, plugins)
	})

	t.Run("HookErrorsAreReturned", func(t *testing.T) {
		c := NewLuaContainer(nil, nil, NewTestLogger())
		entry := catalogEntry(t, map[string]string{"a/Bad.lua": `
local Bad = { extends = "plugin.Plugin" }
function Bad:start_up() error("refusing") end
return Bad`}, "a.Bad")

		p := loadOne(t, c, entry).(Lifecycle)
		err := p.StartUp()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "refusing")

		// Test: a missing hook is not an error
		assert.NoError(t, p.ShutDown())
	})

	t.Run("ClosedInstanceRejectsCalls", func(t *testing.T) {
		c := NewLuaContainer(nil, nil, NewTestLogger())
		p := loadOne(t, c, catalogEntry(t, map[string]string{"a/Counter.lua": counterModule}, "a.Counter"))

		releasePlugin(p)
		assert.Error(t, p.(Lifecycle).StartUp())
	})
}

func TestLuaContainer_InjectionAndConfig(t *testing.T) {
	files := map[string]string{
		"net/acme/wood/Settings.lua": `return { extends = "plugin.Config", group = "wood", defaults = { speed = "3", mode = "fast" } }`,
		"net/acme/wood/Axe.lua": `
local Axe = {}
function Axe:swing() return "swing" end
return Axe`,
		"net/acme/wood/Cutter.lua": `
local Cutter = {
  extends = "plugin.Plugin",
  descriptor = { name = "Cutter" },
  config = "net.acme.wood.Settings",
  inject = { "net.acme.wood.Axe", "net.acme.wood.Settings" },
}
function Cutter:start_up()
  log.info("injected",
    "axe", self.services["net.acme.wood.Axe"]:swing(),
    "default", self.services["net.acme.wood.Settings"].speed,
    "stored", tostring(config.get("speed")),
    "other", tostring(config.get("x", "elsewhere")))
end
return Cutter`,
	}

	logger := NewTestLogger()
	store := NewMemoryConfigStore()
	store.Set("wood", "speed", "7")
	store.Set("elsewhere", "x", "y")
	c := NewLuaContainer(nil, store, logger)
	entry := catalogEntry(t, files, "net.acme.wood.Cutter")

	p := loadOne(t, c, entry)
	require.NoError(t, p.(Lifecycle).StartUp())

	var msg TestLogMessage
	for _, m := range logger.Messages() {
		if m.Message == "injected" {
			msg = m
		}
	}
	for key, want := range map[string]string{"axe": "swing", "default": "3", "stored": "7", "other": "y"} {
		got, ok := msg.Arg(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	t.Run("ExplicitConfig", func(t *testing.T) {
		cfg, found, err := p.(ConfigResolver).ResolveConfig()
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "wood", cfg.Group())
		assert.Equal(t, map[string]string{"speed": "3", "mode": "fast"}, cfg.Defaults())
	})

	t.Run("InjectorBindings", func(t *testing.T) {
		inj := p.(InjectorProvider).Injector()
		keys := inj.Bindings()
		require.Len(t, keys, 2)

		axe, err := inj.Instance(keys[0])
		require.NoError(t, err)
		assert.Equal(t, "net.acme.wood.Axe", axe.(*luaObject).TypeHandle().Name())

		settings, err := inj.Instance(keys[1])
		require.NoError(t, err)
		assert.Equal(t, "wood", settings.(Config).Group())
	})

	t.Run("RegistryTracksActivatedPlugins", func(t *testing.T) {
		c.Add(p)
		assert.Len(t, c.Plugins(), 1)
		c.Remove(p)
		assert.Empty(t, c.Plugins())
	})
}

func TestTypeConfig_GroupFallsBackToTypeName(t *testing.T) {
	loader := openTestArchive(t, map[string]string{"a/Plain.lua": `return { extends = "plugin.Config", defaults = { k = "v" } }`})
	typ, err := loader.LoadType("a.Plain")
	require.NoError(t, err)

	cfg := NewTypeConfig(typ)
	assert.Equal(t, "a.Plain", cfg.Group())
	assert.Same(t, typ, cfg.Type())
}
