// Package pluginhost hosts plugins shipped as .plugin archives and written as
// sandboxed Lua modules.
//
// Each archive is loaded by its own IsolatedLoader, so two archives may define
// types with the same qualified name without interfering. The only types an
// archive shares with the host are plugin.Plugin, plugin.Script and
// plugin.Config.
//
// Discovery scans a directory, loads every module entry of every archive and
// records the concrete types that extend plugin.Plugin and carry a descriptor:
//
//	discoverer := pluginhost.NewDiscoverer(pluginhost.DefaultHostTypes(), logger)
//	catalog := discoverer.Discover(ctx, "plugins")
//
// At most one plugin is active at a time. The Manager serializes start, stop,
// restart and pause requests on a single goroutine and publishes PluginChanged
// events on the Bus:
//
//	manager, err := pluginhost.NewManager(pluginhost.ManagerConfig{
//		Container: pluginhost.NewLuaContainer(host, store, logger),
//		Gate:      pluginhost.NewDefaultGate(logger),
//		Store:     store,
//		Bus:       bus,
//	})
//	go manager.Run(ctx)
//	err = manager.StartPlugin(ctx, &catalog[0], "--fast")
//
// Event handlers must not call the Manager's blocking methods; use
// RequestRestart or a TaskRunner instead.
//
// Two tick-driven helpers run next to the plugin. The IdleScheduler sends a
// short key press when the client has been idle for a randomly drawn number
// of ticks. The WorldSelector applies a requested world once, when the login
// screen is first reached.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package pluginhost
