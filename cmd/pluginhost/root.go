// root.go: Root command, global flags and logger setup
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	pluginhost "github.com/agilira/go-pluginhost"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand.
type app struct {
	props    *pluginhost.ProcessConfig
	logLevel string
	zap      *pluginhost.ZapAdapter
	logger   pluginhost.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{props: pluginhost.NewProcessConfig()}

	root := &cobra.Command{
		Use:           "pluginhost",
		Short:         "Host for sandboxed Lua plugins packaged as .plugin archives",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.props.BindFlags(cmd.Flags()); err != nil {
				return err
			}
			return a.initLogger()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.zap != nil {
				_ = a.zap.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String(pluginhost.PropConfig, "", "host configuration file (yaml, json or toml)")
	flags.String(pluginhost.PropPluginsDir, "", "directory scanned for "+pluginhost.ArchiveSuffix+" archives")
	flags.String(pluginhost.PropControl, "", "control server address (host:port)")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(newDiscoverCommand(a), newRunCommand(a), newCtlCommand(a))
	return root
}

func (a *app) initLogger() error {
	z, err := pluginhost.NewProductionZapAdapter(a.logLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.zap = z
	a.logger = z
	return nil
}

// hostConfig loads the file named by --config, or the defaults when none is given.
func (a *app) hostConfig() (pluginhost.HostConfig, error) {
	path := a.props.ConfigPath()
	if path == "" {
		return pluginhost.DefaultHostConfig(), nil
	}
	return pluginhost.LoadHostConfig(path)
}

func (a *app) pluginsDir(cfg pluginhost.HostConfig) string {
	if dir := a.props.PluginsDir(); dir != "" {
		return dir
	}
	return cfg.PluginsDir
}

func (a *app) controlAddress(cfg pluginhost.HostConfig) string {
	if addr := a.props.ControlAddress(); addr != "" {
		return addr
	}
	return cfg.ControlAddress
}
