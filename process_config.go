// process_config.go: Process properties from flags, environment and defaults
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ProcessEnvPrefix prefixes the environment variables read by ProcessConfig.
const ProcessEnvPrefix = "PLUGINHOST"

// Process property keys.
const (
	PropWorld      = "world"
	PropConfig     = "config"
	PropPluginsDir = "plugins-dir"
	PropPlugin     = "plugin"
	PropControl    = "control"
)

// ProcessConfig holds the per-process properties: values given on the command
// line take precedence over PLUGINHOST_* environment variables.
type ProcessConfig struct {
	v *viper.Viper
}

// NewProcessConfig creates a property set bound to the PLUGINHOST_ environment.
func NewProcessConfig() *ProcessConfig {
	v := viper.New()
	v.SetEnvPrefix(ProcessEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return &ProcessConfig{v: v}
}

// BindFlags binds every flag of fs to the property of the same name.
func (p *ProcessConfig) BindFlags(fs *pflag.FlagSet) error {
	return p.v.BindPFlags(fs)
}

// Set overrides a property.
func (p *ProcessConfig) Set(key string, value any) {
	p.v.Set(key, value)
}

// RequestedWorld returns the raw world property when it was given.
func (p *ProcessConfig) RequestedWorld() (string, bool) {
	if !p.v.IsSet(PropWorld) {
		return "", false
	}
	return p.v.GetString(PropWorld), true
}

// ConfigPath returns the host configuration file path, if any.
func (p *ProcessConfig) ConfigPath() string { return p.v.GetString(PropConfig) }

// PluginsDir returns the plugins directory override, if any.
func (p *ProcessConfig) PluginsDir() string { return p.v.GetString(PropPluginsDir) }

// Plugin returns the name of the plugin to start at launch, if any.
func (p *ProcessConfig) Plugin() string { return p.v.GetString(PropPlugin) }

// ControlAddress returns the control server address override, if any.
func (p *ProcessConfig) ControlAddress() string { return p.v.GetString(PropControl) }
