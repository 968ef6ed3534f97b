// config_loader.go: Host configuration model and multi-format loading
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

const maxConfigFileSize = 10 << 20

// HostConfig is the hot-reloadable host configuration.
//
// Example YAML:
//
//	humanize: true
//	plugins_dir: ${HOME}/.pluginhost/plugins
//	pool_size: 8
//	control_address: 127.0.0.1:7070
//	metrics_address: 127.0.0.1:9090
//	world_directory_url: https://worlds.example.com/list.json
//	log_level: info
//	tick_interval: 600ms
type HostConfig struct {
	// Humanize enables the idle scheduler.
	Humanize bool `json:"humanize" yaml:"humanize"`

	PluginsDir        string   `json:"plugins_dir" yaml:"plugins_dir"`
	PoolSize          int      `json:"pool_size" yaml:"pool_size"`
	ControlAddress    string   `json:"control_address" yaml:"control_address"`
	MetricsAddress    string   `json:"metrics_address" yaml:"metrics_address"`
	WorldDirectoryURL string   `json:"world_directory_url" yaml:"world_directory_url"`
	LogLevel          string   `json:"log_level" yaml:"log_level"`
	TickInterval      string   `json:"tick_interval" yaml:"tick_interval"`
	DeniedPlugins     []string `json:"denied_plugins,omitempty" yaml:"denied_plugins,omitempty"`
}

// DefaultHostConfig returns the configuration used when no file is given.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		PluginsDir:     "plugins",
		PoolSize:       DefaultPoolSize,
		ControlAddress: "127.0.0.1:7070",
		LogLevel:       "info",
		TickInterval:   DefaultTickInterval.String(),
	}
}

// Tick returns the parsed tick interval, or DefaultTickInterval when unset.
func (c HostConfig) Tick() time.Duration {
	if d, err := time.ParseDuration(c.TickInterval); err == nil && d > 0 {
		return d
	}
	return DefaultTickInterval
}

// Validate checks every field that has a constrained format.
func (c HostConfig) Validate() error {
	if strings.TrimSpace(c.PluginsDir) == "" {
		return NewConfigValidationError("plugins_dir is required", nil)
	}
	if c.PoolSize < 1 || c.PoolSize > 1024 {
		return NewConfigValidationError(fmt.Sprintf("pool_size must be in [1, 1024], got %d", c.PoolSize), nil)
	}
	for field, addr := range map[string]string{"control_address": c.ControlAddress, "metrics_address": c.MetricsAddress} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return NewConfigValidationError(field+" is not host:port", err)
		}
	}
	if c.WorldDirectoryURL != "" {
		u, err := url.Parse(c.WorldDirectoryURL)
		if err != nil {
			return NewConfigValidationError("world_directory_url is not a URL", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return NewConfigValidationError("world_directory_url must use http or https", nil)
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return NewConfigValidationError("log_level must be debug, info, warn or error", nil)
	}
	if c.TickInterval != "" {
		d, err := time.ParseDuration(c.TickInterval)
		if err != nil {
			return NewConfigValidationError("tick_interval is not a duration", err)
		}
		if d < 10*time.Millisecond {
			return NewConfigValidationError("tick_interval must be at least 10ms", nil)
		}
	}
	return nil
}

// LoadHostConfig reads, expands and validates a configuration file.
//
// JSON and TOML are parsed by argus; YAML goes through gopkg.in/yaml.v3.
// Unset fields take their DefaultHostConfig value.
func LoadHostConfig(path string) (HostConfig, error) {
	cfg := DefaultHostConfig()

	data, err := readConfigFile(path)
	if err != nil {
		return cfg, err
	}

	switch format := argus.DetectFormat(path); format {
	case argus.FormatYAML:
		err = yaml.Unmarshal(data, &cfg)
	case argus.FormatJSON, argus.FormatTOML:
		var values map[string]interface{}
		values, err = argus.ParseConfig(data, format)
		if err == nil {
			err = bindConfigMap(values, &cfg)
		}
	default:
		return cfg, NewConfigParseError(path, fmt.Errorf("unsupported config format: %s", filepath.Ext(path)))
	}
	if err != nil {
		return cfg, NewConfigParseError(path, err)
	}

	if err := expandHostConfig(&cfg, DefaultEnvConfigOptions()); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, NewConfigPathError(path, "empty config file path")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewConfigNotFoundError(path)
		}
		return nil, NewConfigPathError(path, err.Error())
	}
	if !info.Mode().IsRegular() {
		return nil, NewConfigPathError(path, "not a regular file")
	}
	if info.Size() > maxConfigFileSize {
		return nil, NewConfigPathError(path, fmt.Sprintf("config file too large: %d bytes", info.Size()))
	}
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- operator supplied config path
	if err != nil {
		return nil, NewConfigPathError(path, err.Error())
	}
	if len(data) == 0 {
		return nil, NewConfigPathError(path, "config file is empty")
	}
	return data, nil
}

// bindConfigMap decodes a generic map into cfg through JSON.
func bindConfigMap(values map[string]interface{}, cfg *HostConfig) error {
	if values == nil {
		return fmt.Errorf("configuration map is nil")
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, cfg)
}

func expandHostConfig(cfg *HostConfig, options EnvConfigOptions) error {
	for _, field := range []*string{
		&cfg.PluginsDir,
		&cfg.ControlAddress,
		&cfg.MetricsAddress,
		&cfg.WorldDirectoryURL,
		&cfg.LogLevel,
		&cfg.TickInterval,
	} {
		expanded, err := ExpandEnvironmentVariables(*field, options)
		if err != nil {
			return err
		}
		*field = expanded
	}
	for i, name := range cfg.DeniedPlugins {
		expanded, err := ExpandEnvironmentVariables(name, options)
		if err != nil {
			return err
		}
		cfg.DeniedPlugins[i] = expanded
	}
	return nil
}
