// process_config_test.go: Tests for process properties
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessConfig(t *testing.T) {
	t.Run("Unset", func(t *testing.T) {
		p := NewProcessConfig()
		_, ok := p.RequestedWorld()
		assert.False(t, ok)
		assert.Empty(t, p.Plugin())
	})

	t.Run("Environment", func(t *testing.T) {
		t.Setenv("PLUGINHOST_WORLD", "350")
		t.Setenv("PLUGINHOST_PLUGINS_DIR", "/srv/plugins")

		p := NewProcessConfig()
		world, ok := p.RequestedWorld()
		assert.True(t, ok)
		assert.Equal(t, "350", world)
		assert.Equal(t, "/srv/plugins", p.PluginsDir())
	})

	t.Run("FlagsOverrideEnvironment", func(t *testing.T) {
		t.Setenv("PLUGINHOST_PLUGIN", "Fisher")

		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String(PropPlugin, "", "")
		fs.String(PropControl, "", "")
		fs.String(PropConfig, "", "")
		require.NoError(t, fs.Parse([]string{"--plugin", "Woodcutter", "--config", "host.yaml"}))

		p := NewProcessConfig()
		require.NoError(t, p.BindFlags(fs))
		assert.Equal(t, "Woodcutter", p.Plugin())
		assert.Equal(t, "host.yaml", p.ConfigPath())
		assert.Empty(t, p.ControlAddress())
	})

	t.Run("Set", func(t *testing.T) {
		p := NewProcessConfig()
		p.Set(PropWorld, 42)
		world, ok := p.RequestedWorld()
		assert.True(t, ok)
		assert.Equal(t, "42", world)
	})
}
