// config_store_test.go: Tests for the in-memory configuration store
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

type staticConfig struct {
	group    string
	defaults map[string]string
}

func (c staticConfig) Group() string               { return c.group }
func (c staticConfig) Defaults() map[string]string { return c.defaults }

func TestMemoryConfigStore(t *testing.T) {
	t.Run("DefaultsDoNotOverwrite", func(t *testing.T) {
		store := NewMemoryConfigStore()
		store.Set("wood", "speed", "9")

		cfg := staticConfig{group: "wood", defaults: map[string]string{"speed": "5", "tree": "oak"}}
		require.NoError(t, store.SetDefaultConfiguration(cfg, false))

		assert.Equal(t, map[string]string{"speed": "9", "tree": "oak"}, store.Group("wood"))
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := NewMemoryConfigStore()
		store.Set("wood", "speed", "9")

		cfg := staticConfig{group: "wood", defaults: map[string]string{"speed": "5"}}
		require.NoError(t, store.SetDefaultConfiguration(cfg, true))

		v, ok := store.Get("wood", "speed")
		assert.True(t, ok)
		assert.Equal(t, "5", v)
	})

	t.Run("NoConfigIgnored", func(t *testing.T) {
		store := NewMemoryConfigStore()
		require.NoError(t, store.SetDefaultConfiguration(NoConfig, true))
		require.NoError(t, store.SetDefaultConfiguration(nil, true))
		assert.Empty(t, store.Groups())
	})

	t.Run("EmptyGroup", func(t *testing.T) {
		err := NewMemoryConfigStore().SetDefaultConfiguration(staticConfig{group: " "}, false)
		require.Error(t, err)
		assert.Equal(t, ErrCodeConfigStoreError, errorCode(err))
	})

	t.Run("Groups", func(t *testing.T) {
		store := NewMemoryConfigStore()
		store.Set("wood", "a", "1")
		store.Set("mining", "b", "2")
		store.Set("fish", "c", "3")

		assert.Equal(t, []string{"fish", "mining", "wood"}, store.Groups())
		assert.Equal(t, map[string]string{"c": "3"}, store.Group("fish"))
		_, ok := store.Get("wood", "missing")
		assert.False(t, ok)
	})
}
