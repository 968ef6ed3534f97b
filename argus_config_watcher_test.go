// argus_config_watcher_test.go: Tests for the host configuration watcher
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"os"
	"testing"
	"time"

	"github.com/agilira/argus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, content string) (*HostConfigWatcher, string, *TestLogger) {
	t.Helper()
	path := writeConfigFile(t, "host.yaml", content)
	logger := NewTestLogger()

	opts := DefaultHostConfigWatcherOptions()
	opts.PollInterval = 50 * time.Millisecond
	opts.CacheTTL = 10 * time.Millisecond

	w, err := NewHostConfigWatcher(path, opts, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w, path, logger
}

func TestHostConfigWatcher_Lifecycle(t *testing.T) {
	w, _, _ := newTestWatcher(t, "humanize: true\n")

	// Test: defaults before the first load
	assert.Equal(t, DefaultHostConfig(), w.Current())
	assert.False(t, w.IsRunning())

	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())
	assert.True(t, w.Humanize())

	err := w.Start()
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfigWatcherError, errorCode(err))

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop())

	err = w.Start()
	assert.Equal(t, ErrCodeConfigWatcherError, errorCode(err))
}

func TestHostConfigWatcher_StartRejectsInvalidFile(t *testing.T) {
	w, _, _ := newTestWatcher(t, "pool_size: -1\n")

	err := w.Start()
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfigValidationError, errorCode(err))
	assert.False(t, w.IsRunning())
}

func TestHostConfigWatcher_Reload(t *testing.T) {
	w, path, logger := newTestWatcher(t, "humanize: false\n")
	require.NoError(t, w.Start())

	var changes [][2]bool
	w.OnChange(func(old, updated HostConfig) {
		changes = append(changes, [2]bool{old.Humanize, updated.Humanize})
	})
	w.OnChange(func(HostConfig, HostConfig) { panic("listener failure") })

	// Test: a valid change is applied and every listener is notified
	require.NoError(t, os.WriteFile(path, []byte("humanize: true\n"), 0600))
	w.reload(path)
	assert.True(t, w.Humanize())
	assert.Equal(t, [][2]bool{{false, true}}, changes)
	assert.True(t, logger.HasMessage("ERROR", "Panic recovered"))

	// Test: an invalid change keeps the current configuration
	require.NoError(t, os.WriteFile(path, []byte("log_level: trace\n"), 0600))
	w.reload(path)
	assert.True(t, w.Humanize())
	assert.Len(t, changes, 1)
	assert.True(t, logger.HasMessage("ERROR", "Rejected configuration change"))

	// Test: deleting the file keeps the current configuration
	w.handleChange(argus.ChangeEvent{Path: path, IsDelete: true})
	assert.True(t, w.Humanize())
	assert.True(t, logger.HasMessage("WARN", "Configuration file was deleted, keeping current configuration"))
}

func TestHostConfigWatcher_PicksUpFileChanges(t *testing.T) {
	w, path, _ := newTestWatcher(t, "humanize: false\n")
	require.NoError(t, w.Start())

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("humanize: true\npool_size: 3\n"), 0600))

	assert.True(t, waitFor(t, 5*time.Second, func() bool { return w.Current().PoolSize == 3 }))
}
