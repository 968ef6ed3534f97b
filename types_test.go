// types_test.go: Tests for the shared host types
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluginState_String(t *testing.T) {
	assert.Equal(t, "STARTED", PluginStarted.String())
	assert.Equal(t, "STOPPED", PluginStopped.String())
	assert.Equal(t, "RESTARTING", PluginRestarting.String())
	assert.Equal(t, "UNKNOWN", PluginState(0).String())
}

func TestGameState_String(t *testing.T) {
	tests := map[GameState]string{
		GameStateUnknown:     "UNKNOWN",
		GameStateStarting:    "STARTING",
		GameStateLoginScreen: "LOGIN_SCREEN",
		GameStateLoggingIn:   "LOGGING_IN",
		GameStateLoading:     "LOADING",
		GameStateLoggedIn:    "LOGGED_IN",
		GameStateHopping:     "HOPPING",
	}
	for state, want := range tests {
		assert.Equal(t, want, state.String())
	}
}

func TestSession_Active(t *testing.T) {
	assert.False(t, Session{}.Active())
	assert.True(t, Session{Plugin: &bareGatePlugin{name: "x"}, Config: NoConfig}.Active())
}

func TestCatalogEntry_TypeName(t *testing.T) {
	var nilEntry *CatalogEntry
	assert.Equal(t, "", nilEntry.TypeName())
	assert.Equal(t, "", (&CatalogEntry{}).TypeName())
}

func TestNoConfig(t *testing.T) {
	assert.Equal(t, "", NoConfig.Group())
	assert.Nil(t, NoConfig.Defaults())
}
