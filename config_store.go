// config_store.go: Plugin configuration store
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"sort"
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// ConfigStore receives the default values of a plugin's configuration object.
type ConfigStore interface {
	// SetDefaultConfiguration stores cfg's defaults. Existing values are kept
	// unless overwrite is true.
	SetDefaultConfiguration(cfg Config, overwrite bool) error
}

// MemoryConfigStore is an in-process ConfigStore keyed by "group.key".
type MemoryConfigStore struct {
	values cmap.ConcurrentMap[string, string]
}

// NewMemoryConfigStore creates an empty store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{values: cmap.New[string]()}
}

func storeKey(group, key string) string {
	return group + "." + key
}

// SetDefaultConfiguration stores the defaults of cfg under its group. NoConfig is ignored.
func (s *MemoryConfigStore) SetDefaultConfiguration(cfg Config, overwrite bool) error {
	if cfg == nil || cfg == NoConfig {
		return nil
	}
	group := strings.TrimSpace(cfg.Group())
	if group == "" {
		return NewConfigStoreError("", fmt.Errorf("configuration group is empty"))
	}
	for key, value := range cfg.Defaults() {
		s.values.Upsert(storeKey(group, key), value, func(exist bool, inMap, newValue string) string {
			if exist && !overwrite {
				return inMap
			}
			return newValue
		})
	}
	return nil
}

// Get returns the stored value of key in group.
func (s *MemoryConfigStore) Get(group, key string) (string, bool) {
	return s.values.Get(storeKey(group, key))
}

// Set stores a value, replacing any default.
func (s *MemoryConfigStore) Set(group, key, value string) {
	s.values.Set(storeKey(group, key), value)
}

// Group returns every key of group with its value.
func (s *MemoryConfigStore) Group(group string) map[string]string {
	prefix := group + "."
	out := make(map[string]string)
	for k, v := range s.values.Items() {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

// Groups returns the sorted names of every stored group.
func (s *MemoryConfigStore) Groups() []string {
	seen := make(map[string]struct{})
	for _, k := range s.values.Keys() {
		if i := strings.LastIndexByte(k, '.'); i > 0 {
			seen[k[:i]] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
