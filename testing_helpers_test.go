// testing_helpers_test.go: Shared test helpers for archives, catalogs and events
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goerrors "github.com/agilira/go-errors"
)

// writeArchive writes a .plugin archive holding files (entry name -> content)
// into dir and returns its path. Entries follow order when it is given.
func writeArchive(t *testing.T, dir, name string, files map[string]string, order ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create archive %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	names := order
	if len(names) == 0 {
		for entry := range files {
			names = append(names, entry)
		}
	}
	for _, entry := range names {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("Failed to add entry %s: %v", entry, err)
		}
		if _, err := w.Write([]byte(files[entry])); err != nil {
			t.Fatalf("Failed to write entry %s: %v", entry, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close archive %s: %v", path, err)
	}
	return path
}

// openTestArchive writes an archive and opens it, closing the loader on cleanup.
func openTestArchive(t *testing.T, files map[string]string) *IsolatedLoader {
	t.Helper()
	path := writeArchive(t, t.TempDir(), "test"+ArchiveSuffix, files)
	loader, err := OpenArchive(path, DefaultHostTypes(), NewTestLogger())
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	t.Cleanup(func() { _ = loader.Close() })
	return loader
}

// catalogEntry loads name from a fresh archive and wraps it as a catalog entry.
func catalogEntry(t *testing.T, files map[string]string, name string) *CatalogEntry {
	t.Helper()
	loader := openTestArchive(t, files)
	typ, err := loader.LoadType(name)
	if err != nil {
		t.Fatalf("Failed to load %s: %v", name, err)
	}
	entry := &CatalogEntry{Type: typ, Archive: loader.Path()}
	if d := typ.Descriptors(); len(d) > 0 {
		entry.Descriptor = d[0]
	}
	return entry
}

// eventRecorder collects events of type E posted on a bus.
type eventRecorder[E any] struct {
	mu     sync.Mutex
	events []E
}

func recordEvents[E any](t *testing.T, bus Bus) *eventRecorder[E] {
	t.Helper()
	r := &eventRecorder[E]{}
	t.Cleanup(Subscribe(bus, func(e E) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	}))
	return r
}

func (r *eventRecorder[E]) Events() []E {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]E(nil), r.events...)
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// syncRunner runs tasks inline.
type syncRunner struct {
	mu    sync.Mutex
	names []string
}

func (r *syncRunner) Submit(name string, task func()) error {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	task()
	return nil
}

func (r *syncRunner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// errorCode returns the host error code carried by err, or "".
func errorCode(err error) string {
	var hostErr *goerrors.Error
	if errors.As(err, &hostErr) {
		return string(hostErr.Code)
	}
	return ""
}
