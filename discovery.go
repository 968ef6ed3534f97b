// discovery.go: Plugin archive discovery
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	timecache "github.com/agilira/go-timecache"
)

// Discovery event types.
const (
	EventEntryDiscovered = "entry_discovered"
	EventEntrySkipped    = "entry_skipped"
	EventArchiveFailed   = "archive_failed"
)

// DiscoveryEventHandler handles discovery events for real-time notifications.
type DiscoveryEventHandler func(event DiscoveryEvent)

// DiscoveryEvent reports the outcome for one archive or module entry.
type DiscoveryEvent struct {
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Archive   string        `json:"archive"`
	Entry     string        `json:"entry,omitempty"`
	Catalog   *CatalogEntry `json:"catalog,omitempty"`
	Error     error         `json:"error,omitempty"`
}

// Discoverer scans a plugins directory and builds the plugin catalog.
//
// Every archive is opened with its own IsolatedLoader, which is closed before
// the next archive is processed. A failure in one archive or one entry is
// logged and skipped; it never aborts the pass.
//
// Example usage:
//
//	discoverer := NewDiscoverer(nil, logger)
//	for _, entry := range discoverer.Discover(ctx, "/opt/host/plugins") {
//	    fmt.Printf("%s (%s) from %s\n", entry.Descriptor.Name, entry.TypeName(), entry.Archive)
//	}
type Discoverer struct {
	host    *HostTypes
	logger  Logger
	metrics *Metrics

	mu            sync.RWMutex
	catalog       []CatalogEntry
	eventHandlers []DiscoveryEventHandler
}

// NewDiscoverer creates a discoverer. A nil host uses DefaultHostTypes.
func NewDiscoverer(host *HostTypes, logger Logger) *Discoverer {
	if host == nil {
		host = DefaultHostTypes()
	}
	return &Discoverer{
		host:   host,
		logger: NewLogger(logger).With("component", "discoverer"),
	}
}

// WithMetrics records discovery outcomes on m.
func (d *Discoverer) WithMetrics(m *Metrics) *Discoverer {
	d.metrics = m
	return d
}

// Discover returns the catalog entries found in dir, in archive listing order
// and then in entry order within each archive. An unreadable or missing
// directory yields an empty result.
func (d *Discoverer) Discover(ctx context.Context, dir string) []CatalogEntry {
	entries, err := os.ReadDir(dir)
	if err != nil {
		d.logger.Warn("Failed to read plugins directory", "error", NewDirectoryUnreadableError(dir, err))
		d.store(nil)
		return nil
	}

	var catalog []CatalogEntry
	for _, entry := range entries {
		if ctx.Err() != nil {
			d.logger.Warn("Plugin discovery interrupted", "directory", dir, "error", ctx.Err())
			break
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ArchiveSuffix) {
			continue
		}
		catalog = append(catalog, d.scanArchive(ctx, filepath.Join(dir, entry.Name()))...)
	}

	d.store(catalog)
	d.logger.Info("Plugin discovery completed", "directory", dir, "plugins_found", len(catalog))
	return append([]CatalogEntry(nil), catalog...)
}

// scanArchive loads every module entry of one archive.
func (d *Discoverer) scanArchive(ctx context.Context, path string) []CatalogEntry {
	var found []CatalogEntry

	err := WithArchive(path, d.host, d.logger, func(loader *IsolatedLoader) error {
		for _, entry := range loader.ModuleEntries() {
			if ctx.Err() != nil {
				return nil
			}
			if c, ok := d.inspectEntry(loader, path, entry); ok {
				found = append(found, c)
			}
		}
		return nil
	})
	if err != nil {
		err = NewArchiveSkippedError(path, err)
		d.logger.Warn("Failed to scan plugin archive", "archive", path, "error", err)
		d.metrics.DiscoveryOutcome(DiscoveryArchiveFailed)
		d.emitEvent(DiscoveryEvent{Type: EventArchiveFailed, Archive: path, Error: err})
	}
	return found
}

// inspectEntry decides whether one module entry is a concrete, described plugin.
func (d *Discoverer) inspectEntry(loader *IsolatedLoader, archive, entry string) (CatalogEntry, bool) {
	skip := func(reason string, err error) (CatalogEntry, bool) {
		if err != nil {
			d.logger.Warn("Failed to load module entry", "archive", archive, "entry", entry, "error", err)
		} else {
			d.logger.Debug("Module entry is not a plugin", "archive", archive, "entry", entry, "reason", reason)
		}
		d.metrics.DiscoveryOutcome(DiscoverySkipped)
		d.emitEvent(DiscoveryEvent{Type: EventEntrySkipped, Archive: archive, Entry: entry, Error: err})
		return CatalogEntry{}, false
	}

	if err := validateEntryName(entry); err != nil {
		return skip("invalid entry name", err)
	}
	name, err := QualifiedName(entry)
	if err != nil {
		return skip("invalid entry name", err)
	}
	t, err := loader.LoadType(name)
	if err != nil {
		return skip("load failed", err)
	}

	switch descriptors := t.Descriptors(); {
	case !t.AssignableTo(d.host.Plugin()):
		return skip("not a plugin type", nil)
	case t.Abstract():
		return skip("abstract type", nil)
	case len(descriptors) == 0:
		return skip("no descriptor", nil)
	default:
		c := CatalogEntry{Type: t, Descriptor: descriptors[0], Archive: archive}
		d.logger.Debug("Discovered plugin", "name", c.Descriptor.Name, "type", name, "archive", archive)
		d.metrics.DiscoveryOutcome(DiscoveryAccepted)
		d.emitEvent(DiscoveryEvent{Type: EventEntryDiscovered, Archive: archive, Entry: entry, Catalog: &c})
		return c, true
	}
}

// validateEntryName rejects entry names that try to escape the archive root
// or carry control characters.
func validateEntryName(entry string) error {
	if filepath.IsAbs(entry) || strings.HasPrefix(entry, "/") {
		return fmt.Errorf("absolute entry path %q", entry)
	}
	for _, seg := range strings.Split(entry, "/") {
		if seg == ".." {
			return fmt.Errorf("path traversal in entry %q", entry)
		}
	}
	for _, r := range entry {
		if r < 32 || r == 127 || r == '\\' {
			return fmt.Errorf("invalid character in entry %q", entry)
		}
	}
	return nil
}

func (d *Discoverer) store(catalog []CatalogEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.catalog = catalog
}

// LastCatalog returns the result of the most recent discovery pass.
func (d *Discoverer) LastCatalog() []CatalogEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]CatalogEntry(nil), d.catalog...)
}

// Find returns the first entry of the last pass whose descriptor carries name.
func (d *Discoverer) Find(name string) (*CatalogEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i := range d.catalog {
		if d.catalog[i].Descriptor.Name == name {
			c := d.catalog[i]
			return &c, nil
		}
	}
	return nil, NewEntryNotFoundError(name)
}

// AddEventHandler registers a handler for discovery events.
func (d *Discoverer) AddEventHandler(handler DiscoveryEventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventHandlers = append(d.eventHandlers, handler)
}

func (d *Discoverer) emitEvent(event DiscoveryEvent) {
	event.Timestamp = timecache.CachedTime()

	d.mu.RLock()
	handlers := append([]DiscoveryEventHandler(nil), d.eventHandlers...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer withComponentRecover(d.logger, "discovery_event_handler")()
			handler(event)
		}()
	}
}
