// isolated_loader.go: Per-archive type loading with namespace isolation
//
// Every plugin archive is opened by its own IsolatedLoader. The loader owns a
// private Lua state, so two archives that define the same qualified name never
// observe each other's definitions. The only types shared between loaders are
// the host base types.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	lua "github.com/yuin/gopher-lua"
)

const (
	// ArchiveSuffix identifies plugin archives in the plugins directory.
	ArchiveSuffix = ".plugin"
	// ModuleSuffix identifies class-like entries inside an archive.
	ModuleSuffix = ".lua"

	// Host base type names.
	PluginTypeName = "plugin.Plugin"
	ScriptTypeName = "plugin.Script"
	ConfigTypeName = "plugin.Config"

	maxModuleSize = 1 << 20
)

var loaderSeq atomic.Uint64

// TypeHandle is a loaded type. Handles are immutable and compared by identity:
// the same qualified name loaded by two loaders yields two distinct handles.
type TypeHandle struct {
	name        string
	loaderID    uint64
	archive     string
	super       *TypeHandle
	abstract    bool
	descriptors []Descriptor
	source      string
	injects     []*TypeHandle
	config      *TypeHandle
	group       string
	defaults    map[string]string
	host        bool
}

// Name returns the fully qualified name.
func (t *TypeHandle) Name() string { return t.name }

// Namespace returns the qualified name without its last segment.
func (t *TypeHandle) Namespace() string {
	if i := strings.LastIndexByte(t.name, '.'); i >= 0 {
		return t.name[:i]
	}
	return ""
}

// Super returns the type named by `extends`, or nil for a root type.
func (t *TypeHandle) Super() *TypeHandle { return t.super }

// Abstract reports whether the type is declared abstract.
func (t *TypeHandle) Abstract() bool { return t.abstract }

// Archive returns the path of the archive that defined the type.
func (t *TypeHandle) Archive() string { return t.archive }

// LoaderID identifies the loader that produced the handle.
func (t *TypeHandle) LoaderID() uint64 { return t.loaderID }

// IsHostType reports whether the type is one of the shared host base types.
func (t *TypeHandle) IsHostType() bool { return t.host }

// Injects returns the types bound in the plugin's private injector.
func (t *TypeHandle) Injects() []*TypeHandle { return append([]*TypeHandle(nil), t.injects...) }

// ConfigType returns the explicitly declared configuration type, if any.
func (t *TypeHandle) ConfigType() *TypeHandle { return t.config }

// Group returns the configuration group of a configuration type.
func (t *TypeHandle) Group() string { return t.group }

// Descriptors returns the plugin descriptors in declaration order.
func (t *TypeHandle) Descriptors() []Descriptor { return append([]Descriptor(nil), t.descriptors...) }

// Defaults returns a copy of the default values declared by a configuration type.
func (t *TypeHandle) Defaults() map[string]string {
	out := make(map[string]string, len(t.defaults))
	for k, v := range t.defaults {
		out[k] = v
	}
	return out
}

// AssignableTo reports whether target is reachable from t through the extends chain.
func (t *TypeHandle) AssignableTo(target *TypeHandle) bool {
	if t == nil || target == nil {
		return false
	}
	for cur := t; cur != nil; cur = cur.super {
		if cur == target {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (t *TypeHandle) String() string {
	if t.host {
		return t.name + " (host)"
	}
	return fmt.Sprintf("%s (loader %d)", t.name, t.loaderID)
}

// HostTypes is the set of base types every loader falls back to.
type HostTypes struct {
	types map[string]*TypeHandle
}

var (
	defaultHostTypes     *HostTypes
	defaultHostTypesOnce sync.Once
)

// DefaultHostTypes returns the process-wide host base types.
func DefaultHostTypes() *HostTypes {
	defaultHostTypesOnce.Do(func() {
		pluginType := &TypeHandle{name: PluginTypeName, abstract: true, host: true}
		scriptType := &TypeHandle{name: ScriptTypeName, super: pluginType, abstract: true, host: true}
		configType := &TypeHandle{name: ConfigTypeName, abstract: true, host: true}
		defaultHostTypes = &HostTypes{types: map[string]*TypeHandle{
			PluginTypeName: pluginType,
			ScriptTypeName: scriptType,
			ConfigTypeName: configType,
		}}
	})
	return defaultHostTypes
}

// Lookup returns the host type with the given qualified name.
func (h *HostTypes) Lookup(name string) (*TypeHandle, bool) {
	t, ok := h.types[name]
	return t, ok
}

// Plugin returns the plugin.Plugin base type.
func (h *HostTypes) Plugin() *TypeHandle { return h.types[PluginTypeName] }

// Script returns the plugin.Script base type.
func (h *HostTypes) Script() *TypeHandle { return h.types[ScriptTypeName] }

// Config returns the plugin.Config base type.
func (h *HostTypes) Config() *TypeHandle { return h.types[ConfigTypeName] }

// QualifiedName derives the fully qualified type name from a module entry path.
func QualifiedName(entry string) (string, error) {
	if !strings.HasSuffix(entry, ModuleSuffix) {
		return "", NewInvalidModuleEntryError(entry)
	}
	base := strings.TrimSuffix(strings.TrimPrefix(entry, "/"), ModuleSuffix)
	if base == "" || strings.Contains(base, ".") {
		return "", NewInvalidModuleEntryError(entry)
	}
	for _, seg := range strings.Split(base, "/") {
		if seg == "" {
			return "", NewInvalidModuleEntryError(entry)
		}
	}
	return strings.ReplaceAll(base, "/", "."), nil
}

// IsolatedLoader loads types from exactly one archive.
//
// Resolution order is: the loader's own cache, then the host base types, then
// the archive. A loader must be closed when the caller is done with it.
type IsolatedLoader struct {
	id      uint64
	path    string
	host    *HostTypes
	logger  Logger
	timeout time.Duration

	mu      sync.Mutex
	zr      *zip.ReadCloser
	files   map[string]*zip.File
	entries []string
	L       *lua.LState
	cache   map[string]*TypeHandle
	loading map[string]bool
	closed  bool
}

// OpenArchive opens the archive at path with a fresh private namespace.
func OpenArchive(path string, host *HostTypes, logger Logger) (*IsolatedLoader, error) {
	if host == nil {
		host = DefaultHostTypes()
	}
	if logger == nil {
		logger = DefaultLogger()
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, NewArchiveOpenError(path, err)
	}

	l := &IsolatedLoader{
		id:      loaderSeq.Add(1),
		path:    path,
		host:    host,
		timeout: DefaultEvalTimeout,
		zr:      zr,
		files:   make(map[string]*zip.File, len(zr.File)),
		cache:   make(map[string]*TypeHandle),
		loading: make(map[string]bool),
		L:       newSandboxedState(),
	}
	l.logger = logger.With("archive", path, "loader", l.id)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		l.files[f.Name] = f
		l.entries = append(l.entries, f.Name)
	}
	return l, nil
}

// WithArchive opens the archive, runs fn and always closes the loader.
func WithArchive(path string, host *HostTypes, logger Logger, fn func(*IsolatedLoader) error) (err error) {
	loader, err := OpenArchive(path, host, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := loader.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(loader)
}

// ID returns the loader identity carried by the handles it produces.
func (l *IsolatedLoader) ID() uint64 { return l.id }

// Path returns the archive path.
func (l *IsolatedLoader) Path() string { return l.path }

// Entries returns every file entry of the archive in archive order.
func (l *IsolatedLoader) Entries() []string {
	return append([]string(nil), l.entries...)
}

// ModuleEntries returns the class-like entries in archive order.
func (l *IsolatedLoader) ModuleEntries() []string {
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		if strings.HasSuffix(e, ModuleSuffix) {
			out = append(out, e)
		}
	}
	return out
}

// LoadType resolves a qualified name to a type handle.
func (l *IsolatedLoader) LoadType(name string) (*TypeHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, NewLoaderClosedError(l.path)
	}
	t, err := l.load(name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Close releases the archive handle and the Lua state. It is safe to call twice.
func (l *IsolatedLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.L.Close()
	l.cache = nil
	if err := l.zr.Close(); err != nil {
		return NewArchiveOpenError(l.path, err)
	}
	return nil
}

func (l *IsolatedLoader) load(name string) (*TypeHandle, *errors.Error) {
	if t, ok := l.cache[name]; ok {
		return t, nil
	}
	if t, ok := l.host.Lookup(name); ok {
		return t, nil
	}
	if l.loading[name] {
		return nil, NewCyclicHierarchyError(name)
	}

	entry := strings.ReplaceAll(name, ".", "/") + ModuleSuffix
	f, ok := l.files[entry]
	if !ok {
		return nil, NewTypeNotFoundError(name)
	}

	source, err := readEntry(f)
	if err != nil {
		return nil, NewTypeEvaluationError(name, err)
	}

	ret, err := evalChunk(l.L, entry, source, l.timeout)
	if err != nil {
		return nil, NewTypeEvaluationError(name, err)
	}
	class, ok := ret.(*lua.LTable)
	if !ok {
		return nil, NewInvalidTypeDefinitionError(name, "module must return a table, got "+ret.Type().String())
	}

	l.loading[name] = true
	defer delete(l.loading, name)

	t := &TypeHandle{
		name:     name,
		loaderID: l.id,
		archive:  l.path,
		abstract: lua.LVAsBool(class.RawGetString("abstract")),
		source:   source,
		group:    lua.LVAsString(class.RawGetString("group")),
		defaults: stringMap(class.RawGetString("defaults")),
	}

	if ext := lua.LVAsString(class.RawGetString("extends")); ext != "" {
		super, derr := l.dependency(name, ext)
		if derr != nil {
			return nil, derr
		}
		t.super = super
	}

	descriptors, reason := parseDescriptors(class.RawGetString("descriptor"))
	if reason != "" {
		return nil, NewInvalidTypeDefinitionError(name, reason)
	}
	t.descriptors = descriptors

	for _, dep := range stringList(class.RawGetString("inject")) {
		dt, derr := l.dependency(name, dep)
		if derr != nil {
			return nil, derr
		}
		t.injects = append(t.injects, dt)
	}

	if cfg := lua.LVAsString(class.RawGetString("config")); cfg != "" {
		ct, derr := l.dependency(name, cfg)
		if derr != nil {
			return nil, derr
		}
		if !ct.AssignableTo(l.host.Config()) {
			return nil, NewInvalidTypeDefinitionError(name, "config type "+cfg+" does not extend "+ConfigTypeName)
		}
		t.config = ct
	}

	l.cache[name] = t
	return t, nil
}

// dependency loads a type referenced by name. Cycles are reported as such,
// anything else as a missing dependency of name.
func (l *IsolatedLoader) dependency(name, dep string) (*TypeHandle, *errors.Error) {
	t, err := l.load(dep)
	if err == nil {
		return t, nil
	}
	if err.ErrorCode() == errors.ErrorCode(ErrCodeCyclicHierarchy) {
		return nil, err
	}
	return nil, NewMissingDependencyError(name, dep, err)
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxModuleSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxModuleSize {
		return "", fmt.Errorf("module %s exceeds %d bytes", f.Name, maxModuleSize)
	}
	return string(data), nil
}

// parseDescriptors accepts either a single descriptor table or a list of them.
func parseDescriptors(v lua.LValue) ([]Descriptor, string) {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		if v == lua.LNil {
			return nil, ""
		}
		return nil, "descriptor must be a table"
	}
	if _, single := tbl.RawGetString("name").(lua.LString); single {
		d, reason := parseDescriptor(tbl)
		if reason != "" {
			return nil, reason
		}
		return []Descriptor{d}, ""
	}

	out := make([]Descriptor, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		item, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Sprintf("descriptor %d must be a table", i)
		}
		d, reason := parseDescriptor(item)
		if reason != "" {
			return nil, reason
		}
		out = append(out, d)
	}
	return out, ""
}

func parseDescriptor(tbl *lua.LTable) (Descriptor, string) {
	d := Descriptor{
		Name:             lua.LVAsString(tbl.RawGetString("name")),
		Description:      lua.LVAsString(tbl.RawGetString("description")),
		Tags:             stringList(tbl.RawGetString("tags")),
		EnabledByDefault: lua.LVAsBool(tbl.RawGetString("enabled_by_default")),
		Hidden:           lua.LVAsBool(tbl.RawGetString("hidden")),
	}
	if strings.TrimSpace(d.Name) == "" {
		return Descriptor{}, "descriptor name is required"
	}
	return d, ""
}
