// isolated_loader_test.go: Tests for per-archive type loading and isolation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const woodcutterModule = `
return {
  extends = "plugin.Script",
  descriptor = { name = "Woodcutter", description = "Cuts trees", tags = { "skilling", "wood" } },
}
`

func TestQualifiedName(t *testing.T) {
	tests := []struct {
		entry   string
		want    string
		wantErr bool
	}{
		{entry: "net/acme/wood/Woodcutter.lua", want: "net.acme.wood.Woodcutter"},
		{entry: "Top.lua", want: "Top"},
		{entry: "/net/acme/A.lua", want: "net.acme.A"},
		{entry: "net/acme/A.txt", wantErr: true},
		{entry: ".lua", wantErr: true},
		{entry: "net//A.lua", wantErr: true},
		{entry: "net/a.b/A.lua", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			got, err := QualifiedName(tt.entry)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ErrCodeInvalidModuleEntry, errorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsolatedLoader_LoadType(t *testing.T) {
	t.Run("ResolvesHierarchyAndDescriptor", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{
			"net/acme/wood/Woodcutter.lua": woodcutterModule,
			"README.txt":                   "not a module",
		})

		typ, err := loader.LoadType("net.acme.wood.Woodcutter")
		require.NoError(t, err)

		host := DefaultHostTypes()
		assert.Equal(t, "net.acme.wood.Woodcutter", typ.Name())
		assert.Equal(t, "net.acme.wood", typ.Namespace())
		assert.Same(t, host.Script(), typ.Super())
		assert.True(t, typ.AssignableTo(host.Plugin()))
		assert.True(t, typ.AssignableTo(host.Script()))
		assert.False(t, typ.AssignableTo(host.Config()))
		assert.False(t, typ.Abstract())
		assert.Equal(t, loader.ID(), typ.LoaderID())

		require.Len(t, typ.Descriptors(), 1)
		d := typ.Descriptors()[0]
		assert.Equal(t, "Woodcutter", d.Name)
		assert.Equal(t, "Cuts trees", d.Description)
		assert.Equal(t, []string{"skilling", "wood"}, d.Tags)

		assert.Equal(t, []string{"net/acme/wood/Woodcutter.lua"}, loader.ModuleEntries())
		assert.Len(t, loader.Entries(), 2)
	})

	t.Run("CachesHandles", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{"a/A.lua": `return { extends = "plugin.Plugin" }`})

		first, err := loader.LoadType("a.A")
		require.NoError(t, err)
		second, err := loader.LoadType("a.A")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("HostTypesResolveToSharedHandles", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{})

		typ, err := loader.LoadType(PluginTypeName)
		require.NoError(t, err)
		assert.Same(t, DefaultHostTypes().Plugin(), typ)
		assert.True(t, typ.IsHostType())
	})

	t.Run("DescriptorList", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{"a/Multi.lua": `
return {
  extends = "plugin.Plugin",
  descriptor = { { name = "First" }, { name = "Second", hidden = true } },
}`})

		typ, err := loader.LoadType("a.Multi")
		require.NoError(t, err)
		require.Len(t, typ.Descriptors(), 2)
		assert.Equal(t, "First", typ.Descriptors()[0].Name)
		assert.True(t, typ.Descriptors()[1].Hidden)
	})

	t.Run("ConfigTypeAndInjects", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{
			"a/Settings.lua": `return { extends = "plugin.Config", group = "acme", defaults = { speed = "3" } }`,
			"a/Helper.lua":   `return {}`,
			"a/Main.lua": `
return {
  extends = "plugin.Plugin",
  config = "a.Settings",
  inject = { "a.Helper" },
  descriptor = { name = "Main" },
}`,
		})

		typ, err := loader.LoadType("a.Main")
		require.NoError(t, err)
		require.NotNil(t, typ.ConfigType())
		assert.Equal(t, "a.Settings", typ.ConfigType().Name())
		assert.Equal(t, "acme", typ.ConfigType().Group())
		assert.Equal(t, map[string]string{"speed": "3"}, typ.ConfigType().Defaults())
		require.Len(t, typ.Injects(), 1)
		assert.Equal(t, "a.Helper", typ.Injects()[0].Name())
	})
}

func TestIsolatedLoader_Isolation(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{"net/acme/wood/Woodcutter.lua": woodcutterModule}
	pathA := writeArchive(t, dir, "a"+ArchiveSuffix, files)
	pathB := writeArchive(t, dir, "b"+ArchiveSuffix, files)

	loaderA, err := OpenArchive(pathA, nil, nil)
	require.NoError(t, err)
	defer loaderA.Close()
	loaderB, err := OpenArchive(pathB, nil, nil)
	require.NoError(t, err)
	defer loaderB.Close()

	typeA, err := loaderA.LoadType("net.acme.wood.Woodcutter")
	require.NoError(t, err)
	typeB, err := loaderB.LoadType("net.acme.wood.Woodcutter")
	require.NoError(t, err)

	// Test: same qualified name from two archives yields two distinct types
	assert.Equal(t, typeA.Name(), typeB.Name())
	assert.NotSame(t, typeA, typeB)
	assert.NotEqual(t, typeA.LoaderID(), typeB.LoaderID())
	assert.Equal(t, pathA, typeA.Archive())
	assert.Equal(t, pathB, typeB.Archive())

	// Test: the host base type is shared
	assert.Same(t, typeA.Super(), typeB.Super())
}

func TestIsolatedLoader_Failures(t *testing.T) {
	t.Run("TypeNotFound", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{})
		_, err := loader.LoadType("a.Missing")
		require.Error(t, err)
		assert.Equal(t, ErrCodeTypeNotFound, errorCode(err))
	})

	t.Run("MissingDependency", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{"a/A.lua": `return { extends = "other.Base" }`})
		_, err := loader.LoadType("a.A")
		require.Error(t, err)
		assert.Equal(t, ErrCodeMissingDependency, errorCode(err))
	})

	t.Run("CyclicHierarchy", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{
			"a/A.lua": `return { extends = "a.B" }`,
			"a/B.lua": `return { extends = "a.A" }`,
		})
		_, err := loader.LoadType("a.A")
		require.Error(t, err)
		assert.Equal(t, ErrCodeCyclicHierarchy, errorCode(err))

		// Test: the failed load leaves nothing cached
		_, err = loader.LoadType("a.B")
		require.Error(t, err)
		assert.Equal(t, ErrCodeCyclicHierarchy, errorCode(err))
	})

	t.Run("ChunkMustReturnTable", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{"a/A.lua": `return 42`})
		_, err := loader.LoadType("a.A")
		require.Error(t, err)
		assert.Equal(t, ErrCodeInvalidTypeDef, errorCode(err))
	})

	t.Run("SyntaxError", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{"a/A.lua": `return {`})
		_, err := loader.LoadType("a.A")
		require.Error(t, err)
		assert.Equal(t, ErrCodeTypeEvaluation, errorCode(err))
	})

	t.Run("DescriptorWithoutName", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{"a/A.lua": `return { extends = "plugin.Plugin", descriptor = { { description = "x" } } }`})
		_, err := loader.LoadType("a.A")
		require.Error(t, err)
		assert.Equal(t, ErrCodeInvalidTypeDef, errorCode(err))
	})

	t.Run("ConfigMustExtendHostConfig", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{
			"a/NotConfig.lua": `return {}`,
			"a/A.lua":         `return { extends = "plugin.Plugin", config = "a.NotConfig" }`,
		})
		_, err := loader.LoadType("a.A")
		require.Error(t, err)
		assert.Equal(t, ErrCodeInvalidTypeDef, errorCode(err))
	})

	t.Run("SandboxHasNoOS", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{"a/A.lua": `os.exit(1) return {}`})
		_, err := loader.LoadType("a.A")
		require.Error(t, err)
		assert.Equal(t, ErrCodeTypeEvaluation, errorCode(err))
	})

	t.Run("SandboxHasNoDofile", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{"a/A.lua": `dofile("/etc/passwd") return {}`})
		_, err := loader.LoadType("a.A")
		require.Error(t, err)
		assert.Equal(t, ErrCodeTypeEvaluation, errorCode(err))
	})

	t.Run("EvaluationTimeout", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{"a/A.lua": `while true do end`})
		loader.timeout = 50 * time.Millisecond

		start := time.Now()
		_, err := loader.LoadType("a.A")
		require.Error(t, err)
		assert.Equal(t, ErrCodeTypeEvaluation, errorCode(err))
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("ClosedLoader", func(t *testing.T) {
		loader := openTestArchive(t, map[string]string{"a/A.lua": `return {}`})
		require.NoError(t, loader.Close())
		require.NoError(t, loader.Close())

		_, err := loader.LoadType("a.A")
		require.Error(t, err)
		assert.Equal(t, ErrCodeLoaderClosed, errorCode(err))
	})

	t.Run("NotAnArchive", func(t *testing.T) {
		_, err := OpenArchive("/nonexistent/x.plugin", nil, nil)
		require.Error(t, err)
		assert.Equal(t, ErrCodeArchiveOpen, errorCode(err))
	})
}

func TestWithArchive_ClosesLoader(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "w"+ArchiveSuffix, map[string]string{"a/A.lua": `return {}`})

	var captured *IsolatedLoader
	err := WithArchive(path, nil, NewTestLogger(), func(l *IsolatedLoader) error {
		captured = l
		_, err := l.LoadType("a.A")
		return err
	})
	require.NoError(t, err)

	_, err = captured.LoadType("a.A")
	assert.Equal(t, ErrCodeLoaderClosed, errorCode(err))
}
