// errors.go: structured error definitions for the plugin host
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"github.com/agilira/go-errors"
)

// Error codes for the plugin host
const (
	// Isolated loader errors (1000-1099)
	ErrCodeArchiveOpen        = "LOADER_1001"
	ErrCodeTypeNotFound       = "LOADER_1002"
	ErrCodeTypeEvaluation     = "LOADER_1003"
	ErrCodeInvalidTypeDef     = "LOADER_1004"
	ErrCodeMissingDependency  = "LOADER_1005"
	ErrCodeCyclicHierarchy    = "LOADER_1006"
	ErrCodeLoaderClosed       = "LOADER_1007"
	ErrCodeInvalidModuleEntry = "LOADER_1008"

	// Discovery errors (2000-2099)
	ErrCodeDirectoryUnreadable = "DISCOVERY_2001"
	ErrCodeArchiveSkipped      = "DISCOVERY_2002"
	ErrCodeEntryNotFound       = "DISCOVERY_2003"

	// Lifecycle errors (3000-3099)
	ErrCodeInvalidCatalogEntry = "LIFECYCLE_3001"
	ErrCodeInstantiation       = "LIFECYCLE_3002"
	ErrCodeNoPluginInstance    = "LIFECYCLE_3003"
	ErrCodeConfigResolution    = "LIFECYCLE_3004"
	ErrCodeScriptStart         = "LIFECYCLE_3005"
	ErrCodeScriptPause         = "LIFECYCLE_3006"
	ErrCodeManagerNotRunning   = "LIFECYCLE_3007"
	ErrCodeManagerStopped      = "LIFECYCLE_3008"

	// Configuration errors (4000-4099)
	ErrCodeConfigNotFound        = "CONFIG_4001"
	ErrCodeConfigParseError      = "CONFIG_4002"
	ErrCodeConfigValidationError = "CONFIG_4003"
	ErrCodeConfigWatcherError    = "CONFIG_4004"
	ErrCodeConfigPathError       = "CONFIG_4005"
	ErrCodeConfigStoreError      = "CONFIG_4006"

	// World selection errors (5000-5099)
	ErrCodeWorldLookupFailed = "WORLD_5001"
	ErrCodeWorldNotFound     = "WORLD_5002"
	ErrCodeInvalidWorldID    = "WORLD_5003"

	// Worker pool errors (6000-6099)
	ErrCodePoolCreation = "POOL_6001"
	ErrCodePoolRejected = "POOL_6002"

	// Control plane errors (7000-7099)
	ErrCodeControlRequest = "CONTROL_7001"
	ErrCodeControlServe   = "CONTROL_7002"
)

// Isolated loader error constructors

func NewArchiveOpenError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeArchiveOpen, "Failed to open plugin archive").
		WithUserMessage("The plugin archive could not be opened").
		WithContext("archive", path).
		WithSeverity("error")
}

func NewTypeNotFoundError(name string) *errors.Error {
	return errors.New(ErrCodeTypeNotFound, "Type not found").
		WithUserMessage("The requested type is not defined by the archive or the host").
		WithContext("type", name).
		WithSeverity("error")
}

func NewTypeEvaluationError(name string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeTypeEvaluation, "Type evaluation failed").
		WithUserMessage("The module entry could not be evaluated").
		WithContext("type", name).
		WithSeverity("error")
}

func NewInvalidTypeDefinitionError(name, reason string) *errors.Error {
	return errors.New(ErrCodeInvalidTypeDef, "Invalid type definition: "+reason).
		WithUserMessage("The module entry does not define a valid type").
		WithContext("type", name).
		WithSeverity("error")
}

func NewMissingDependencyError(name, dependency string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeMissingDependency, "Missing transitive dependency").
		WithUserMessage("A type referenced by this module could not be resolved").
		WithContext("type", name).
		WithContext("dependency", dependency).
		WithSeverity("error")
}

func NewCyclicHierarchyError(name string) *errors.Error {
	return errors.New(ErrCodeCyclicHierarchy, "Cyclic type hierarchy").
		WithUserMessage("The type extends itself directly or indirectly").
		WithContext("type", name).
		WithSeverity("error")
}

func NewLoaderClosedError(archive string) *errors.Error {
	return errors.New(ErrCodeLoaderClosed, "Loader closed").
		WithUserMessage("The isolated loader has already been released").
		WithContext("archive", archive).
		WithSeverity("error")
}

func NewInvalidModuleEntryError(entry string) *errors.Error {
	return errors.New(ErrCodeInvalidModuleEntry, "Invalid module entry").
		WithUserMessage("The archive entry is not a loadable module").
		WithContext("entry", entry).
		WithSeverity("warning")
}

// Discovery error constructors

func NewDirectoryUnreadableError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDirectoryUnreadable, "Plugins directory unreadable").
		WithUserMessage("The plugins directory does not exist or cannot be listed").
		WithContext("directory", path).
		WithSeverity("warning")
}

func NewArchiveSkippedError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeArchiveSkipped, "Plugin archive skipped").
		WithUserMessage("The archive could not be scanned and was skipped").
		WithContext("archive", path).
		WithSeverity("warning")
}

func NewEntryNotFoundError(name string) *errors.Error {
	return errors.New(ErrCodeEntryNotFound, "Catalog entry not found").
		WithUserMessage("No discovered plugin carries the requested name").
		WithContext("plugin_name", name).
		WithSeverity("error")
}

// Lifecycle error constructors

func NewInvalidCatalogEntryError() *errors.Error {
	return errors.New(ErrCodeInvalidCatalogEntry, "Invalid catalog entry").
		WithUserMessage("A plugin cannot be started without a catalog entry").
		WithSeverity("error")
}

func NewInstantiationError(typeName string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeInstantiation, "Plugin instantiation failed").
		WithUserMessage("The container could not create the plugin instance").
		WithContext("type", typeName).
		WithSeverity("error")
}

func NewNoPluginInstanceError(typeName string) *errors.Error {
	return errors.New(ErrCodeNoPluginInstance, "No plugin instance").
		WithUserMessage("The container returned no instance for the requested type").
		WithContext("type", typeName).
		WithSeverity("error")
}

func NewConfigResolutionError(pluginName string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigResolution, "Plugin configuration resolution failed").
		WithUserMessage("The plugin configuration could not be resolved or registered").
		WithContext("plugin_name", pluginName).
		WithSeverity("error")
}

func NewScriptStartError(pluginName string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeScriptStart, "Script start hook failed").
		WithUserMessage("The script rejected its start arguments").
		WithContext("plugin_name", pluginName).
		WithSeverity("error")
}

func NewScriptPauseError(pluginName string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeScriptPause, "Script pause failed").
		WithUserMessage("The script could not be paused").
		WithContext("plugin_name", pluginName).
		WithSeverity("warning")
}

func NewManagerNotRunningError() *errors.Error {
	return errors.New(ErrCodeManagerNotRunning, "Lifecycle manager not running").
		WithUserMessage("The lifecycle manager command loop has not been started").
		WithSeverity("error")
}

func NewManagerStoppedError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeManagerStopped, "Lifecycle manager stopped").
		WithUserMessage("The lifecycle manager stopped before the operation completed").
		WithSeverity("error")
}

// Configuration error constructors

func NewConfigNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeConfigNotFound, "Configuration file not found").
		WithUserMessage("The configuration file could not be found").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParseError, "Configuration parse error").
		WithUserMessage("Failed to parse configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeConfigValidationError, "Configuration validation error: "+message).
			WithUserMessage("Configuration validation failed").
			WithSeverity("error")
	}
	return errors.New(ErrCodeConfigValidationError, "Configuration validation error: "+message).
		WithUserMessage("Configuration validation failed").
		WithSeverity("error")
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigWatcherError, "Configuration watcher error: "+message).
		WithUserMessage("Configuration monitoring failed").
		WithSeverity("error")
}

func NewConfigPathError(path string, message string) *errors.Error {
	return errors.New(ErrCodeConfigPathError, "Configuration path error: "+message).
		WithUserMessage("Invalid configuration file path").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigStoreError(group string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigStoreError, "Configuration store error").
		WithUserMessage("The plugin configuration could not be stored").
		WithContext("group", group).
		WithSeverity("error")
}

// World selection error constructors

func NewWorldLookupError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeWorldLookupFailed, "World lookup failed").
		WithUserMessage("The world directory could not be queried").
		WithSeverity("warning").
		AsRetryable()
}

func NewWorldNotFoundError(world int) *errors.Error {
	return errors.New(ErrCodeWorldNotFound, "World not found").
		WithUserMessage("The requested world is not listed by the world directory").
		WithContext("world", world).
		WithSeverity("warning")
}

func NewInvalidWorldIDError(raw string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeInvalidWorldID, "Invalid world id").
		WithUserMessage("The requested world id is not an integer").
		WithContext("value", raw).
		WithSeverity("warning")
}

// Worker pool error constructors

func NewPoolCreationError(size int, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodePoolCreation, "Worker pool creation failed").
		WithUserMessage("The background worker pool could not be created").
		WithContext("size", size).
		WithSeverity("error")
}

func NewPoolRejectedError(task string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodePoolRejected, "Background task rejected").
		WithUserMessage("The worker pool did not accept the task").
		WithContext("task", task).
		WithSeverity("warning").
		AsRetryable()
}

// Control plane error constructors

func NewControlRequestError(method string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeControlRequest, "Control request failed").
		WithUserMessage("The control request could not be completed").
		WithContext("method", method).
		WithSeverity("error")
}

func NewControlServeError(address string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeControlServe, "Control server failed").
		WithUserMessage("The control server could not listen or serve").
		WithContext("address", address).
		WithSeverity("error")
}
