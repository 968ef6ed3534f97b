// env_config.go: Environment variable expansion for configuration values
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DefaultEnvPrefix is tried before the bare variable name during expansion.
const DefaultEnvPrefix = "PLUGINHOST_"

const maxEnvValueLength = 4096

var envVariablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// EnvConfigOptions controls how ${VAR} placeholders are expanded.
type EnvConfigOptions struct {
	// Prefix is tried first: ${PORT} resolves PLUGINHOST_PORT before PORT.
	Prefix string `json:"prefix" yaml:"prefix"`

	// FailOnMissing turns an unresolved variable without default into an error.
	FailOnMissing bool `json:"fail_on_missing" yaml:"fail_on_missing"`

	// Defaults are used when neither the environment nor an inline default resolves a variable.
	Defaults map[string]string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// DefaultEnvConfigOptions returns the options used by LoadHostConfig.
func DefaultEnvConfigOptions() EnvConfigOptions {
	return EnvConfigOptions{Prefix: DefaultEnvPrefix}
}

// ExpandEnvironmentVariables replaces ${VAR} and ${VAR:-default} in input.
//
// Lookup order: prefixed variable, bare variable, inline default, options.Defaults.
//
//	addr, err := ExpandEnvironmentVariables("${CONTROL_HOST:-127.0.0.1}:7070", DefaultEnvConfigOptions())
func ExpandEnvironmentVariables(input string, options EnvConfigOptions) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var firstErr error
	out := envVariablePattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVariablePattern.FindStringSubmatch(match)
		value, err := resolveEnvVariable(sub[1], sub[3], sub[2] != "", options)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func resolveEnvVariable(name, inlineDefault string, hasDefault bool, options EnvConfigOptions) (string, error) {
	candidates := []string{name}
	if options.Prefix != "" && !strings.HasPrefix(name, options.Prefix) {
		candidates = []string{options.Prefix + name, name}
	}
	for _, c := range candidates {
		if value, ok := os.LookupEnv(c); ok && value != "" {
			return sanitizeEnvValue(name, value)
		}
	}
	if hasDefault {
		return sanitizeEnvValue(name, inlineDefault)
	}
	if value, ok := options.Defaults[name]; ok {
		return sanitizeEnvValue(name, value)
	}
	if options.FailOnMissing {
		return "", NewConfigValidationError(fmt.Sprintf("required environment variable not found: %s", name), nil)
	}
	return "", nil
}

// sanitizeEnvValue rejects values with NUL bytes, control characters or excessive length.
func sanitizeEnvValue(name, value string) (string, error) {
	if len(value) > maxEnvValueLength {
		return "", NewConfigValidationError(fmt.Sprintf("environment variable %s too long: %d bytes", name, len(value)), nil)
	}
	for i, r := range value {
		if r < 32 && r != '\t' {
			return "", NewConfigValidationError(fmt.Sprintf("environment variable %s contains control character at position %d", name, i), nil)
		}
	}
	return value, nil
}
