// errors_test.go: Tests for structured host errors
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorCodes(t *testing.T) {
	cause := errors.New("underlying")

	tests := []struct {
		err  *goerrors.Error
		code string
	}{
		{NewArchiveOpenError("a.plugin", cause), ErrCodeArchiveOpen},
		{NewTypeNotFoundError("a.B"), ErrCodeTypeNotFound},
		{NewCyclicHierarchyError("a.B"), ErrCodeCyclicHierarchy},
		{NewMissingDependencyError("a.B", "a.C", cause), ErrCodeMissingDependency},
		{NewEntryNotFoundError("Woodcutter"), ErrCodeEntryNotFound},
		{NewInvalidCatalogEntryError(), ErrCodeInvalidCatalogEntry},
		{NewScriptStartError("Woodcutter", cause), ErrCodeScriptStart},
		{NewManagerStoppedError(cause), ErrCodeManagerStopped},
		{NewConfigValidationError("bad", nil), ErrCodeConfigValidationError},
		{NewWorldNotFoundError(350), ErrCodeWorldNotFound},
		{NewPoolRejectedError("press_key", cause), ErrCodePoolRejected},
		{NewControlRequestError("Start", cause), ErrCodeControlRequest},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, string(tt.err.Code))
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrorCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("starting plugin: %w", NewScriptStartError("Woodcutter", errors.New("bad args")))
	assert.Equal(t, ErrCodeScriptStart, errorCode(err))
	assert.Equal(t, "", errorCode(errors.New("plain")))
}
