package platformerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatformError_Error(t *testing.T) {
	err := NewError(LayerRepository, ErrorTypeNotFound, "thread not found", nil)
	assert.Equal(t, "[repository][NOT_FOUND] thread not found", err.Error())

	cause := errors.New("connection refused")
	wrapped := NewError(LayerStorage, ErrorTypeStorageFailure, "put object", cause)
	assert.Equal(t, "[storage][STORAGE_FAILURE] put object: connection refused", wrapped.Error())
	assert.Equal(t, cause, wrapped.Unwrap())
}

func TestAsError_PreservesInnerType(t *testing.T) {
	inner := NewError(LayerRepository, ErrorTypeNotFound, "step not found", nil)
	outer := AsError(LayerDomain, fmt.Errorf("upsert feedback: %w", inner), "upsert feedback")

	assert.Equal(t, ErrorTypeNotFound, outer.Type)
	assert.Equal(t, LayerDomain, outer.Layer)
	assert.True(t, IsNotFound(outer))
}

func TestAsError_DefaultsToStorageFailure(t *testing.T) {
	outer := AsError(LayerRepository, errors.New("disk full"), "write batch")
	assert.Equal(t, ErrorTypeStorageFailure, outer.Type)

	assert.Nil(t, AsError(LayerRepository, nil, "noop"))
}

func TestIsErrorType(t *testing.T) {
	err := NewError(LayerRepository, ErrorTypeUnsupportedOperation, "feedback filter", nil)

	assert.True(t, IsErrorType(err, ErrorTypeUnsupportedOperation))
	assert.False(t, IsErrorType(err, ErrorTypeNotFound))
	assert.False(t, IsErrorType(nil, ErrorTypeNotFound))
	assert.False(t, IsErrorType(errors.New("plain"), ErrorTypeNotFound))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsErrorType(wrapped, ErrorTypeUnsupportedOperation))
}

func TestNewErrorWithContext(t *testing.T) {
	err := NewErrorWithContext(LayerRepository, ErrorTypeStorageFailure, "cascade delete", nil, map[string]any{
		"thread_id":      "thr_x",
		"orphaned_items": 2,
	})

	assert.Equal(t, "thr_x", err.Context["thread_id"])
	assert.Equal(t, 2, err.Context["orphaned_items"])
	assert.False(t, err.Timestamp.IsZero())
}
