package awsapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessResponse(t *testing.T) {
	t.Run("1", func(t *testing.T) {
		got := SuccessResponse(1)
		assert.Equal(t, http.StatusOK, got.Status)
		assert.Equal(t, "", got.Code)
		assert.Equal(t, "", got.Message)
		assert.Equal(t, 1, got.Data)
		assert.False(t, got.IsError())
	})

	t.Run("struct", func(t *testing.T) {
		data := struct{ X, Y int }{1, 2}
		got := SuccessResponse(data)
		assert.Equal(t, "", got.Code)
		assert.Equal(t, data, got.Data)
	})
}

func TestErrorResponse(t *testing.T) {
	got := ErrorResponse(http.StatusForbidden, ErrorCodeAuthFailure, "m")
	assert.Equal(t, http.StatusForbidden, got.Status)
	assert.Equal(t, ErrorCodeAuthFailure, got.Code)
	assert.Equal(t, "m", got.Message)
	assert.True(t, got.IsError())
}

func TestBadRequestResponse(t *testing.T) {
	got := BadRequestResponse()
	assert.Equal(t, 400, got.Status)
	assert.Equal(t, ErrorCodeInvalidRequest, got.Code)
	assert.Equal(t, "bad request", got.Message)
	assert.Equal(t, nil, got.Data)
}

func TestInternalErrorResponse(t *testing.T) {
	got := InternalErrorResponse()
	assert.Equal(t, 500, got.Status)
	assert.Equal(t, ErrorCodeInternalError, got.Code)
	assert.Equal(t, "internal error", got.Message)
	assert.Equal(t, nil, got.Data)
}
