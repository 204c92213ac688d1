package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_WrapsSentinel(t *testing.T) {
	err := NotFound("conversation", "c-1")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Contains(t, err.Message, "conversation with id c-1")
}

func TestAppError_ErrorString(t *testing.T) {
	err := InvalidInput("message content is required")
	assert.Equal(t, "INVALID_INPUT: message content is required: invalid input", err.Error())
}

func TestHTTPStatus_FromAppError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{NotFound("user", "u-1"), http.StatusNotFound},
		{AlreadyExists("user", "email", "a@b.c"), http.StatusConflict},
		{Conflict("account already verified"), http.StatusConflict},
		{InvalidInput("bad"), http.StatusBadRequest},
		{Unauthorized("invalid credentials"), http.StatusUnauthorized},
		{Forbidden("not a member"), http.StatusForbidden},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(tt.err), "error: %v", tt.err)
	}
}

func TestHTTPStatus_FromWrappedAppError(t *testing.T) {
	err := fmt.Errorf("send message: %w", Forbidden("not a member"))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(err))
}

func TestHTTPStatus_FromSentinel(t *testing.T) {
	err := Wrap(ErrNotFound, "lookup conversation")
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestHTTPStatus_UnknownErrorIsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("connection reset")))
}
