package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Taxonomy(t *testing.T) {
	cause := errors.New("driver: connection reset")

	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"auth required", AuthRequired(""), CodeUnauthorized, http.StatusUnauthorized},
		{"credential invalid", CredentialInvalid(cause), CodeCredentialInvalid, http.StatusUnauthorized},
		{"validation", InvalidInput("maxResults", "must be between 1 and 100"), CodeInvalidInput, http.StatusBadRequest},
		{"store", StoreError("update job", cause), CodeStoreError, http.StatusInternalServerError},
		{"transient", TransientFetch("m-1", cause), CodeTransientFetch, http.StatusBadGateway},
		{"not found", NotFound("snapshot"), CodeNotFound, http.StatusNotFound},
		{"conflict", Conflict("sync already running"), CodeConflict, http.StatusConflict},
		{"rate limited", RateLimited(), CodeRateLimited, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("reconcile: %w", StoreError("create job", cause))

	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, HasCode(wrapped, CodeStoreError))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(wrapped))
	assert.Equal(t, CodeStoreError, AsAppError(wrapped).Code)
}

func TestAsAppError_PlainError(t *testing.T) {
	appErr := AsAppError(errors.New("plain"))
	assert.Equal(t, CodeInternalError, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}

func TestCredentialInvalid_ReauthHint(t *testing.T) {
	err := CredentialInvalid(nil)
	assert.Equal(t, true, err.Details["reauth"])
}
