package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Status(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    *Error
		status int
		reason string
	}{
		{name: "missing token", err: NewMissingToken(), status: http.StatusUnauthorized, reason: ReasonMissing},
		{name: "invalid token", err: NewInvalidToken(nil), status: http.StatusUnauthorized, reason: ReasonInvalid},
		{name: "expired token", err: NewAccessExpired(nil), status: http.StatusUnauthorized, reason: ReasonExpired},
		{name: "forbidden", err: NewForbidden("invalid refresh token", nil), status: http.StatusForbidden, reason: ReasonForbidden},
		{name: "validation", err: NewValidation("bad", nil), status: http.StatusBadRequest, reason: ReasonValidation},
		{name: "credentials", err: NewInvalidCredentials(), status: http.StatusBadRequest, reason: ReasonInvalidCredentials},
		{name: "conflict", err: NewConflict("exists"), status: http.StatusBadRequest, reason: ReasonConflict},
		{name: "not found", err: NewNotFound("user not found"), status: http.StatusNotFound, reason: ReasonNotFound},
		{name: "internal", err: NewInternal(errors.New("db down")), status: http.StatusInternalServerError, reason: ReasonInternal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.status, tt.err.Status())
			assert.Equal(t, tt.reason, tt.err.Reason)
		})
	}
}

func TestAs(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("handler: %w", NewNotFound("user not found"))
	assert.Equal(t, KindNotFound, As(wrapped).Kind)
	assert.True(t, IsKind(wrapped, KindNotFound))

	plain := errors.New("boom")
	got := As(plain)
	assert.Equal(t, KindInternal, got.Kind)
	assert.ErrorIs(t, got, plain)
	assert.False(t, IsKind(plain, KindInternal))
}
