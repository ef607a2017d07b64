package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apicontext "github.com/dtroode/mindhealer-server/internal/api/http/context"
	"github.com/dtroode/mindhealer-server/internal/api/http/response"
	"github.com/dtroode/mindhealer-server/internal/apierror"
	"github.com/dtroode/mindhealer-server/internal/mocks"
	"github.com/dtroode/mindhealer-server/internal/testutil"
)

func TestAuthenticate(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name     string
		header   string
		setup    func(ts *mocks.AccessVerifier)
		status   int
		reason   string
		reachesH bool
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized, reason: apierror.ReasonMissing},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, reason: apierror.ReasonInvalid},
		{name: "lowercase scheme", header: "bearer abc", status: http.StatusUnauthorized, reason: apierror.ReasonInvalid},
		{name: "no token", header: "Bearer ", status: http.StatusUnauthorized, reason: apierror.ReasonInvalid},
		{name: "extra parts", header: "Bearer a b", status: http.StatusUnauthorized, reason: apierror.ReasonInvalid},
		{name: "bare token", header: "abc", status: http.StatusUnauthorized, reason: apierror.ReasonInvalid},
		{
			name:   "expired",
			header: "Bearer expired",
			setup: func(ts *mocks.AccessVerifier) {
				ts.On("VerifyAccess", mock.Anything, "expired").Return(uuid.Nil, apierror.NewAccessExpired(nil))
			},
			status: http.StatusUnauthorized,
			reason: apierror.ReasonExpired,
		},
		{
			name:   "invalid",
			header: "Bearer forged",
			setup: func(ts *mocks.AccessVerifier) {
				ts.On("VerifyAccess", mock.Anything, "forged").Return(uuid.Nil, apierror.NewInvalidToken(nil))
			},
			status: http.StatusUnauthorized,
			reason: apierror.ReasonInvalid,
		},
		{
			name:   "valid",
			header: "Bearer good",
			setup: func(ts *mocks.AccessVerifier) {
				ts.On("VerifyAccess", mock.Anything, "good").Return(userID, nil)
			},
			status:   http.StatusOK,
			reachesH: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := mocks.NewAccessVerifier(t)
			if tt.setup != nil {
				tt.setup(ts)
			}
			cm := apicontext.NewManager()
			mw := NewAuthenticate(ts, cm, testutil.MakeNoopLogger())

			reached := false
			h := mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				got, ok := cm.GetUserIDFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, userID, got)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.reachesH, reached)
			if tt.reason != "" {
				var body response.ErrorBody
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.reason, body.Reason)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	token, ok := bearerToken("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)

	for _, h := range []string{"Bearer", "Bearer  abc", "Token abc", "Bearer\tabc"} {
		_, ok := bearerToken(h)
		assert.False(t, ok, h)
	}
}

var _ TokenService = (*mocks.AccessVerifier)(nil)

func TestAuthenticate_UsesRequestContext(t *testing.T) {
	type ctxKey struct{}
	ts := mocks.NewAccessVerifier(t)
	ts.On("VerifyAccess", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Value(ctxKey{}) == "marker"
	}), "tok").Return(uuid.New(), nil)

	mw := NewAuthenticate(ts, apicontext.NewManager(), testutil.MakeNoopLogger())
	h := mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), ctxKey{}, "marker"))
	req.Header.Set("Authorization", "Bearer tok")
	h.ServeHTTP(httptest.NewRecorder(), req)
}
