package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/mindhealer-server/internal/api/http/response"
	"github.com/dtroode/mindhealer-server/internal/apierror"
	"github.com/dtroode/mindhealer-server/internal/logger"
	"github.com/dtroode/mindhealer-server/internal/model"
)

// TokenService resolves the user id from an access token.
type TokenService interface {
	VerifyAccess(ctx context.Context, token string) (uuid.UUID, error)
}

// Authenticate validates bearer tokens and injects the user id into the request context.
type Authenticate struct {
	tokenService   TokenService
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewAuthenticate(tokenService TokenService, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokenService: tokenService, contextManager: contextManager, logger: logger}
}

func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			response.Error(w, r, m.logger, apierror.NewMissingToken())
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			response.Error(w, r, m.logger, apierror.NewInvalidToken(nil))
			return
		}

		userID, err := m.tokenService.VerifyAccess(r.Context(), token)
		if err != nil {
			m.logger.Debug("HTTP: access token rejected",
				"path", r.URL.Path,
				"error", err.Error())
			response.Error(w, r, m.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.contextManager.SetUserIDToContext(r.Context(), userID)))
	})
}

// bearerToken extracts the token from a header of the exact form "Bearer <token>".
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
