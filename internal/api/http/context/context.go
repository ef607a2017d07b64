// Package context stores the authenticated user id on request contexts.
package context

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/mindhealer-server/internal/model"
)

type userIDKey struct{}

var _ model.ContextManager = (*Manager)(nil)

// Manager implements model.ContextManager with context values.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) SetUserIDToContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func (m *Manager) GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}
