package context

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestManager_Roundtrip(t *testing.T) {
	m := NewManager()
	id := uuid.New()

	ctx := m.SetUserIDToContext(context.Background(), id)
	got, ok := m.GetUserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestManager_Missing(t *testing.T) {
	m := NewManager()

	_, ok := m.GetUserIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = m.GetUserIDFromContext(m.SetUserIDToContext(context.Background(), uuid.Nil))
	assert.False(t, ok)
}
