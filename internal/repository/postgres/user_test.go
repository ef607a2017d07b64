package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewUserRepository(t *testing.T) {
	db := &Connection{}
	repo := NewUserRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestUserRow_ToModel(t *testing.T) {
	age := 30
	hash := "digest"
	now := time.Now()
	row := userRow{
		ID:               uuid.New(),
		Username:         "alice",
		Email:            "a@x.com",
		PasswordHash:     "phc",
		Bio:              "hi",
		Avatar:           "a.png",
		Age:              &age,
		Location:         "Riga",
		RefreshTokenHash: &hash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	u := row.toModel()
	assert.Equal(t, row.ID, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "hi", u.Profile.Bio)
	assert.Equal(t, "a.png", u.Profile.Avatar)
	assert.Equal(t, &age, u.Profile.Age)
	assert.Equal(t, "Riga", u.Profile.Location)
	assert.Equal(t, &hash, u.RefreshTokenHash)
}

func TestConnection_PingNilPool(t *testing.T) {
	c := &Connection{}
	assert.Error(t, c.Ping(t.Context()))
	assert.NoError(t, c.Close())
}
