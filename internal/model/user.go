package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for accounts.
//
// The refresh token lives on the account record as a SHA-256 hex digest: one active refresh
// token per account.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (User, error)
	Create(ctx context.Context, user User) (User, error)
	// SetRefreshTokenHash overwrites the stored digest; nil clears it.
	SetRefreshTokenHash(ctx context.Context, id uuid.UUID, hash *string) error
	Ping(ctx context.Context) error
}

// User represents a stored account.
type User struct {
	ID               uuid.UUID
	Username         string
	Email            string
	PasswordHash     string
	Profile          Profile
	RefreshTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Profile holds optional public account details.
type Profile struct {
	Bio      string
	Avatar   string
	Age      *int
	Location string
}
