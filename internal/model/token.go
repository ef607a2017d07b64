package model

import "github.com/google/uuid"

// TokenManager generates and validates access/refresh tokens.
//
// Parse methods return errors wrapping ErrTokenExpired or ErrTokenInvalid.
type TokenManager interface {
	GenerateAccessToken(userID uuid.UUID) (string, error)
	GenerateRefreshToken(userID uuid.UUID) (string, error)
	ParseAccessToken(token string) (uuid.UUID, error)
	ParseRefreshToken(token string) (uuid.UUID, error)
}

// Credentials is the pair handed to a client after login.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}
