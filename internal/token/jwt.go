package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/mindhealer-server/internal/model"
)

const (
	// ClaimsVersion is the only payload layout this manager accepts.
	ClaimsVersion = 1

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour

	typeAccess  = "access"
	typeRefresh = "refresh"
)

var _ model.TokenManager = (*JWT)(nil)

// Claims represents the versioned token payload.
type Claims struct {
	jwt.RegisteredClaims
	Version   int       `json:"ver"`
	UserID    uuid.UUID `json:"user_id"`
	TokenType string    `json:"typ"`
}

// Validate rejects payloads missing required fields. It is called by the jwt parser.
func (c Claims) Validate() error {
	if c.Version != ClaimsVersion {
		return fmt.Errorf("unsupported claims version %d", c.Version)
	}
	if c.UserID == uuid.Nil {
		return errors.New("user id is missing")
	}
	if c.IssuedAt == nil {
		return errors.New("issued at is missing")
	}
	if c.Subject != c.UserID.String() {
		return errors.New("subject does not match user id")
	}
	return nil
}

// Option configures JWT.
type Option func(*JWT)

// WithAccessTTL sets the access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(j *JWT) { j.accessTTL = ttl }
}

// WithRefreshTTL sets the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(j *JWT) { j.refreshTTL = ttl }
}

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(j *JWT) { j.now = now }
}

// JWT implements TokenManager backed by symmetric HMAC with separate access and refresh keys.
type JWT struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewJWT creates a new JWT token manager. The two secrets must be non-empty and distinct.
func NewJWT(accessSecret, refreshSecret string, opts ...Option) (*JWT, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	j := &JWT{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     DefaultAccessTTL,
		refreshTTL:    DefaultRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}

	return j, nil
}

// GenerateAccessToken creates a short-lived access token.
func (j *JWT) GenerateAccessToken(userID uuid.UUID) (string, error) {
	token, err := j.sign(userID, typeAccess, j.accessTTL, "", j.accessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, nil
}

// GenerateRefreshToken creates a long-lived refresh token with a unique ID.
func (j *JWT) GenerateRefreshToken(userID uuid.UUID) (string, error) {
	token, err := j.sign(userID, typeRefresh, j.refreshTTL, uuid.NewString(), j.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return token, nil
}

// ParseAccessToken validates an access token and extracts the user ID.
func (j *JWT) ParseAccessToken(tokenString string) (uuid.UUID, error) {
	return j.parse(tokenString, typeAccess, j.accessSecret)
}

// ParseRefreshToken validates a refresh token and extracts the user ID.
func (j *JWT) ParseRefreshToken(tokenString string) (uuid.UUID, error) {
	return j.parse(tokenString, typeRefresh, j.refreshSecret)
}

func (j *JWT) sign(userID uuid.UUID, tokenType string, ttl time.Duration, jti string, secret []byte) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Version:   ClaimsVersion,
		UserID:    userID,
		TokenType: tokenType,
	})

	return token.SignedString(secret)
}

func (j *JWT) parse(tokenString, tokenType string, secret []byte) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, fmt.Errorf("%s token: %w", tokenType, model.ErrTokenExpired)
		}
		return uuid.Nil, fmt.Errorf("%s token: %w: %v", tokenType, model.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return uuid.Nil, fmt.Errorf("%s token: %w", tokenType, model.ErrTokenInvalid)
	}
	if claims.TokenType != tokenType {
		return uuid.Nil, fmt.Errorf("token type mismatch %q: %w", claims.TokenType, model.ErrTokenInvalid)
	}

	return claims.UserID, nil
}
