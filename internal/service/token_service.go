package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/mindhealer-server/internal/apierror"
	"github.com/dtroode/mindhealer-server/internal/logger"
	"github.com/dtroode/mindhealer-server/internal/model"
)

// TokenService issues, verifies, refreshes and invalidates credentials.
// It composes the TokenManager with the account store, where the single active
// refresh token of each account is kept.
type TokenService struct {
	manager model.TokenManager
	store   model.UserStore
	locks   *accountLocks
	logger  *logger.Logger
}

func NewTokenService(manager model.TokenManager, store model.UserStore, logger *logger.Logger) *TokenService {
	return &TokenService{
		manager: manager,
		store:   store,
		locks:   newAccountLocks(),
		logger:  logger,
	}
}

// Issue mints an access/refresh pair for user and stores the refresh token on the account,
// replacing any previous one.
func (s *TokenService) Issue(ctx context.Context, user model.User) (model.Credentials, error) {
	access, err := s.manager.GenerateAccessToken(user.ID)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("issue access: %w", err)
	}

	refresh, err := s.manager.GenerateRefreshToken(user.ID)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("issue refresh: %w", err)
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	hash := hashRefresh(refresh)
	if err := s.store.SetRefreshTokenHash(ctx, user.ID, &hash); err != nil {
		return model.Credentials{}, fmt.Errorf("persist refresh: %w", err)
	}

	s.logger.Debug("Token service: credentials issued", "user_id", user.ID)

	return model.Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess checks an access token and returns its subject. Failures are
// *apierror.Error values with reason "expired" or "invalid".
func (s *TokenService) VerifyAccess(_ context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, apierror.NewMissingToken()
	}

	userID, err := s.manager.ParseAccessToken(token)
	if err != nil {
		if errors.Is(err, model.ErrTokenExpired) {
			return uuid.Nil, apierror.NewAccessExpired(err)
		}
		return uuid.Nil, apierror.NewInvalidToken(err)
	}
	if userID == uuid.Nil {
		return uuid.Nil, apierror.NewInvalidToken(nil)
	}

	return userID, nil
}

// Refresh exchanges a stored refresh token for a new access token. The refresh token itself
// is not rotated.
func (s *TokenService) Refresh(ctx context.Context, presented string) (string, error) {
	if presented == "" {
		return "", apierror.NewMissingRefreshToken()
	}

	hash := hashRefresh(presented)

	user, err := s.store.GetByRefreshTokenHash(ctx, hash)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Info("Token service: refresh token not found")
		return "", apierror.NewForbidden("invalid refresh token", nil)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user by refresh token: %w", err)
	}

	userID, err := s.manager.ParseRefreshToken(presented)
	if err != nil {
		s.logger.Info("Token service: refresh token rejected",
			"user_id", user.ID,
			"error", err.Error())
		return "", apierror.NewForbidden("invalid refresh token", err)
	}
	if userID != user.ID {
		return "", apierror.NewForbidden("invalid refresh token", nil)
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	// A logout or login may have replaced the token since the lookup.
	current, err := s.store.GetByID(ctx, user.ID)
	if errors.Is(err, model.ErrNotFound) {
		return "", apierror.NewForbidden("invalid refresh token", nil)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user by id: %w", err)
	}
	if current.RefreshTokenHash == nil || !equalHash(*current.RefreshTokenHash, hash) {
		return "", apierror.NewForbidden("invalid refresh token", nil)
	}

	access, err := s.manager.GenerateAccessToken(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue new access: %w", err)
	}

	s.logger.Debug("Token service: access token refreshed", "user_id", user.ID)

	return access, nil
}

// Invalidate clears the stored refresh token of the account. Clearing an already cleared
// account is a no-op.
func (s *TokenService) Invalidate(ctx context.Context, userID uuid.UUID) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.store.SetRefreshTokenHash(ctx, userID, nil); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("clear refresh: %w", err)
	}

	s.logger.Debug("Token service: credentials invalidated", "user_id", userID)

	return nil
}

// InvalidateByToken invalidates the account currently holding presented. Unknown tokens
// are ignored.
func (s *TokenService) InvalidateByToken(ctx context.Context, presented string) error {
	if presented == "" {
		return nil
	}

	hash := hashRefresh(presented)

	user, err := s.store.GetByRefreshTokenHash(ctx, hash)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user by refresh token: %w", err)
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	current, err := s.store.GetByID(ctx, user.ID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user by id: %w", err)
	}
	// A newer login already replaced the presented token; leave that session alone.
	if current.RefreshTokenHash == nil || !equalHash(*current.RefreshTokenHash, hash) {
		return nil
	}

	if err := s.store.SetRefreshTokenHash(ctx, user.ID, nil); err != nil {
		return fmt.Errorf("clear refresh: %w", err)
	}

	s.logger.Debug("Token service: credentials invalidated", "user_id", user.ID)

	return nil
}

func hashRefresh(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func equalHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
