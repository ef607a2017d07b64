package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dtroode/mindhealer-server/internal/apierror"
	"github.com/dtroode/mindhealer-server/internal/logger"
	"github.com/dtroode/mindhealer-server/internal/model"
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// SignupParams is the signup payload.
type SignupParams struct {
	Username string `validate:"required,max=64"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=6,max=128"`
}

// LoginParams is the login payload.
type LoginParams struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Credentials model.Credentials
	User        model.User
}

type Auth struct {
	userStore    model.UserStore
	hasher       PasswordHasher
	tokenService *TokenService
	validate     *validator.Validate
	logger       *logger.Logger

	// dummyHash is verified against when the email is unknown, so both failure
	// paths pay the same KDF cost.
	dummyOnce sync.Once
	dummyHash string
}

func NewAuth(
	userStore model.UserStore,
	hasher PasswordHasher,
	tokenService *TokenService,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		userStore:    userStore,
		hasher:       hasher,
		tokenService: tokenService,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       logger,
	}
}

func (a *Auth) Signup(ctx context.Context, params SignupParams) (model.User, error) {
	params.Email = normalizeEmail(params.Email)
	params.Username = strings.TrimSpace(params.Username)

	a.logger.Debug("Auth service: starting user registration",
		"email", params.Email)

	if err := a.validate.Struct(params); err != nil {
		return model.User{}, apierror.NewValidation(validationMessage(err), err)
	}

	_, err := a.userStore.GetByEmail(ctx, params.Email)
	if err == nil {
		a.logger.Info("Auth service: user already exists",
			"email", params.Email)
		return model.User{}, apierror.NewConflict("user already exists")
	}
	if !errors.Is(err, model.ErrNotFound) {
		a.logger.Error("Auth service: failed to get user by email",
			"email", params.Email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	passwordHash, err := a.hasher.Hash(params.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user, err := a.userStore.Create(ctx, model.User{
		ID:           uuid.New(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, model.ErrAlreadyExists) {
		return model.User{}, apierror.NewConflict("user already exists")
	}
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", params.Email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info("Auth service: user registration completed successfully",
		"user_id", user.ID)

	return user, nil
}

func (a *Auth) Login(ctx context.Context, params LoginParams) (LoginResult, error) {
	params.Email = normalizeEmail(params.Email)

	a.logger.Debug("Auth service: starting user login",
		"email", params.Email)

	if err := a.validate.Struct(params); err != nil {
		return LoginResult{}, apierror.NewValidation(validationMessage(err), err)
	}

	user, err := a.userStore.GetByEmail(ctx, params.Email)
	if errors.Is(err, model.ErrNotFound) {
		a.burnVerify(params.Password)
		return LoginResult{}, apierror.NewInvalidCredentials()
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	ok, err := a.hasher.Verify(params.Password, user.PasswordHash)
	if err != nil {
		a.logger.Error("Auth service: stored password hash is unreadable",
			"user_id", user.ID,
			"error", err.Error())
		return LoginResult{}, apierror.NewInvalidCredentials()
	}
	if !ok {
		a.logger.Info("Auth service: wrong password",
			"user_id", user.ID)
		return LoginResult{}, apierror.NewInvalidCredentials()
	}

	credentials, err := a.tokenService.Issue(ctx, user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to issue token: %w", err)
	}

	a.logger.Info("Auth service: login completed successfully",
		"user_id", user.ID)

	return LoginResult{Credentials: credentials, User: user}, nil
}

// Logout invalidates the session holding refreshToken. It succeeds for unknown tokens.
func (a *Auth) Logout(ctx context.Context, refreshToken string) error {
	if err := a.tokenService.InvalidateByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

func (a *Auth) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	user, err := a.userStore.GetByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, apierror.NewNotFound("user not found")
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

// burnVerify runs a password verification whose result is discarded.
func (a *Auth) burnVerify(password string) {
	a.dummyOnce.Do(func() {
		hash, err := a.hasher.Hash(uuid.NewString())
		if err != nil {
			a.logger.Error("Auth service: failed to prepare dummy hash",
				"error", err.Error())
			return
		}
		a.dummyHash = hash
	})
	if a.dummyHash == "" {
		return
	}
	_, _ = a.hasher.Verify(password, a.dummyHash)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
