package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/mindhealer-server/internal/apierror"
	"github.com/dtroode/mindhealer-server/internal/mocks"
	"github.com/dtroode/mindhealer-server/internal/model"
	"github.com/dtroode/mindhealer-server/internal/password"
	"github.com/dtroode/mindhealer-server/internal/repository/memory"
	"github.com/dtroode/mindhealer-server/internal/testutil"
	"github.com/dtroode/mindhealer-server/internal/token"
)

func newTestAuth(t *testing.T) (*Auth, *testClock) {
	t.Helper()

	clock := &testClock{t: time.Now()}
	manager, err := token.NewJWT("access-secret", "refresh-secret",
		token.WithClock(clock.Now),
		token.WithAccessTTL(time.Minute),
		token.WithRefreshTTL(time.Hour),
	)
	require.NoError(t, err)

	store := memory.NewUserRepository()
	log := testutil.MakeNoopLogger()
	hasher := password.NewHasher(password.Params{Time: 1, MemKiB: 8 * 1024, Par: 1})

	return NewAuth(store, hasher, NewTokenService(manager, store, log), log), clock
}

func TestAuth_Signup(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuth(t)

	user, err := a.Signup(ctx, SignupParams{Username: " alice ", Email: " Alice@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.Nil(t, user.RefreshTokenHash)

	_, err = a.Signup(ctx, SignupParams{Username: "alice2", Email: "alice@example.com", Password: "secret2"})
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindConflict))
	assert.Equal(t, 400, apierror.As(err).Status())
}

func TestAuth_Signup_Validation(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuth(t)

	tests := []struct {
		name    string
		params  SignupParams
		message string
	}{
		{name: "missing username", params: SignupParams{Email: "a@x.com", Password: "secret1"}, message: "username is required"},
		{name: "missing email", params: SignupParams{Username: "a", Password: "secret1"}, message: "email is required"},
		{name: "missing password", params: SignupParams{Username: "a", Email: "a@x.com"}, message: "password is required"},
		{name: "bad email", params: SignupParams{Username: "a", Email: "not-an-email", Password: "secret1"}, message: "email must be a valid email address"},
		{name: "short password", params: SignupParams{Username: "a", Email: "a@x.com", Password: "123"}, message: "password must be at least 6 characters"},
		{name: "blank username", params: SignupParams{Username: "   ", Email: "a@x.com", Password: "secret1"}, message: "username is required"},
		{name: "several fields", params: SignupParams{Email: "nope", Password: "1"}, message: "username is required; email must be a valid email address; password must be at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Signup(ctx, tt.params)
			require.Error(t, err)
			assert.True(t, apierror.IsKind(err, apierror.KindValidation))
			assert.Equal(t, tt.message, apierror.As(err).Message)
		})
	}
}

func TestAuth_Signup_StoreErrors(t *testing.T) {
	ctx := context.Background()
	log := testutil.MakeNoopLogger()
	params := SignupParams{Username: "a", Email: "a@x.com", Password: "secret1"}

	t.Run("lookup failure", func(t *testing.T) {
		store := mocks.NewUserStore(t)
		store.On("GetByEmail", mock.Anything, "a@x.com").Return(model.User{}, errors.New("db down"))

		a := NewAuth(store, mocks.NewPasswordHasher(t), nil, log)
		_, err := a.Signup(ctx, params)
		require.Error(t, err)
		assert.Equal(t, apierror.KindInternal, apierror.As(err).Kind)
	})

	t.Run("create race", func(t *testing.T) {
		store := mocks.NewUserStore(t)
		hasher := mocks.NewPasswordHasher(t)
		store.On("GetByEmail", mock.Anything, "a@x.com").Return(model.User{}, model.ErrNotFound)
		hasher.On("Hash", "secret1").Return("hash", nil)
		store.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.Email == "a@x.com" && u.PasswordHash == "hash"
		})).Return(model.User{}, model.ErrAlreadyExists)

		a := NewAuth(store, hasher, nil, log)
		_, err := a.Signup(ctx, params)
		assert.True(t, apierror.IsKind(err, apierror.KindConflict))
	})
}

func TestAuth_Login(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuth(t)

	user, err := a.Signup(ctx, SignupParams{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	res, err := a.Login(ctx, LoginParams{Email: "A@X.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.NotEmpty(t, res.Credentials.AccessToken)
	assert.NotEmpty(t, res.Credentials.RefreshToken)

	id, err := a.tokenService.VerifyAccess(ctx, res.Credentials.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestAuth_Login_Failures(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuth(t)

	_, err := a.Signup(ctx, SignupParams{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = a.Login(ctx, LoginParams{Email: "a@x.com", Password: "wrong"})
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidCredentials))

	_, err = a.Login(ctx, LoginParams{Email: "nobody@x.com", Password: "secret1"})
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidCredentials))

	_, err = a.Login(ctx, LoginParams{Email: "", Password: ""})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestAuth_Login_UnknownEmailStillVerifies(t *testing.T) {
	store := mocks.NewUserStore(t)
	hasher := mocks.NewPasswordHasher(t)

	store.On("GetByEmail", mock.Anything, "nobody@x.com").Return(model.User{}, model.ErrNotFound).Twice()
	hasher.On("Hash", mock.AnythingOfType("string")).Return("dummy", nil).Once()
	hasher.On("Verify", "secret1", "dummy").Return(false, nil).Twice()

	a := NewAuth(store, hasher, nil, testutil.MakeNoopLogger())
	for i := 0; i < 2; i++ {
		_, err := a.Login(context.Background(), LoginParams{Email: "nobody@x.com", Password: "secret1"})
		assert.True(t, apierror.IsKind(err, apierror.KindInvalidCredentials))
	}
}

func TestAuth_Login_Validation(t *testing.T) {
	a, _ := newTestAuth(t)

	_, err := a.Login(context.Background(), LoginParams{Email: "not-an-email", Password: ""})
	require.Error(t, err)
	assert.Equal(t, "email must be a valid email address; password is required", apierror.As(err).Message)
}

func TestAuth_Login_UnreadableHash(t *testing.T) {
	store := mocks.NewUserStore(t)
	hasher := mocks.NewPasswordHasher(t)
	user := model.User{ID: uuid.New(), Email: "a@x.com", PasswordHash: "broken"}

	store.On("GetByEmail", mock.Anything, "a@x.com").Return(user, nil)
	hasher.On("Verify", "secret1", "broken").Return(false, password.ErrInvalidHash)

	a := NewAuth(store, hasher, nil, testutil.MakeNoopLogger())
	_, err := a.Login(context.Background(), LoginParams{Email: "a@x.com", Password: "secret1"})
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidCredentials))
}

func TestAuth_Logout(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuth(t)

	_, err := a.Signup(ctx, SignupParams{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	res, err := a.Login(ctx, LoginParams{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, a.Logout(ctx, res.Credentials.RefreshToken))
	require.NoError(t, a.Logout(ctx, res.Credentials.RefreshToken))
	require.NoError(t, a.Logout(ctx, ""))

	_, err = a.tokenService.Refresh(ctx, res.Credentials.RefreshToken)
	assert.True(t, apierror.IsKind(err, apierror.KindForbidden))
}

func TestAuth_GetUser(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuth(t)

	user, err := a.Signup(ctx, SignupParams{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	got, err := a.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = a.GetUser(ctx, uuid.New())
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

// Login, use, expire, refresh, retry.
func TestAuth_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	a, clock := newTestAuth(t)

	_, err := a.Signup(ctx, SignupParams{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	res, err := a.Login(ctx, LoginParams{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	id, err := a.tokenService.VerifyAccess(ctx, res.Credentials.AccessToken)
	require.NoError(t, err)

	clock.Advance(90 * time.Second)
	_, err = a.tokenService.VerifyAccess(ctx, res.Credentials.AccessToken)
	require.True(t, apierror.IsKind(err, apierror.KindAccessExpired))

	access, err := a.tokenService.Refresh(ctx, res.Credentials.RefreshToken)
	require.NoError(t, err)

	retried, err := a.tokenService.VerifyAccess(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, id, retried)

	require.NoError(t, a.Logout(ctx, res.Credentials.RefreshToken))
	_, err = a.tokenService.Refresh(ctx, res.Credentials.RefreshToken)
	assert.True(t, apierror.IsKind(err, apierror.KindForbidden))
}
