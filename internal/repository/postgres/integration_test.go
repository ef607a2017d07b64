//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/mindhealer-server/internal/model"
	repo "github.com/dtroode/mindhealer-server/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "mindhealer_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/mindhealer_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ur := repo.NewUserRepository(conn)
	require.NoError(t, ur.Ping(ctx))

	age := 29
	u := model.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "user@example.com",
		PasswordHash: "phc",
		Profile:      model.Profile{Bio: "hello", Age: &age},
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	saved, err := ur.Create(ctx, u)
	require.NoError(t, err)
	require.Equal(t, u.ID, saved.ID)
	require.Equal(t, "hello", saved.Profile.Bio)
	require.Nil(t, saved.RefreshTokenHash)

	_, err = ur.Create(ctx, model.User{ID: uuid.New(), Username: "bob", Email: u.Email, PasswordHash: "x", CreatedAt: time.Now(), UpdatedAt: time.Now()})
	require.ErrorIs(t, err, model.ErrAlreadyExists)

	byEmail, err := ur.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	_, err = ur.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrNotFound)

	hash := "digest"
	require.NoError(t, ur.SetRefreshTokenHash(ctx, u.ID, &hash))
	byHash, err := ur.GetByRefreshTokenHash(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, u.ID, byHash.ID)

	require.NoError(t, ur.SetRefreshTokenHash(ctx, u.ID, nil))
	_, err = ur.GetByRefreshTokenHash(ctx, hash)
	require.ErrorIs(t, err, model.ErrNotFound)

	require.ErrorIs(t, ur.SetRefreshTokenHash(ctx, uuid.New(), nil), model.ErrNotFound)
}
