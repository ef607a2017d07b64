package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/mindhealer-server/internal/model"
)

const uniqueViolation = "23505"

var _ model.UserStore = (*UserRepository)(nil)

const userColumns = `id, username, email, password_hash, bio, avatar, age, location,
	refresh_token_hash, created_at, updated_at`

type userRow struct {
	ID               uuid.UUID `db:"id"`
	Username         string    `db:"username"`
	Email            string    `db:"email"`
	PasswordHash     string    `db:"password_hash"`
	Bio              string    `db:"bio"`
	Avatar           string    `db:"avatar"`
	Age              *int      `db:"age"`
	Location         string    `db:"location"`
	RefreshTokenHash *string   `db:"refresh_token_hash"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r userRow) toModel() model.User {
	return model.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Profile: model.Profile{
			Bio:      r.Bio,
			Avatar:   r.Avatar,
			Age:      r.Age,
			Location: r.Location,
		},
		RefreshTokenHash: r.RefreshTokenHash,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := r.getOne(ctx, query, email)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := r.getOne(ctx, query, id)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE refresh_token_hash = $1`

	user, err := r.getOne(ctx, query, hash)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by refresh token: %w", err)
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (id, username, email, password_hash, bio, avatar, age, location, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING ` + userColumns

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var row userRow
	err := pgxscan.Get(ctx, r.db, &row, query,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.Profile.Bio, user.Profile.Avatar, user.Profile.Age, user.Profile.Location,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.User{}, model.ErrAlreadyExists
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return row.toModel(), nil
}

func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id uuid.UUID, hash *string) error {
	query := `UPDATE users SET refresh_token_hash = $2, updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var row userRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, err
	}
	return row.toModel(), nil
}
