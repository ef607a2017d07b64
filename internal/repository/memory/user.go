// Package memory provides an in-process account store for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/mindhealer-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]model.User
	byEmail map[string]uuid.UUID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[uuid.UUID]model.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return clone(user), nil
}

func (r *UserRepository) GetByRefreshTokenHash(_ context.Context, hash string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.byID {
		if user.RefreshTokenHash != nil && *user.RefreshTokenHash == hash {
			return clone(user), nil
		}
	}
	return model.User{}, model.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, user model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return model.User{}, model.ErrAlreadyExists
	}
	if _, ok := r.byID[user.ID]; ok {
		return model.User{}, model.ErrAlreadyExists
	}

	user = clone(user)
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID

	return clone(user), nil
}

func (r *UserRepository) SetRefreshTokenHash(_ context.Context, id uuid.UUID, hash *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return model.ErrNotFound
	}

	if hash == nil {
		user.RefreshTokenHash = nil
	} else {
		h := *hash
		user.RefreshTokenHash = &h
	}
	r.byID[id] = user

	return nil
}

func (r *UserRepository) Ping(context.Context) error {
	return nil
}

func clone(user model.User) model.User {
	if user.RefreshTokenHash != nil {
		h := *user.RefreshTokenHash
		user.RefreshTokenHash = &h
	}
	if user.Profile.Age != nil {
		age := *user.Profile.Age
		user.Profile.Age = &age
	}
	return user
}
