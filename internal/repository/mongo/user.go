package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dtroode/mindhealer-server/internal/model"
)

const usersCollection = "users"

var _ model.UserStore = (*UserRepository)(nil)

type userDocument struct {
	ID               string    `bson:"_id"`
	Username         string    `bson:"username"`
	Email            string    `bson:"email"`
	PasswordHash     string    `bson:"password_hash"`
	Bio              string    `bson:"bio"`
	Avatar           string    `bson:"avatar"`
	Age              *int      `bson:"age,omitempty"`
	Location         string    `bson:"location"`
	RefreshTokenHash *string   `bson:"refresh_token_hash,omitempty"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func newUserDocument(u model.User) userDocument {
	return userDocument{
		ID:               u.ID.String(),
		Username:         u.Username,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		Bio:              u.Profile.Bio,
		Avatar:           u.Profile.Avatar,
		Age:              u.Profile.Age,
		Location:         u.Profile.Location,
		RefreshTokenHash: u.RefreshTokenHash,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (d userDocument) toModel() (model.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return model.User{}, fmt.Errorf("malformed user id %q: %w", d.ID, err)
	}
	return model.User{
		ID:           id,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Profile: model.Profile{
			Bio:      d.Bio,
			Avatar:   d.Avatar,
			Age:      d.Age,
			Location: d.Location,
		},
		RefreshTokenHash: d.RefreshTokenHash,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

type UserRepository struct {
	conn       *Connection
	collection *mongo.Collection
}

// NewUserRepository returns a repository over the users collection and ensures its indexes.
func NewUserRepository(ctx context.Context, conn *Connection) (*UserRepository, error) {
	collection := conn.db.Collection(usersCollection)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "refresh_token_hash", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"refresh_token_hash": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user indexes: %w", err)
	}

	return &UserRepository{
		conn:       conn,
		collection: collection,
	}, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	user, err := r.findOne(ctx, bson.M{"email": email})
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	user, err := r.findOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (model.User, error) {
	user, err := r.findOne(ctx, bson.M{"refresh_token_hash": hash})
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by refresh token: %w", err)
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := newUserDocument(user)
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.User{}, model.ErrAlreadyExists
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return doc.toModel()
}

func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id uuid.UUID, hash *string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}}
	if hash == nil {
		update["$unset"] = bson.M{"refresh_token_hash": ""}
	} else {
		update["$set"].(bson.M)["refresh_token_hash"] = *hash
	}

	res, err := r.collection.UpdateByID(ctx, id.String(), update)
	if err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, err
	}
	return doc.toModel()
}
