// Package mongodb implements the repository interfaces on MongoDB.
//
// The store does not own a client. It asks a DatabaseProvider for the current
// *mongo.Database on every call, so it can be built before the connection
// exists and starts working as soon as the connector finishes.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sakif/profile-api/internal/apperror"
	"github.com/sakif/profile-api/internal/model"
	"github.com/sakif/profile-api/internal/repository"
)

// UsersCollection is the collection holding model.User documents.
const UsersCollection = "users"

// DatabaseProvider hands out the live database handle.
// *database.Connector implements it.
type DatabaseProvider interface {
	Database() (*mongo.Database, error)
}

// UserStore is the MongoDB-backed repository.UserRepository.
type UserStore struct {
	db DatabaseProvider
}

var _ repository.UserRepository = (*UserStore)(nil)

// NewUserStore creates a UserStore reading the database from db.
func NewUserStore(db DatabaseProvider) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) users() (*mongo.Collection, error) {
	db, err := s.db.Database()
	if err != nil {
		return nil, apperror.Unavailable("database unavailable", err)
	}
	return db.Collection(UsersCollection), nil
}

// EnsureIndexes creates the unique e-mail index. It is idempotent.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	coll, err := s.users()
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("mongodb: creating users email index: %w", err)
	}
	return nil
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	coll, err := s.users()
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	user.ID = bson.NewObjectID()
	user.Version = 0
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := coll.InsertOne(ctx, user); err != nil {
		user.ID = bson.ObjectID{}
		return mapError(err, user.Email, fmt.Sprintf("mongodb: inserting user %s", user.Email))
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.NotFound("user", id)
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}}, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}}, email)
}

func (s *UserStore) findOne(ctx context.Context, filter bson.D, key string) (*model.User, error) {
	coll, err := s.users()
	if err != nil {
		return nil, err
	}

	var u model.User
	if err := coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, mapError(err, key, fmt.Sprintf("mongodb: finding user %s", key))
	}
	return &u, nil
}

// Update uses __v as an optimistic lock: the write only matches the document
// if nobody else changed it since it was read.
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	coll, err := s.users()
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.D{{Key: "_id", Value: user.ID}, {Key: "__v", Value: user.Version}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "email", Value: user.Email},
			{Key: "passwordHash", Value: user.PasswordHash},
			{Key: "firstName", Value: user.FirstName},
			{Key: "lastName", Value: user.LastName},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$inc", Value: bson.D{{Key: "__v", Value: 1}}},
	}

	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return mapError(err, user.Email, fmt.Sprintf("mongodb: updating user %s", user.ID.Hex()))
	}

	if res.MatchedCount == 0 {
		n, err := coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: user.ID}})
		if err != nil {
			return mapError(err, user.ID.Hex(), fmt.Sprintf("mongodb: counting user %s", user.ID.Hex()))
		}
		if n == 0 {
			return apperror.NotFound("user", user.ID.Hex())
		}
		return &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "user was modified concurrently, retry the request",
		}
	}

	user.Version++
	user.UpdatedAt = now
	return nil
}

// mapError converts driver errors into apperror values where a client can
// act on them; everything else is wrapped with msg.
func mapError(err error, key, msg string) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return apperror.Conflict("user", key)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return apperror.Unavailable("database unavailable", err)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
