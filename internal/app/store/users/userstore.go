// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/blockhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateUsername is returned when the username is already taken
	// (case-insensitively).
	ErrDuplicateUsername = errors.New("a user with this username already exists")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrBadCredentials is returned by Authenticate for both unknown
	// usernames and wrong passwords.
	ErrBadCredentials = errors.New("invalid username or password")

	errBadUsername = errors.New("username may contain only letters, digits, '.', '-' and '_'")
	errBadPassword = errors.New("password must be at least 8 characters")
)

// NewUser holds the fields required to register an account.
type NewUser struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Create registers a new account. The password is bcrypt-hashed; the
// plaintext is never stored. Uniqueness of username and email is
// enforced case-insensitively by the _ci unique indexes.
func (s *Store) Create(ctx context.Context, nu NewUser) (models.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	nu.Email = strings.TrimSpace(nu.Email)
	if !models.ValidUsername(nu.Username) {
		return models.User{}, errBadUsername
	}
	if len(nu.Password) < 8 {
		return models.User{}, errBadPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Username:     nu.Username,
		UsernameCI:   text.Fold(nu.Username),
		Email:        nu.Email,
		EmailCI:      text.Fold(nu.Email),
		FirstName:    nu.FirstName,
		FirstNameCI:  text.Fold(nu.FirstName),
		LastName:     nu.LastName,
		LastNameCI:   text.Fold(nu.LastName),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, dupError(err)
		}
		return models.User{}, err
	}
	return u, nil
}

// dupError maps a duplicate-key error to the offending field. Mongo's
// duplicate-key message names the index, which we name after the field.
func dupError(err error) error {
	if strings.Contains(err.Error(), "email") {
		return ErrDuplicateEmail
	}
	return ErrDuplicateUsername
}

// Authenticate verifies a username/password pair and returns the user.
// The same error is returned for unknown usernames and bad passwords so
// callers cannot probe which usernames exist.
func (s *Store) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"username_ci": text.Fold(username)}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrBadCredentials
		}
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrBadCredentials
	}
	return u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByUsername looks a user up case-insensitively.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"username_ci": text.Fold(username)}).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByIDs loads users for a set of ObjectIDs, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProfileUpdate holds the fields an account owner may change.
type ProfileUpdate struct {
	Email     string
	FirstName string
	LastName  string
}

// UpdateProfile writes the mutable profile fields along with their
// case-folded companions.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) error {
	set := bson.M{
		"email":         upd.Email,
		"email_ci":      text.Fold(upd.Email),
		"first_name":    upd.FirstName,
		"first_name_ci": text.Fold(upd.FirstName),
		"last_name":     upd.LastName,
		"last_name_ci":  text.Fold(upd.LastName),
		"updated_at":    time.Now().UTC(),
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil && wafflemongo.IsDup(err) {
		return ErrDuplicateEmail
	}
	return err
}

// UpdatePassword rehashes and stores a new password.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, password string) error {
	if len(password) < 8 {
		return errBadPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": string(hash),
		"updated_at":    time.Now().UTC(),
	}})
	return err
}

// Find returns users matching filter with the given options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.User, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of users matching filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
