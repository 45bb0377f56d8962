// internal/domain/models/user.go
package models

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User includes case/diacritic-insensitive fields for search/sort.
// Users are referenced, never owned, by organizations and projects:
// deleting a user never cascades into resources they own.
type User struct {
	ID           primitive.ObjectID `bson:"_id"`
	Username     string             `bson:"username"`
	UsernameCI   string             `bson:"username_ci"` // ← always stored
	Email        string             `bson:"email"`
	EmailCI      string             `bson:"email_ci"` // ← always stored
	FirstName    string             `bson:"first_name"`
	FirstNameCI  string             `bson:"first_name_ci"`
	LastName     string             `bson:"last_name"`
	LastNameCI   string             `bson:"last_name_ci"`
	PasswordHash string             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// usernamePattern limits usernames to letters, numbers, dots, hyphens,
// and underscores.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidUsername reports whether name is an acceptable username.
func ValidUsername(name string) bool {
	return name != "" && len(name) <= 100 && usernamePattern.MatchString(name)
}

// FullName joins the user's first and last names.
func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// PublicUser is the profile shape shared with other participants
// (presence events, member lists). It never carries email or
// credential fields.
type PublicUser struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Username  string             `bson:"username" json:"username"`
	FirstName string             `bson:"first_name" json:"first_name"`
	LastName  string             `bson:"last_name" json:"last_name"`
}

// Public returns the user's public profile.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
