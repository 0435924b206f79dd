// Package model defines the data structures used throughout the application.
package model

import (
	"encoding/json"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is the document stored in the "users" collection.
//
// The bson tags describe the stored shape. The JSON shape is produced by
// MarshalJSON: the internal _id and __v fields and the password hash never
// leave the process, and the virtual fields id and fullName are added.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Version      int64         `bson:"__v"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"passwordHash"`
	FirstName    string        `bson:"firstName"`
	LastName     string        `bson:"lastName"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
}

// UserView is the external representation of a User.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName is a virtual field; it is never stored.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// View converts the document to its external representation.
func (u *User) View() UserView {
	var id string
	if !u.ID.IsZero() {
		id = u.ID.Hex()
	}
	return UserView{
		ID:        id,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// MarshalJSON makes View the only way a User can be encoded.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.View())
}

// RegisterInput is the body of POST /register and PUT /profile.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,maxbytes=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

// LoginInput is the body of POST /login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
