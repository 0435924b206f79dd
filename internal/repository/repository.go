// Package repository declares the persistence interfaces the service layer
// depends on. Implementations live in sub-packages (mongodb).
package repository

import (
	"context"

	"github.com/sakif/profile-api/internal/model"
)

// UserRepository stores user documents.
//
// Implementations return apperror.NotFound for missing users,
// apperror.Conflict for a duplicate e-mail and apperror.Unavailable when the
// database cannot be reached.
type UserRepository interface {
	// Create assigns ID, timestamps and version 0, then inserts the user.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Update replaces the mutable fields if the stored version still equals
	// user.Version, then increments user.Version.
	Update(ctx context.Context, user *model.User) error
}
