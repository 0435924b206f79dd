// Package seed populates a fresh database with default data.
//
// Seeding is not idempotent: it does not look for existing data. On a
// database that was already seeded the unique e-mail index rejects the
// duplicates and Seed reports them as an error, which the server only logs.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/profile-api/internal/model"
	"github.com/sakif/profile-api/internal/service"
)

// Registrar creates users. *service.UserService implements it.
type Registrar interface {
	Register(ctx context.Context, in model.RegisterInput) (*service.AuthResult, error)
}

// DefaultUsers is the data inserted by ApplicationSeeder.
var DefaultUsers = []model.RegisterInput{
	{Email: "admin@profile-api.local", Password: "ChangeMe-Admin-1", FirstName: "Admin", LastName: "User"},
	{Email: "jane.doe@profile-api.local", Password: "ChangeMe-Jane-1", FirstName: "Jane", LastName: "Doe"},
	{Email: "john.smith@profile-api.local", Password: "ChangeMe-John-1", FirstName: "John", LastName: "Smith"},
}

// ApplicationSeeder inserts DefaultUsers (or a custom set) through the user
// service, so seeded accounts get hashed passwords like any other.
type ApplicationSeeder struct {
	users    Registrar
	inputs   []model.RegisterInput
	logger   *slog.Logger
	inserted int
}

func NewApplicationSeeder(users Registrar, logger *slog.Logger) *ApplicationSeeder {
	return NewApplicationSeederWith(users, DefaultUsers, logger)
}

// NewApplicationSeederWith seeds inputs instead of DefaultUsers.
func NewApplicationSeederWith(users Registrar, inputs []model.RegisterInput, logger *slog.Logger) *ApplicationSeeder {
	return &ApplicationSeeder{users: users, inputs: inputs, logger: logger}
}

// Seed registers every input. It keeps going after a failure and returns all
// failures joined.
func (s *ApplicationSeeder) Seed(ctx context.Context) error {
	s.inserted = 0
	var errs []error
	for _, in := range s.inputs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.users.Register(ctx, in); err != nil {
			errs = append(errs, fmt.Errorf("seeding %s: %w", in.Email, err))
			continue
		}
		s.inserted++
		s.logger.Debug("seeded user", slog.String("email", in.Email))
	}
	return errors.Join(errs...)
}

// SuccessMessage describes a completed run.
func (s *ApplicationSeeder) SuccessMessage() string {
	return fmt.Sprintf("application data seeded: %d users inserted", s.inserted)
}

// ErrorMessage describes a failed run.
func (s *ApplicationSeeder) ErrorMessage(err error) string {
	return fmt.Sprintf("application data seeding failed after %d of %d users: %v", s.inserted, len(s.inputs), err)
}
