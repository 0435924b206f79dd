// Package service contains the business logic layer of the application.
//
// Handlers call services; services call repositories. A service never sees
// an *http.Request and never picks a status code: it returns apperror values
// and the handler layer maps them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/profile-api/internal/apperror"
	"github.com/sakif/profile-api/internal/auth"
	"github.com/sakif/profile-api/internal/model"
	"github.com/sakif/profile-api/internal/repository"
	"github.com/sakif/profile-api/internal/validation"
)

// errBadCredentials is shared by the unknown-email and wrong-password paths
// so a caller cannot tell which one happened.
const errBadCredentials = "invalid email or password"

// UserService handles registration, login and the profile of the current
// user.
type UserService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validate  *validation.Validator
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	validate *validation.Validator,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validate:  validate,
		logger:    logger,
	}
}

// AuthResult is what register and login hand back to the client.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register creates a user and signs them in.
func (s *UserService) Register(ctx context.Context, in model.RegisterInput) (*AuthResult, error) {
	in = normalize(in)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: creating user %s: %w", in.Email, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID.Hex()),
		slog.String("email", user.Email),
	)
	return s.signIn(user)
}

// Login checks the credentials and issues a token. Unknown e-mail and wrong
// password produce the same Unauthorized error.
func (s *UserService) Login(ctx context.Context, in model.LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(errBadCredentials)
		}
		return nil, fmt.Errorf("service/user: looking up %s: %w", in.Email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login rejected", slog.String("userID", user.ID.Hex()))
			return nil, apperror.Unauthorized(errBadCredentials)
		}
		return nil, fmt.Errorf("service/user: verifying password: %w", err)
	}

	return s.signIn(user)
}

// Profile returns the user with the given ID.
func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %s: %w", userID, err)
	}
	return user, nil
}

// UpdateProfile replaces e-mail, password and names of the given user. The
// input follows the registration rules.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in model.RegisterInput) (*model.User, error) {
	in = normalize(in)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user.Email = in.Email
	user.PasswordHash = hash
	user.FirstName = in.FirstName
	user.LastName = in.LastName

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating user %s: %w", userID, err)
	}

	s.logger.Info("profile updated",
		slog.String("userID", userID),
		slog.Int64("version", user.Version),
	)
	return user, nil
}

func (s *UserService) signIn(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("service/user: generating token for user %s: %w", user.ID.Hex(), err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func normalize(in model.RegisterInput) model.RegisterInput {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	return in
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) hashPassword(plaintext string) (string, error) {
	hash, err := s.passwords.Hash(plaintext)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperror.ValidationFailed("password", "password must be 72 bytes or less")
	}
	if err != nil {
		return "", fmt.Errorf("service/user: hashing password: %w", err)
	}
	return hash, nil
}
