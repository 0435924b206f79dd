package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/profile-api/internal/apperror"
	"github.com/sakif/profile-api/internal/auth"
	"github.com/sakif/profile-api/internal/middleware"
	"github.com/sakif/profile-api/internal/model"
	"github.com/sakif/profile-api/internal/service"
	"github.com/sakif/profile-api/internal/validation"
)

// UserService is what UsersHandler needs from the service layer.
// *service.UserService implements it.
type UserService interface {
	Register(ctx context.Context, in model.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in model.LoginInput) (*service.AuthResult, error)
	Profile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, in model.RegisterInput) (*model.User, error)
}

// UsersHandler serves registration, login and the current user's profile.
type UsersHandler struct {
	users        UserService
	tokenTTL     int // cookie Max-Age in seconds
	secureCookie bool
	logger       *slog.Logger
}

// NewUsersHandler creates a UsersHandler. The login cookie lives as long as
// the token and is marked Secure outside development.
func NewUsersHandler(users UserService, tokens *auth.TokenService, secureCookie bool, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{
		users:        users,
		tokenTTL:     int(tokens.TTL().Seconds()),
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// Register creates an account.
//
// HTTP: POST /register → 201 {"token": "...", "user": {...}}
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) error {
	var in model.RegisterInput
	if err := middleware.DecodeBody(w, r, &in); err != nil {
		return err
	}

	res, err := h.users.Register(r.Context(), in)
	if err != nil {
		return err
	}

	h.setTokenCookie(w, res.Token, h.tokenTTL)
	writeJSON(w, http.StatusCreated, res)
	return nil
}

// Login exchanges credentials for a token. The token is returned in the body
// and also set as an HttpOnly cookie for browser clients.
//
// HTTP: POST /login → 200 {"token": "...", "user": {...}}
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var in model.LoginInput
	if err := middleware.DecodeBody(w, r, &in); err != nil {
		return err
	}

	res, err := h.users.Login(r.Context(), in)
	if err != nil {
		return err
	}

	h.setTokenCookie(w, res.Token, h.tokenTTL)
	writeJSON(w, http.StatusOK, res)
	return nil
}

// Logout clears the token cookie. Tokens are stateless, so a copy held
// elsewhere stays valid until it expires.
//
// HTTP: POST /logout
func (h *UsersHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	h.setTokenCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	return nil
}

// Profile returns the authenticated user.
//
// HTTP: GET /profile (auth gate)
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) error {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return apperror.Unauthorized("valid authentication required")
	}

	user, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

// UpdateProfile replaces the authenticated user's profile with the body
// already checked by the validation gate.
//
// HTTP: PUT /profile (validation gate, auth gate)
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) error {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return apperror.Unauthorized("valid authentication required")
	}
	in, ok := middleware.ValidatedBody[model.RegisterInput](r.Context())
	if !ok {
		return apperror.ValidationFailed("", "request body is required")
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

func (h *UsersHandler) setTokenCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// UsersRoutes builds the users router:
//
//	POST /register
//	POST /login
//	POST /logout
//	GET  /profile   auth gate
//	PUT  /profile   validation gate, then auth gate
func UsersRoutes(h *UsersHandler, errs *ErrorHandler, tokens *auth.TokenService, v *validation.Validator) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", errs.Handle(h.Register))
	r.Post("/login", errs.Handle(h.Login))
	r.Post("/logout", errs.Handle(h.Logout))

	r.With(auth.RequireAuth(tokens)).Get("/profile", errs.Handle(h.Profile))
	r.With(
		middleware.Validate[model.RegisterInput](v),
		auth.RequireAuth(tokens),
	).Put("/profile", errs.Handle(h.UpdateProfile))

	return r
}
