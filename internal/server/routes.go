package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/sakif/profile-api/internal/handler"
	"github.com/sakif/profile-api/internal/service"
)

// registerRoutes builds the dependency chain and mounts the routers.
//
//	UserStore (repository) → UserService → UsersHandler → users router
//
// GET  /health
// POST /register, /login, /logout
// GET  /profile, PUT /profile
//
// The users router is served at the root and again under /api.
func (s *Server) registerRoutes() {
	s.userSvc = service.NewUserService(s.users, s.tokens, s.passwords, s.validator, s.logger)
	usersHandler := handler.NewUsersHandler(s.userSvc, s.tokens, !s.cfg.IsDev(), s.logger)

	newUsersRouter := func() chi.Router {
		return handler.UsersRoutes(usersHandler, s.errHandler, s.tokens, s.validator)
	}

	s.router.Get("/health", handler.Health(s.db))
	s.router.Mount("/api", newUsersRouter())
	s.router.Mount("/", newUsersRouter())
}
