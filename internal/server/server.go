// Package server wires every component together and runs the HTTP server.
//
// STARTUP ORDER:
// New performs the bootstrap steps in a fixed order:
//
//  1. createApp           new chi router
//  2. configureDatabase   connector, client options, user store
//  3. initializeDatabase  start connecting in the background (not awaited)
//  4. config              global middleware: request ID, real IP, logging,
//     panic recovery, body limit, CORS, security headers
//  5. createServer        *http.Server with timeouts
//  6. registerRoutes      users router on / and /api, /health
//  7. errorHandling       JSON 404 and 405
//
// Run then binds the port, logs readiness, starts seeding when SEED_DATA is
// set and serves until its context is cancelled.
//
// The HTTP server does not wait for the database. Requests that need it
// before the connection is up (or after it failed) get a 503.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/profile-api/internal/auth"
	"github.com/sakif/profile-api/internal/config"
	"github.com/sakif/profile-api/internal/database"
	"github.com/sakif/profile-api/internal/handler"
	"github.com/sakif/profile-api/internal/middleware"
	"github.com/sakif/profile-api/internal/repository/mongodb"
	"github.com/sakif/profile-api/internal/seed"
	"github.com/sakif/profile-api/internal/service"
	"github.com/sakif/profile-api/internal/validation"
)

const (
	// ConnectTimeout bounds the background connection attempt.
	ConnectTimeout = 30 * time.Second
	// ShutdownTimeout is how long in-flight requests get to finish.
	ShutdownTimeout = 30 * time.Second
)

// Seeder is the startup data task run after the server starts listening.
// *seed.ApplicationSeeder implements it.
type Seeder interface {
	Seed(ctx context.Context) error
	SuccessMessage() string
	ErrorMessage(err error) string
}

// Option customizes a Server in New.
type Option func(*Server)

// WithSeeder replaces the default seeder.
func WithSeeder(sd Seeder) Option {
	return func(s *Server) { s.seeder = sd }
}

// WithPasswordService replaces the bcrypt settings, e.g. a low cost in tests.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// Server owns the router, the HTTP server and the database connection.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	router     *chi.Mux
	httpServer *http.Server
	db         *database.Connector
	users      *mongodb.UserStore
	errHandler *handler.ErrorHandler
	validator  *validation.Validator
	tokens     *auth.TokenService
	passwords  *auth.PasswordService
	userSvc    *service.UserService
	seeder     Seeder

	// bgCtx lives until shutdown; background work (connect, seed) uses it.
	bgCtx    context.Context
	bgCancel context.CancelFunc

	seedOnce sync.Once
	started  atomic.Bool
	ready    chan struct{}
	addr     net.Addr
}

// ErrAlreadyStarted is returned by a second call to Run.
var ErrAlreadyStarted = errors.New("server: already started")

// New builds the server. The database connection is started but not awaited;
// New fails only on configuration it cannot use.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("server: creating token service: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		tokens:    tokens,
		passwords: auth.NewPasswordService(),
		validator: validation.New(),
		ready:     make(chan struct{}),
	}
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}

	s.createApp()
	s.configureDatabase()
	s.initializeDatabase()
	s.config()
	s.createServer()
	s.registerRoutes()
	s.errorHandling()

	return s, nil
}

func (s *Server) createApp() {
	s.router = chi.NewRouter()
}

func (s *Server) configureDatabase() {
	s.db = database.New(s.cfg, s.logger)
	s.users = mongodb.NewUserStore(s.db)
	s.db.OnConnect(s.users.EnsureIndexes)
}

func (s *Server) initializeDatabase() {
	go func() {
		ctx, cancel := context.WithTimeout(s.bgCtx, ConnectTimeout)
		defer cancel()
		// Failures are logged by the connector; the server runs degraded.
		_ = s.db.Connect(ctx)
	}()
}

// config mounts the global middleware. Order matters: the request ID must
// exist before the logger reads it, and the recoverer must sit inside the
// logger so a panic is still logged as a 500.
func (s *Server) config() {
	s.errHandler = handler.NewErrorHandler(s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(s.errHandler.Recoverer)
	s.router.Use(chimiddleware.RequestSize(middleware.MaxBodyBytes))
	s.router.Use(middleware.CORS(s.cfg.CORSOrigins))
	s.router.Use(middleware.SecureHeaders())
}

func (s *Server) createServer() {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
}

func (s *Server) errorHandling() {
	s.errHandler.Install(s.router)
}

// Handler returns the fully composed application.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Ready is closed once Run has bound its listener.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound listener address. It is nil before Ready is closed.
func (s *Server) Addr() net.Addr {
	select {
	case <-s.ready:
		return s.addr
	default:
		return nil
	}
}

// Run binds the port and serves until ctx is cancelled, then shuts down
// gracefully and disconnects the database. A Server runs once; later calls
// return ErrAlreadyStarted.
func (s *Server) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer s.bgCancel()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listening on %s: %w", s.httpServer.Addr, err)
	}
	s.addr = ln.Addr()
	close(s.ready)
	s.onListen()

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.httpServer.Serve(ln) }()

	select {
	case err := <-serveErr:
		s.bgCancel()
		s.closeDatabase()
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	shutdownErr := s.httpServer.Shutdown(shutdownCtx)
	s.bgCancel()
	s.closeDatabase()
	if shutdownErr != nil {
		return fmt.Errorf("server: graceful shutdown failed: %w", shutdownErr)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

// onListen runs once the listener is bound.
func (s *Server) onListen() {
	port := s.cfg.Port
	if tcp, ok := s.addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	s.logger.Info("app is running",
		slog.String("url", fmt.Sprintf("http://localhost:%d", port)),
		slog.String("mode", s.cfg.Env),
	)
	s.seedData()
}

// seedData starts the seeder at most once per process, when SEED_DATA is
// set. It waits for the first connection attempt to settle so a seed does not
// race the connector; the outcome is only logged.
func (s *Server) seedData() {
	if !s.cfg.SeedData {
		return
	}
	s.seedOnce.Do(func() {
		sd := s.seeder
		if sd == nil {
			sd = seed.NewApplicationSeeder(s.userSvc, s.logger)
		}
		go func() {
			select {
			case <-s.db.Done():
			case <-s.bgCtx.Done():
				return
			}
			if err := sd.Seed(s.bgCtx); err != nil {
				s.logger.Error(sd.ErrorMessage(err))
				return
			}
			s.logger.Info(sd.SuccessMessage())
		}()
	})
}

func (s *Server) closeDatabase() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.db.Disconnect(ctx); err != nil {
		s.logger.Error("closing database failed", slog.String("error", err.Error()))
	}
}
