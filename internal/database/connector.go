// Package database owns the process-wide MongoDB connection.
//
// CONNECTION MODES:
//
//	development (NODE_ENV=DEV)  → connect to MONGODB_URI as given, then ping
//	anything else               → write CA_CERT to disk, connect over TLS
//	                              trusting only that certificate
//
// Connect is meant to run in the background while the HTTP server is already
// listening. Until it succeeds Database returns ErrNotConnected, and a failed
// attempt is logged and left alone: there is no retry loop of our own.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/sakif/profile-api/internal/config"
)

var (
	// ErrNotConnected is returned by Database before a connection exists.
	ErrNotConnected = errors.New("database: not connected")
	// ErrClosed is returned by Connect once Disconnect has run.
	ErrClosed = errors.New("database: connector closed")
)

// DefaultDatabaseName is used when MONGODB_URI names no database.
const DefaultDatabaseName = "profile-api"

const appName = "profile-api"

// Hook runs once after a successful connection. A failing hook is logged and
// does not undo the connection.
type Hook func(ctx context.Context) error

// Connector builds the client options up front and connects on demand.
type Connector struct {
	cfg    *config.Config
	logger *slog.Logger

	clientOpts *options.ClientOptions
	dbName     string

	mu     sync.Mutex // guards hooks, closed and the stores below
	hooks  []Hook
	closed bool

	client atomic.Pointer[mongo.Client]
	db     atomic.Pointer[mongo.Database]

	opened sync.Once

	done     chan struct{}
	doneOnce sync.Once
}

// New configures a connector. It does no I/O.
func New(cfg *config.Config, logger *slog.Logger) *Connector {
	c := &Connector{
		cfg:    cfg,
		logger: logger,
		dbName: DatabaseName(cfg.MongoURI),
		done:   make(chan struct{}),
	}
	c.clientOpts = options.Client().
		ApplyURI(cfg.MongoURI).
		SetAppName(appName).
		SetServerMonitor(c.serverMonitor())
	return c
}

// OnConnect registers a hook to run after the next successful Connect.
func (c *Connector) OnConnect(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// Connect opens the connection. It is called once per process. Every failure
// is logged here as well as returned, so a caller running it in a goroutine
// may ignore the result.
func (c *Connector) Connect(ctx context.Context) error {
	defer c.doneOnce.Do(func() { close(c.done) })

	if c.isClosed() {
		return ErrClosed
	}

	if !c.cfg.IsDev() {
		if err := WriteCACert(c.cfg.CACertPath, c.cfg.CACert); err != nil {
			c.logger.Error("writing database certificate failed, connection skipped",
				slog.String("path", c.cfg.CACertPath),
				slog.String("error", err.Error()),
			)
			return err
		}
		tlsCfg, err := TLSConfigFromFile(c.cfg.CACertPath)
		if err != nil {
			c.logger.Error("loading database certificate failed, connection skipped",
				slog.String("path", c.cfg.CACertPath),
				slog.String("error", err.Error()),
			)
			return err
		}
		c.clientOpts.SetTLSConfig(tlsCfg)
	}

	client, err := mongo.Connect(c.clientOpts)
	if err != nil {
		c.logger.Error("database client setup failed", slog.String("error", err.Error()))
		return fmt.Errorf("database: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		c.logger.Error("database connection failed",
			slog.String("database", c.dbName),
			slog.String("error", err.Error()),
		)
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
		return fmt.Errorf("database: pinging: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
		return ErrClosed
	}
	c.client.Store(client)
	c.db.Store(client.Database(c.dbName))
	c.mu.Unlock()

	c.logger.Info("database connected",
		slog.String("database", c.dbName),
		slog.Bool("tls", !c.cfg.IsDev()),
	)

	c.runHooks(ctx)
	return nil
}

func (c *Connector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connector) runHooks(ctx context.Context) {
	c.mu.Lock()
	hooks := append([]Hook(nil), c.hooks...)
	c.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx); err != nil {
			c.logger.Error("database connect hook failed", slog.String("error", err.Error()))
		}
	}
}

// Database returns the live database handle.
func (c *Connector) Database() (*mongo.Database, error) {
	db := c.db.Load()
	if db == nil {
		return nil, ErrNotConnected
	}
	return db, nil
}

// Done is closed once the first Connect call has finished, whether it
// succeeded or not.
func (c *Connector) Done() <-chan struct{} {
	return c.done
}

// Connected reports whether Connect has succeeded and Disconnect has not run.
func (c *Connector) Connected() bool {
	return c.db.Load() != nil
}

// Name is the database name taken from MONGODB_URI.
func (c *Connector) Name() string {
	return c.dbName
}

// Disconnect closes the client, if any, and makes any later or in-flight
// Connect give up. Safe to call more than once.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.db.Store(nil)
	client := c.client.Swap(nil)
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("database: disconnecting: %w", err)
	}
	c.logger.Info("database disconnected")
	return nil
}

func (c *Connector) serverMonitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			c.logger.Warn("database connection error",
				slog.String("connection", e.ConnectionID),
				slog.String("error", e.Failure.Error()),
			)
		},
		ServerHeartbeatSucceeded: func(e *event.ServerHeartbeatSucceededEvent) {
			c.opened.Do(func() {
				c.logger.Info("database connection opened", slog.String("connection", e.ConnectionID))
			})
		},
	}
}

// DatabaseName returns the last path segment of uri without its query
// string, or DefaultDatabaseName when that segment is empty.
//
//	mongodb+srv://u:p@cluster.example.net/profiles?tls=true → "profiles"
func DatabaseName(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	i := strings.LastIndex(rest, "/")
	if i < 0 || i == len(rest)-1 {
		return DefaultDatabaseName
	}
	return rest[i+1:]
}
