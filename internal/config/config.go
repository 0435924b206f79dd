// Package config reads the service configuration from the process environment.
//
// A .env file in the working directory is loaded first when present, so local
// development does not need exported variables. Real environment variables
// always win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevEnv is the NODE_ENV value that selects development mode.
const DevEnv = "DEV"

// CACertFileName is the name of the certificate file written next to the
// install directory when CA_CERT_PATH is not set.
const CACertFileName = "ca-certificate.crt"

// MinJWTSecretLength matches the minimum auth.NewTokenService accepts.
const MinJWTSecretLength = 16

const devJWTSecret = "profile-api-dev-secret-change-me"

// Config holds everything the server needs at startup.
type Config struct {
	Env        string // NODE_ENV; "DEV" selects development mode
	Port       int    // PORT
	MongoURI   string // MONGODB_URI
	CACert     string // CA_CERT, PEM certificate blob used outside development
	CACertPath string // CA_CERT_PATH, where CA_CERT is materialized
	SeedData   bool   // SEED_DATA

	JWTSecret   string        // JWT_SECRET
	TokenTTL    time.Duration // TOKEN_TTL, e.g. "1h"
	CORSOrigins []string      // CORS_ORIGINS, comma separated

	LogLevel  string // LOG_LEVEL: debug, info, warn, error
	LogFormat string // LOG_FORMAT: text or json
	LogDir    string // LOG_DIR; empty disables file logging
}

// IsDev reports whether the service runs in development mode. The match is
// exact: NODE_ENV=dev is not development and still takes the TLS path.
func (c *Config) IsDev() bool {
	return c.Env == DevEnv
}

// Load builds a Config from the environment. It fails only on values that
// are present but unusable.
func Load() (*Config, error) {
	// Best effort: a missing .env is the normal case in production.
	_ = godotenv.Load()

	port, err := getEnvInt("PORT", 80)
	if err != nil {
		return nil, err
	}
	ttl, err := getEnvDuration("TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:         getEnv("NODE_ENV", "production"),
		Port:        port,
		MongoURI:    getEnv("MONGODB_URI", "mongodb://localhost:27017/profile-api"),
		CACert:      os.Getenv("CA_CERT"),
		CACertPath:  getEnv("CA_CERT_PATH", defaultCACertPath()),
		SeedData:    getEnvBool("SEED_DATA"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    ttl,
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   os.Getenv("LOG_FORMAT"),
		LogDir:      os.Getenv("LOG_DIR"),
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDev() {
			cfg.LogFormat = "text"
		}
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return nil, errors.New("config: JWT_SECRET is required outside development")
		}
		cfg.JWTSecret = devJWTSecret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}

// defaultCACertPath resolves the certificate location one level above the
// directory holding the binary.
func defaultCACertPath() string {
	exe, err := os.Executable()
	if err != nil {
		return CACertFileName
	}
	return filepath.Clean(filepath.Join(filepath.Dir(exe), "..", CACertFileName))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	return d, nil
}

// getEnvBool treats anything strconv.ParseBool rejects as false.
func getEnvBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
