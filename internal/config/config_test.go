package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the developer's shell
// cannot leak into a test. t.Setenv restores the old values afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NODE_ENV", "PORT", "MONGODB_URI", "CA_CERT", "CA_CERT_PATH", "SEED_DATA",
		"JWT_SECRET", "TOKEN_TTL", "CORS_ORIGINS", "LOG_LEVEL", "LOG_FORMAT", "LOG_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_DevDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("NODE_ENV", "DEV")

	c, err := Load()
	require.NoError(t, err)

	assert.True(t, c.IsDev())
	assert.Equal(t, 80, c.Port)
	assert.Equal(t, "mongodb://localhost:27017/profile-api", c.MongoURI)
	assert.Equal(t, devJWTSecret, c.JWTSecret)
	assert.Equal(t, time.Hour, c.TokenTTL)
	assert.Equal(t, []string{"*"}, c.CORSOrigins)
	assert.Equal(t, "text", c.LogFormat)
	assert.False(t, c.SeedData)
	assert.Equal(t, CACertFileName, filepath.Base(c.CACertPath))
}

func TestIsDev_ExactMatch(t *testing.T) {
	for env, want := range map[string]bool{
		"DEV":        true,
		"dev":        false,
		"Dev":        false,
		" DEV":       false,
		"production": false,
		"":           false,
	} {
		assert.Equal(t, want, (&Config{Env: env}).IsDev(), "NODE_ENV=%q", env)
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_ProductionValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8443")
	t.Setenv("MONGODB_URI", "mongodb+srv://db.example.com/users")
	t.Setenv("CA_CERT", "-----BEGIN CERTIFICATE-----")
	t.Setenv("CA_CERT_PATH", "/tmp/ca.crt")
	t.Setenv("JWT_SECRET", "a-very-long-production-secret")
	t.Setenv("TOKEN_TTL", "15m")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("SEED_DATA", "true")

	c, err := Load()
	require.NoError(t, err)

	assert.False(t, c.IsDev())
	assert.Equal(t, 8443, c.Port)
	assert.Equal(t, "mongodb+srv://db.example.com/users", c.MongoURI)
	assert.Equal(t, "/tmp/ca.crt", c.CACertPath)
	assert.Equal(t, 15*time.Minute, c.TokenTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, c.CORSOrigins)
	assert.Equal(t, "json", c.LogFormat)
	assert.True(t, c.SeedData)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", "PORT", "eighty"},
		{"port out of range", "PORT", "70000"},
		{"bad ttl", "TOKEN_TTL", "soon"},
		{"negative ttl", "TOKEN_TTL", "-1m"},
		{"short secret", "JWT_SECRET", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("NODE_ENV", "DEV")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"TRUE", true},
		{" t ", true},
		{"false", false},
		{"0", false},
		{"", false},
		{"yes please", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("SEED_DATA", tt.value)
			assert.Equal(t, tt.want, getEnvBool("SEED_DATA"))
		})
	}
}
