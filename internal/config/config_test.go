package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar1510/clientdesk/internal/database"
)

// clearEnv blanks every variable Load reads so the host environment does not leak in
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"ENV", "PORT", "JWT_SECRET", "DB_TYPE", "DATABASE_URL", "DB_HOST", "DB_PORT",
		"DB_NAME", "DB_USER", "DB_PASSWORD", "MONGO_URI", "MONGO_DATABASE",
		"ALLOWED_ORIGINS", "REDIS_ADDR", "REDIS_PASSWORD", "SOCKET_RATE_LIMIT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "development")
	t.Setenv("DB_TYPE", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("MONGO_DATABASE", "clientdesk")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, database.Mongo, c.DBType)
	assert.Equal(t, devJWTSecret, c.JWTSecret, "development falls back to a fixed secret")
	assert.False(t, c.IsProduction())
	assert.Equal(t, database.Options{URL: "mongodb://localhost:27017", DatabaseName: "clientdesk"}, c.DatabaseOptions())
}

func TestLoadProductionRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("DB_TYPE", "memory")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	c, err := Load()
	require.NoError(t, err)
	assert.True(t, c.IsProduction())
	assert.Equal(t, "s3cret", c.JWTSecret)
}

func TestLoadPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_TYPE", "POSTGRES")

	_, err := Load()
	require.Error(t, err, "no connection details")

	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_NAME", "crm")
	t.Setenv("DB_USER", "crm")
	t.Setenv("DB_PASSWORD", "pw")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://crm:pw@db:5433/crm?sslmode=disable", c.DatabaseOptions().URL)

	t.Setenv("DATABASE_URL", "postgres://override/crm")
	c, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://override/crm", c.DatabaseOptions().URL)
}

func TestLoadRejectsUnknownDBType(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_TYPE", "mysql")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadListsAndLimits(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_TYPE", "memory")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com,")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SOCKET_RATE_LIMIT", "120")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, c.AllowedOrigins)
	assert.Equal(t, "localhost:6379", c.RedisAddr)
	assert.Equal(t, 120, c.SocketRateLimit)
	assert.Equal(t, database.Options{}, c.DatabaseOptions())

	t.Setenv("SOCKET_RATE_LIMIT", "-1")
	_, err = Load()
	assert.Error(t, err)
}
