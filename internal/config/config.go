// Package config loads server settings from the environment, an optional
// .env file and an optional config/config.yaml, in that order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/ammar1510/clientdesk/internal/database"
	"github.com/ammar1510/clientdesk/internal/logger"
)

const devJWTSecret = "clientdesk-development-secret"

var log = logger.New("config")

type Config struct {
	Env       string
	Port      string
	JWTSecret string

	DBType        database.DatabaseType
	DatabaseURL   string
	DB            SQL
	MongoURI      string
	MongoDatabase string

	AllowedOrigins []string

	RedisAddr       string
	RedisPassword   string
	SocketRateLimit int
}

// SQL holds the individual Postgres settings used when DATABASE_URL is unset
type SQL struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_TYPE", string(database.Mongo))
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "clientdesk")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("SOCKET_RATE_LIMIT", 60)
	return v
}

// Load reads the configuration and validates it
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug(".env file not found, using environment variables")
	}

	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	c := &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetString("PORT"),
		JWTSecret: v.GetString("JWT_SECRET"),

		DBType:      database.DatabaseType(strings.ToLower(v.GetString("DB_TYPE"))),
		DatabaseURL: v.GetString("DATABASE_URL"),
		DB: SQL{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
		},
		MongoURI:      v.GetString("MONGO_URI"),
		MongoDatabase: v.GetString("MONGO_DATABASE"),

		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),

		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		SocketRateLimit: v.GetInt("SOCKET_RATE_LIMIT"),
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
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

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET environment variable is required")
		}
		log.Warn("JWT_SECRET not set, using the development secret")
		c.JWTSecret = devJWTSecret
	}

	switch c.DBType {
	case database.PostgreSQL:
		if c.DatabaseURL == "" && (c.DB.Host == "" || c.DB.Name == "" || c.DB.User == "") {
			return errors.New("database connection details missing. Set DATABASE_URL or individual DB_* variables")
		}
	case database.Mongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return errors.New("MONGO_URI and MONGO_DATABASE are required for DB_TYPE=mongo")
		}
	case database.Memory:
		if c.IsProduction() {
			log.Warn("DB_TYPE=memory in production; data is lost on restart")
		}
	default:
		return errors.Errorf("unsupported DB_TYPE %q", c.DBType)
	}

	if c.SocketRateLimit < 0 {
		return errors.Errorf("SOCKET_RATE_LIMIT must not be negative, got %d", c.SocketRateLimit)
	}
	return nil
}

// DatabaseOptions returns the connection settings for the configured store
func (c *Config) DatabaseOptions() database.Options {
	switch c.DBType {
	case database.PostgreSQL:
		url := c.DatabaseURL
		if url == "" {
			url = fmt.Sprintf(
				"postgres://%s:%s@%s:%s/%s?sslmode=disable",
				c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name,
			)
		}
		return database.Options{URL: url}
	case database.Mongo:
		return database.Options{URL: c.MongoURI, DatabaseName: c.MongoDatabase}
	default:
		return database.Options{}
	}
}
