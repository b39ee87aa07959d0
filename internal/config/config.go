package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the API and the CLI.
type Config struct {
	AppName string `envconfig:"APP_NAME" default:"POS API"`
	AppEnv  string `envconfig:"APP_ENV" default:"development"`
	Port    string `envconfig:"PORT" default:"3000"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBUser      string `envconfig:"DB_USER" default:"postgres"`
	DBPassword  string `envconfig:"DB_PASSWORD"`
	DBName      string `envconfig:"DB_NAME" default:"pos"`
	DBPort      string `envconfig:"DB_PORT" default:"5432"`
	DBTimeZone  string `envconfig:"DB_TIMEZONE" default:"Asia/Jakarta"`
	DBLogSQL    bool   `envconfig:"DB_LOG_SQL" default:"false"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	JWTSecret string        `envconfig:"JWT_SECRET" default:"your-super-secret-key-change-in-production"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	// CacheDriver is one of memory, redis or none.
	CacheDriver      string        `envconfig:"CACHE_DRIVER" default:"memory"`
	CacheProductTTL  time.Duration `envconfig:"CACHE_PRODUCT_TTL" default:"600s"`
	CacheListTTL     time.Duration `envconfig:"CACHE_LIST_TTL" default:"300s"`
	CacheCleanup     time.Duration `envconfig:"CACHE_CLEANUP_INTERVAL" default:"10m"`
	RedisAddr        string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword    string        `envconfig:"REDIS_PASSWORD"`
	RedisDB          int           `envconfig:"REDIS_DB" default:"0"`
	SeedAdminEmail   string        `envconfig:"SEED_ADMIN_EMAIL" default:"admin@example.com"`
	SeedAdminPass    string        `envconfig:"SEED_ADMIN_PASSWORD" default:"admin123"`
	SeedTenantName   string        `envconfig:"SEED_TENANT_NAME" default:"Default Store"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	SessionIdleLimit time.Duration `envconfig:"SESSION_IDLE_LIMIT" default:"5m"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	switch cfg.CacheDriver {
	case "memory", "redis", "none":
	default:
		return nil, fmt.Errorf("unsupported CACHE_DRIVER %q", cfg.CacheDriver)
	}
	if cfg.IsProduction() && cfg.JWTSecret == "your-super-secret-key-change-in-production" {
		return nil, errors.New("JWT_SECRET must be set in production")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// DSN returns DATABASE_URL or a key/value DSN assembled from DB_* variables.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBTimeZone,
	)
}
