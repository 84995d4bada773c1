package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageMongo  = "mongo"
	StorageSQLite = "sqlite"
	StorageMySQL  = "mysql"
)

// Membership cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	AppEnv   string `mapstructure:"app_env"`
	Debug    bool   `mapstructure:"debug"`
	Version  string `mapstructure:"version"`
	BotToken string `mapstructure:"telegram_bot_token" validate:"required"`

	SentryDSN string `mapstructure:"sentry_dsn"`

	StorageDriver   string `mapstructure:"storage_driver" validate:"oneof=mongo sqlite mysql"`
	MongoDBURI      string `mapstructure:"mongodb_uri" validate:"required_if=StorageDriver mongo"`
	MongoDBDatabase string `mapstructure:"mongodb_database" validate:"required_if=StorageDriver mongo"`
	SQLitePath      string `mapstructure:"sqlite_path" validate:"required_if=StorageDriver sqlite"`
	MySQLDSN        string `mapstructure:"mysql_dsn" validate:"required_if=StorageDriver mysql"`

	MembershipCache     string        `mapstructure:"membership_cache" validate:"oneof=memory redis"`
	RedisURL            string        `mapstructure:"redis_url" validate:"required_if=MembershipCache redis"`
	MembershipCacheTTL  time.Duration `mapstructure:"membership_cache_ttl" validate:"gt=0"`
	MembershipCacheSize int           `mapstructure:"membership_cache_size" validate:"gt=0"`

	MetricsAddr     string `mapstructure:"metrics_addr"`
	DefaultLanguage string `mapstructure:"default_language" validate:"oneof=en ru"`
	APIRateLimit    int    `mapstructure:"api_rate_limit" validate:"gte=1"`
}

var defaults = map[string]interface{}{
	"app_env":               "development",
	"debug":                 false,
	"version":               "dev",
	"storage_driver":        StorageSQLite,
	"sqlite_path":           "mediapool.db",
	"mongodb_database":      "mediapool",
	"membership_cache":      CacheMemory,
	"membership_cache_ttl":  "10m",
	"membership_cache_size": 10000,
	"metrics_addr":          "",
	"default_language":      "en",
	"api_rate_limit":        25,
}

// keys lists every setting so that viper binds it to its upper-case env var.
var keys = []string{
	"app_env", "debug", "version", "telegram_bot_token", "sentry_dsn",
	"storage_driver", "mongodb_uri", "mongodb_database", "sqlite_path", "mysql_dsn",
	"membership_cache", "redis_url", "membership_cache_ttl", "membership_cache_size",
	"metrics_addr", "default_language", "api_rate_limit",
}

// LoadConfig loads configuration from environment variables.
// A .env file is loaded first when present; variables already set in the
// environment take precedence over it.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", strings.ToUpper(key), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	cfg.MembershipCache = strings.ToLower(cfg.MembershipCache)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}
	return &cfg, nil
}

// IsProduction reports whether the bot runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
