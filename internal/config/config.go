// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"anonchat/backend/internal/models"

	env "github.com/Netflix/go-env"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config holds every setting the backend reads at startup.
type Config struct {
	TelegramToken        string `env:"TELEGRAM_BOT_TOKEN"`
	AdminIDs             string `env:"ADMIN_ID"`
	BotMode              string `env:"BOT_MODE,default=polling" validate:"oneof=polling webhook"`
	WebhookURL           string `env:"WEBHOOK_URL" validate:"required_if=BotMode webhook"`
	HTTPAddr             string `env:"HTTP_ADDR,default=:8080" validate:"required"`
	JWTSecret            string `env:"JWT_SECRET"`
	AdminAPIToken        string `env:"ADMIN_API_TOKEN"`
	LogLevel             string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn warning error"`
	LogFile              string `env:"LOG_FILE,default=bot.log"`
	LogJSON              bool   `env:"LOG_JSON,default=false"`
	Workers              int    `env:"WORKERS,default=16" validate:"min=1,max=1024"`
	WorkerBuffer         int    `env:"WORKER_BUFFER,default=64" validate:"min=1"`
	BroadcastConcurrency int    `env:"BROADCAST_CONCURRENCY,default=8" validate:"min=1"`
	DatabaseDSN          string `env:"DATABASE_DSN"`
	RedisAddr            string `env:"REDIS_ADDR"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	DefaultLanguage      string `env:"LOCALES_DEFAULT,default=en" validate:"required"`
}

// Load reads .env (if present) and the process environment, then validates the result.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	return FromEnviron()
}

// FromEnviron decodes and validates the current environment without touching .env files.
func FromEnviron() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.BotMode = strings.ToLower(strings.TrimSpace(cfg.BotMode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the admin list format.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if _, err := ParseAdminIDs(c.AdminIDs); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Admins returns the configured admin identities.
func (c *Config) Admins() []models.UserID {
	ids, _ := ParseAdminIDs(c.AdminIDs)
	return ids
}

// TelegramEnabled reports whether a bot token is configured.
func (c *Config) TelegramEnabled() bool { return c.TelegramToken != "" }

// ParseAdminIDs splits a comma separated list, skipping blanks.
// Entries must not contain whitespace inside.
func ParseAdminIDs(raw string) ([]models.UserID, error) {
	var ids []models.UserID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.ContainsAny(part, " \t") {
			return nil, fmt.Errorf("invalid admin id %q", part)
		}
		ids = append(ids, models.UserID(part))
	}
	return ids, nil
}

// Getenv is a small helper for the admin CLI.
func Getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
