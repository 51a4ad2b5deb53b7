// Package config reads the server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	StorageMongo    = "mongo"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Port        string `validate:"required,numeric"`
	FrontendURL string `validate:"required"`

	Storage     string `validate:"oneof=mongo sqlite postgres memory"`
	MongoURI    string `validate:"required_if=Storage mongo"`
	DBName      string `validate:"required_if=Storage mongo"`
	DatabaseURL string `validate:"required_unless=Storage mongo Storage memory"`

	RedisURL string

	FeatureSummaries bool
	OpenAIAPIKey     string
	OpenAIBaseURL    string `validate:"omitempty,url"`
	OpenAIModel      string `validate:"required"`
	SummaryMaxItems  int    `validate:"min=1,max=500"`

	RateLimitMax int `validate:"min=1"`
	LogLevel     slog.Level
}

// Load reads the environment into a Config and validates it. Call
// godotenv.Load beforehand to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		FrontendURL:   getEnv("FRONTEND_URL", "*"),
		Storage:       strings.ToLower(getEnv("STORAGE", StorageMongo)),
		MongoURI:      os.Getenv("MONGODB_URI"),
		DBName:        getEnv("DB_NAME", "feedback_board"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
	}

	var err error
	if cfg.FeatureSummaries, err = getBool("FEATURE_SUMMARIES", false); err != nil {
		return nil, err
	}
	if cfg.SummaryMaxItems, err = getInt("SUMMARY_MAX_ITEMS", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = getInt("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DSN returns the connection string of the selected storage.
func (c *Config) DSN() string {
	if c.Storage == StorageMongo {
		return c.MongoURI
	}
	return c.DatabaseURL
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
