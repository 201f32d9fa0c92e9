package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DatabaseURL       string
	SupabaseJWTSecret string
	PlaidClientID     string
	PlaidSecret       string
	PlaidEnv          string
	LogLevel          string
	SessionTTL        time.Duration
	SessionCacheBytes int64
	AllowedOrigins    []string
}

// Load reads the environment, after a .env file if one is present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SupabaseJWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),
		PlaidClientID:     getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:       getEnv("PLAID_SECRET", ""),
		PlaidEnv:          getEnv("PLAID_ENV", "sandbox"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "")),
	}

	ttl, err := time.ParseDuration(getEnv("IMPORT_SESSION_TTL", "30m"))
	if err != nil {
		return cfg, fmt.Errorf("IMPORT_SESSION_TTL: %w", err)
	}
	if ttl <= 0 {
		return cfg, fmt.Errorf("IMPORT_SESSION_TTL must be positive, got %s", ttl)
	}
	cfg.SessionTTL = ttl

	mb, err := strconv.Atoi(getEnv("IMPORT_SESSION_CACHE_MB", "128"))
	if err != nil {
		return cfg, fmt.Errorf("IMPORT_SESSION_CACHE_MB: %w", err)
	}
	if mb <= 0 {
		return cfg, fmt.Errorf("IMPORT_SESSION_CACHE_MB must be positive, got %d", mb)
	}
	cfg.SessionCacheBytes = int64(mb) << 20

	return cfg, nil
}

// Validate checks what the server needs beyond the offline commands.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.PlaidEnabled() && c.PlaidEnv != "sandbox" && c.PlaidEnv != "production" {
		return fmt.Errorf("invalid PLAID_ENV %q", c.PlaidEnv)
	}
	return nil
}

func (c Config) PlaidEnabled() bool {
	return c.PlaidClientID != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
