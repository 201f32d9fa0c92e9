package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("IMPORT_SESSION_TTL", "30m")
	t.Setenv("PLAID_CLIENT_ID", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, int64(128<<20), cfg.SessionCacheBytes)
	assert.False(t, cfg.PlaidEnabled())
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_Values(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/tally")
	t.Setenv("SUPABASE_JWT_SECRET", "secret")
	t.Setenv("IMPORT_SESSION_TTL", "5m")
	t.Setenv("IMPORT_SESSION_CACHE_MB", "16")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, http://localhost:5173 ,")
	t.Setenv("PLAID_CLIENT_ID", "client")
	t.Setenv("PLAID_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, int64(16<<20), cfg.SessionCacheBytes)
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.True(t, cfg.PlaidEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadTTL(t *testing.T) {
	t.Setenv("IMPORT_SESSION_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("IMPORT_SESSION_TTL", "0s")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_BadSessionCacheSize(t *testing.T) {
	t.Setenv("IMPORT_SESSION_TTL", "30m")
	for _, v := range []string{"lots", "0", "-4"} {
		t.Setenv("IMPORT_SESSION_CACHE_MB", v)
		_, err := Load()
		assert.Error(t, err, v)
	}
}

func TestValidate(t *testing.T) {
	ok := Config{DatabaseURL: "postgres://x", SupabaseJWTSecret: "s", PlaidEnv: "sandbox"}
	assert.NoError(t, ok.Validate())

	missingDB := ok
	missingDB.DatabaseURL = ""
	assert.ErrorContains(t, missingDB.Validate(), "DATABASE_URL")

	missingSecret := ok
	missingSecret.SupabaseJWTSecret = ""
	assert.ErrorContains(t, missingSecret.Validate(), "SUPABASE_JWT_SECRET")

	badPlaid := ok
	badPlaid.PlaidClientID = "id"
	badPlaid.PlaidEnv = "development"
	assert.Error(t, badPlaid.Validate())
}
