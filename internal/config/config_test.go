package config

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setValidEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("OIDC_ISSUER_URL", "https://id.example.com/oidc/")
	t.Setenv("OIDC_CLIENT_ID", "persona")
	t.Setenv("OIDC_REDIRECT_URL", "https://app.example.com/api/callback")
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("COOKIE_SECURE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8431", cfg.HTTPAddr)
	assert.Equal(t, "gemini-1.5-flash", cfg.Vision.Model)
	assert.Equal(t, 60*time.Second, cfg.Vision.Timeout)
	assert.Equal(t, "https://id.example.com/oidc", cfg.OIDC.IssuerURL)
	assert.Equal(t, 7*24*time.Hour, cfg.OIDC.SessionTTL)
	assert.Equal(t, 15*time.Minute, cfg.OIDC.PruneInterval)
	assert.Equal(t, "sid", cfg.OIDC.CookieName)
	assert.True(t, cfg.OIDC.CookieSecure)
	assert.Contains(t, cfg.Database.DSN, "localhost:5432")
}

func TestLoadOverrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	t.Setenv("COOKIE_SECURE", "0")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("OIDC_SCOPES", "openid,email")
	t.Setenv("STATIC_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, "google-key", cfg.Vision.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.Vision.Model)
	assert.False(t, cfg.OIDC.CookieSecure)
	assert.Equal(t, 24*time.Hour, cfg.OIDC.SessionTTL)
	assert.Equal(t, []string{"openid", "email"}, cfg.OIDC.Scopes)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"missing api key", "GEMINI_API_KEY", "", "APIKey"},
		{"missing client id", "OIDC_CLIENT_ID", "", "ClientID"},
		{"bad redirect", "OIDC_REDIRECT_URL", "not a url", "RedirectURL"},
		{"bad addr", "HTTP_ADDR", "nowhere", "HTTPAddr"},
		{"missing static dir", "STATIC_DIR", "/definitely/not/here", "StaticDir"},
		{"short session", "SESSION_TTL", "10s", "SessionTTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			t.Setenv("GOOGLE_API_KEY", "")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			var fields []string
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}
