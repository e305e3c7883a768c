package oidc

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	IssuerURL     string        `validate:"required,url"`
	ClientID      string        `validate:"required"`
	ClientSecret  string
	RedirectURL   string        `validate:"required,url"`
	PostLogoutURL string        `validate:"omitempty,url"`
	Scopes        []string      `validate:"min=1"`
	CookieName    string        `validate:"required"`
	CookieSecure  bool
	SessionTTL    time.Duration `validate:"min=1m"`
	PruneInterval time.Duration `validate:"min=1m"`
}

// ConfigFromEnv reads the OIDC_* variables plus SESSION_TTL and COOKIE_SECURE.
func ConfigFromEnv() Config {
	scopes := []string{"openid", "email", "profile", "offline_access"}
	if v := os.Getenv("OIDC_SCOPES"); v != "" {
		scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}
	ttl := 7 * 24 * time.Hour
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			ttl = d
		}
	}
	cookie := os.Getenv("SESSION_COOKIE")
	if cookie == "" {
		cookie = "sid"
	}
	return Config{
		IssuerURL:     strings.TrimSuffix(os.Getenv("OIDC_ISSUER_URL"), "/"),
		ClientID:      os.Getenv("OIDC_CLIENT_ID"),
		ClientSecret:  os.Getenv("OIDC_CLIENT_SECRET"),
		RedirectURL:   os.Getenv("OIDC_REDIRECT_URL"),
		PostLogoutURL: os.Getenv("OIDC_POST_LOGOUT_URL"),
		Scopes:        scopes,
		CookieName:    cookie,
		CookieSecure:  os.Getenv("COOKIE_SECURE") != "0",
		SessionTTL:    ttl,
		PruneInterval: 15 * time.Minute,
	}
}
