package oidc

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/oauth2"

	repo "github.com/ovaphlow/pitchfork/service-persona-ai/internal/oidc/repo"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/principal"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/user/entity"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
	ErrRefreshFailed  = errors.New("token refresh failed")
	ErrMissingIDToken = errors.New("token response has no id_token")
	ErrInvalidClaims  = errors.New("id_token claims invalid")
)

// SessionStore persists sessions keyed by hashed sid.
type SessionStore interface {
	Save(ctx context.Context, sid string, sess json.RawMessage, expire time.Time) error
	Update(ctx context.Context, sid string, sess json.RawMessage) error
	Get(ctx context.Context, sid string) (json.RawMessage, time.Time, error)
	Delete(ctx context.Context, sid string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserUpserter records the identity of a successful login.
type UserUpserter interface {
	UpsertFromClaims(ctx context.Context, u entity.Upsert) (*entity.User, error)
}

// Service runs the authorization-code login against an external OIDC
// provider and manages the resulting server-side sessions.
type Service struct {
	cfg        Config
	provider   *Provider
	oauth      *oauth2.Config
	verifier   *gooidc.IDTokenVerifier
	sessions   SessionStore
	users      UserUpserter
	clock      clockwork.Clock
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// Options carries the optional collaborators of NewService.
type Options struct {
	Sessions   SessionStore
	Clock      clockwork.Clock
	HTTPClient *http.Client
}

func NewService(db *sqlx.DB, cfg Config, provider *Provider, users UserUpserter, logger *zap.SugaredLogger, opts Options) *Service {
	if opts.Sessions == nil {
		opts.Sessions = repo.NewSessionRepo(db)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{
		cfg:      cfg,
		provider: provider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     provider.Endpoint(),
		},
		verifier:   provider.verifier(cfg.ClientID, opts.Clock.Now),
		sessions:   opts.Sessions,
		users:      users,
		clock:      opts.Clock,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

func (s *Service) withClient(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return gooidc.ClientContext(ctx, s.httpClient)
}

// AuthCodeURL returns the provider login URL for state.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "login consent"))
}

// Login exchanges an authorization code, upserts the user and opens a
// session. It returns the raw cookie value and the session expiry.
func (s *Service) Login(ctx context.Context, code string) (string, time.Time, error) {
	tok, err := s.oauth.Exchange(s.withClient(ctx), code)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("code exchange: %w", err)
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return "", time.Time{}, ErrMissingIDToken
	}
	claims, err := s.verifyIDToken(ctx, rawID)
	if err != nil {
		return "", time.Time{}, err
	}

	if _, err := s.users.UpsertFromClaims(ctx, entity.Upsert{
		ID:              claims.Sub,
		Email:           optional(claims.Email),
		FirstName:       optional(claims.FirstName),
		LastName:        optional(claims.LastName),
		ProfileImageURL: optional(claims.ProfileImageURL),
	}); err != nil {
		return "", time.Time{}, fmt.Errorf("upsert user: %w", err)
	}

	raw, err := newSessionValue()
	if err != nil {
		return "", time.Time{}, err
	}
	expire := s.clock.Now().Add(s.cfg.SessionTTL)
	sess := Session{Claims: *claims, ExpiresAt: expire}
	sess.setToken(tok)
	b, err := json.Marshal(sess)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.sessions.Save(ctx, hashSID(raw), b, expire); err != nil {
		return "", time.Time{}, fmt.Errorf("save session: %w", err)
	}
	s.logger.Infow("session opened", "user_id", claims.Sub, "expire", expire)
	return raw, expire, nil
}

// Authenticate resolves a cookie value to its principal. An expired access
// token is refreshed through the provider when a refresh token exists.
func (s *Service) Authenticate(ctx context.Context, raw string) (principal.Principal, error) {
	if raw == "" {
		return principal.Principal{}, ErrNoSession
	}
	sid := hashSID(raw)
	payload, expire, err := s.sessions.Get(ctx, sid)
	if errors.Is(err, sql.ErrNoRows) {
		return principal.Principal{}, ErrNoSession
	}
	if err != nil {
		return principal.Principal{}, fmt.Errorf("load session: %w", err)
	}
	now := s.clock.Now()
	if !expire.After(now) {
		_ = s.sessions.Delete(ctx, sid)
		return principal.Principal{}, ErrSessionExpired
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil || sess.Claims.Sub == "" {
		_ = s.sessions.Delete(ctx, sid)
		return principal.Principal{}, ErrNoSession
	}

	if !sess.TokenExpiry.IsZero() && !sess.TokenExpiry.After(now) {
		if err := s.refresh(ctx, sid, &sess); err != nil {
			return principal.Principal{}, err
		}
	}
	return principal.Principal{UserID: sess.Claims.Sub, Email: sess.Claims.Email, SessionID: sid}, nil
}

func (s *Service) refresh(ctx context.Context, sid string, sess *Session) error {
	if sess.RefreshToken == "" {
		return ErrSessionExpired
	}
	// force a refresh regardless of oauth2's own clock
	stale := sess.token()
	stale.Expiry = time.Unix(1, 0)
	tok, err := s.oauth.TokenSource(s.withClient(ctx), stale).Token()
	if err != nil {
		s.logger.Warnw("token refresh failed", "user_id", sess.Claims.Sub, "err", err)
		return ErrRefreshFailed
	}
	sess.setToken(tok)
	if raw, _ := tok.Extra("id_token").(string); raw != "" {
		if c, err := s.verifyIDToken(ctx, raw); err == nil && c.Sub == sess.Claims.Sub {
			sess.Claims = *c
		}
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.sessions.Update(ctx, sid, b); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	s.logger.Debugw("access token refreshed", "user_id", sess.Claims.Sub)
	return nil
}

// Logout deletes the session behind raw and returns where to send the browser.
func (s *Service) Logout(ctx context.Context, raw string) (string, error) {
	if raw != "" {
		if err := s.sessions.Delete(ctx, hashSID(raw)); err != nil {
			return "", err
		}
	}
	return s.endSessionURL(), nil
}

func (s *Service) endSessionURL() string {
	back := s.cfg.PostLogoutURL
	if back == "" {
		back = "/"
	}
	if s.provider.EndSessionEndpoint == "" {
		return back
	}
	u, err := url.Parse(s.provider.EndSessionEndpoint)
	if err != nil {
		return back
	}
	q := u.Query()
	q.Set("client_id", s.cfg.ClientID)
	if s.cfg.PostLogoutURL != "" {
		q.Set("post_logout_redirect_uri", s.cfg.PostLogoutURL)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Prune removes expired sessions.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.clock.Now())
}

// verifyIDToken checks the signature, issuer, audience and expiry of an
// id_token and maps its claims.
func (s *Service) verifyIDToken(ctx context.Context, raw string) (*Claims, error) {
	tok, err := s.verifier.Verify(s.withClient(ctx), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
	mc := jwt.MapClaims{}
	if err := tok.Claims(&mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
	c := &Claims{
		Sub:             tok.Subject,
		Email:           str(mc, "email"),
		FirstName:       str(mc, "first_name", "given_name"),
		LastName:        str(mc, "last_name", "family_name"),
		ProfileImageURL: str(mc, "profile_image_url", "picture"),
		Exp:             tok.Expiry.Unix(),
	}
	if c.Sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidClaims)
	}
	return c, nil
}

func str(mc jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := mc[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newSessionValue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashSID is the at-rest key for a cookie value.
func hashSID(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
