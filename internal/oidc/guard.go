package oidc

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/principal"
)

// Guard protects routes with the session cookie.
type Guard struct {
	svc       *Service
	logger    *zap.SugaredLogger
	loginPath string
}

func NewGuard(svc *Service, logger *zap.SugaredLogger) *Guard {
	return &Guard{svc: svc, logger: logger, loginPath: "/api/login"}
}

func (g *Guard) authenticate(r *http.Request) (principal.Principal, error) {
	c, err := r.Cookie(g.svc.cfg.CookieName)
	if err != nil {
		return principal.Principal{}, ErrNoSession
	}
	return g.svc.Authenticate(r.Context(), c.Value)
}

func unauthenticated(err error) bool {
	return errors.Is(err, ErrNoSession) || errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrRefreshFailed)
}

// API answers 401 for requests without a valid session.
func (g *Guard) API(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := g.authenticate(r)
		if err != nil {
			status, msg := http.StatusUnauthorized, "unauthorized"
			if !unauthenticated(err) {
				g.logger.Errorw("session lookup failed", "path", r.URL.Path, "err", err)
				status, msg = http.StatusInternalServerError, "session lookup failed"
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
			return
		}
		next.ServeHTTP(w, r.WithContext(principal.With(r.Context(), p)))
	})
}

// Page redirects browsers without a valid session to the login endpoint.
func (g *Guard) Page(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := g.authenticate(r)
		if err != nil {
			if !unauthenticated(err) {
				g.logger.Errorw("session lookup failed", "path", r.URL.Path, "err", err)
				http.Error(w, "session lookup failed", http.StatusInternalServerError)
				return
			}
			http.Redirect(w, r, g.loginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(principal.With(r.Context(), p)))
	})
}
