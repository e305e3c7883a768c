package oidc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stateCookie = "oidc_state"

// Handler serves the login, callback and logout endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Login redirects to the provider with a fresh state value.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/callback",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.svc.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.svc.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the authorization-code flow and sets the session cookie.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.logger.Warnw("provider returned error", "error", e, "description", q.Get("error_description"))
		http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/api/callback", MaxAge: -1})
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login denied: " + e})
		return
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid state"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/api/callback", MaxAge: -1})

	code := q.Get("code")
	if code == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing code"})
		return
	}
	raw, expire, err := h.svc.Login(r.Context(), code)
	if err != nil {
		h.logger.Warnw("login failed", "err", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "login failed"})
		return
	}
	http.SetCookie(w, h.sessionCookie(raw, expire))
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout ends the session and forwards to the provider's end-session page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var raw string
	if c, err := r.Cookie(h.svc.cfg.CookieName); err == nil {
		raw = c.Value
	}
	next, err := h.svc.Logout(r.Context(), raw)
	if err != nil {
		h.logger.Errorw("logout failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "logout failed"})
		return
	}
	c := h.sessionCookie("", time.Time{})
	c.MaxAge = -1
	http.SetCookie(w, c)
	http.Redirect(w, r, next, http.StatusFound)
}

func (h *Handler) sessionCookie(value string, expire time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.svc.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expire,
		HttpOnly: true,
		Secure:   h.svc.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
