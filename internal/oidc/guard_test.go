package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/principal"
)

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := principal.From(r.Context())
		_, _ = w.Write([]byte(p.UserID))
	})
}

func TestGuardAPI(t *testing.T) {
	f := newFixture(t)
	g := NewGuard(f.svc, zaptest.NewLogger(t).Sugar())
	raw, _, err := f.svc.Login(context.Background(), "good-code")
	require.NoError(t, err)

	t.Run("no cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		g.API(echoPrincipal()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predictions", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	})

	t.Run("valid cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/predictions", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: raw})
		rec := httptest.NewRecorder()
		g.API(echoPrincipal()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-42", rec.Body.String())
	})

	t.Run("expired session", func(t *testing.T) {
		f.clock.Advance(8 * 24 * time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/api/predictions", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: raw})
		rec := httptest.NewRecorder()
		g.API(echoPrincipal()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

type brokenSessions struct{ *memSessions }

func (brokenSessions) Get(context.Context, string) (json.RawMessage, time.Time, error) {
	return nil, time.Time{}, errors.New("connection refused")
}

func TestGuardStoreFailureIs500(t *testing.T) {
	f := newFixture(t)
	f.svc.sessions = brokenSessions{newMemSessions()}
	g := NewGuard(f.svc, zaptest.NewLogger(t).Sugar())

	req := httptest.NewRequest(http.MethodGet, "/api/analyses", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "x"})
	rec := httptest.NewRecorder()
	g.API(echoPrincipal()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGuardPageRedirects(t *testing.T) {
	f := newFixture(t)
	g := NewGuard(f.svc, zaptest.NewLogger(t).Sugar())

	rec := httptest.NewRecorder()
	g.Page(echoPrincipal()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/api/login", rec.Header().Get("Location"))
}

func TestLoginCallbackLogoutFlow(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zaptest.NewLogger(t).Sugar())

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/api/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(loc.Path, "/auth"))
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "persona", loc.Query().Get("client_id"))

	var stateC *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookie {
			stateC = c
		}
	}
	require.NotNil(t, stateC)
	assert.Equal(t, state, stateC.Value)

	t.Run("provider error does not restart login", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/callback?error=access_denied&state="+state, nil)
		req.AddCookie(stateC)
		rec := httptest.NewRecorder()
		h.Callback(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
		assert.JSONEq(t, `{"error":"login denied: access_denied"}`, rec.Body.String())
		assert.Empty(t, f.sessions.rows)
	})

	t.Run("state mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/callback?code=good-code&state=other", nil)
		req.AddCookie(stateC)
		rec := httptest.NewRecorder()
		h.Callback(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/callback?code=good-code&state="+state, nil)
	req.AddCookie(stateC)
	rec = httptest.NewRecorder()
	h.Callback(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	var sid *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			sid = c
		}
	}
	require.NotNil(t, sid)
	assert.True(t, sid.HttpOnly)
	assert.Len(t, f.sessions.rows, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/logout", nil)
	req.AddCookie(sid)
	rec = httptest.NewRecorder()
	h.Logout(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/session/end")
	assert.Empty(t, f.sessions.rows)
}
