package router

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/analysis"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/personality"
	personalityentity "github.com/ovaphlow/pitchfork/service-persona-ai/internal/personality/entity"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/prediction"
	predictionentity "github.com/ovaphlow/pitchfork/service-persona-ai/internal/prediction/entity"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/principal"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/upload"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-persona-ai/internal/user/entity"
)

type stubAuth struct{}

func (stubAuth) Login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "https://id.example.com/auth", http.StatusFound)
}
func (stubAuth) Callback(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}
func (stubAuth) Logout(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}

// headerGuard trusts X-Test-User.
type headerGuard struct{}

func (headerGuard) API(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Test-User")
		if id == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(principal.With(r.Context(), principal.Principal{UserID: id})))
	})
}

func (g headerGuard) Page(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test-User") == "" {
			http.Redirect(w, r, "/api/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userStore struct{}

func (userStore) Upsert(context.Context, userentity.Upsert) (*userentity.User, error) {
	return nil, nil
}

func (userStore) GetByID(_ context.Context, id string) (*userentity.User, error) {
	if id != "u1" {
		return nil, sql.ErrNoRows
	}
	email := "u1@example.com"
	return &userentity.User{ID: id, Email: &email}, nil
}

func newTestRouter(t *testing.T, static string) (http.Handler, *int) {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	var gotLimit int
	preds := &prediction.Handler{
		Noun:   "prediction",
		Plural: "predictions",
		Submit: func(context.Context, string, *upload.Image) (*predictionentity.Response, error) {
			return &predictionentity.Response{}, nil
		},
		List: func(_ context.Context, userID string, limit int) ([]predictionentity.Prediction, error) {
			gotLimit = limit
			return []predictionentity.Prediction{{ID: "p1", UserID: userID}}, nil
		},
		Get: func(_ context.Context, userID, id string) (*predictionentity.Prediction, error) {
			return &predictionentity.Prediction{ID: id, UserID: userID}, nil
		},
		Logger: logger,
	}
	analyses := &personality.Handler{
		Noun:   "analysis",
		Plural: "analyses",
		Submit: func(context.Context, string, *upload.Image) (*personalityentity.Response, error) {
			return &personalityentity.Response{}, nil
		},
		List: func(context.Context, string, int) ([]personalityentity.Analysis, error) {
			return []personalityentity.Analysis{}, nil
		},
		Get: func(_ context.Context, userID, id string) (*personalityentity.Analysis, error) {
			if id == "theirs" {
				return nil, analysis.ErrForbidden
			}
			return &personalityentity.Analysis{ID: id, UserID: userID}, nil
		},
		Logger: logger,
	}
	h := RegisterRoutes(logger, Deps{
		Auth:        stubAuth{},
		Guard:       headerGuard{},
		Users:       user.NewHandler(user.NewUserService(nil, userStore{}), logger),
		Predictions: preds,
		Analyses:    analyses,
		StaticDir:   static,
	})
	return h, &gotLimit
}

func do(h http.Handler, method, path, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndHeaders(t *testing.T) {
	h, _ := newTestRouter(t, "")
	rec := do(h, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Permissions-Policy"), "camera=(self)")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	h, _ := newTestRouter(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestAPIRoutesRequireSession(t *testing.T) {
	h, _ := newTestRouter(t, "")
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/user"},
		{http.MethodPost, "/api/predict-age"},
		{http.MethodGet, "/api/predictions"},
		{http.MethodGet, "/api/predictions/p1"},
		{http.MethodPost, "/api/analyze-personality"},
		{http.MethodGet, "/api/analyses"},
		{http.MethodGet, "/api/analyses/a1"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, do(h, tc.method, tc.path, "").Code)
		})
	}
}

func TestAuthenticatedRoutes(t *testing.T) {
	h, gotLimit := newTestRouter(t, "")

	rec := do(h, http.MethodGet, "/api/auth/user", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"u1@example.com"`)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/auth/user", "ghost").Code)

	rec = do(h, http.MethodGet, "/api/predictions?limit=500", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, analysis.MaxLimit, *gotLimit)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "p1", list[0]["id"])

	rec = do(h, http.MethodGet, "/api/analyses/a7", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"a7"`)

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/analyses/theirs", "u1").Code)
	assert.Equal(t, "[]\n", do(h, http.MethodGet, "/api/analyses", "u1").Body.String())
}

func TestMethodMismatch(t *testing.T) {
	h, _ := newTestRouter(t, "")
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodPost, "/api/predictions", "u1").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodGet, "/api/predict-age", "u1").Code)
}

func TestLoginRoutes(t *testing.T) {
	h, _ := newTestRouter(t, "")
	rec := do(h, http.MethodGet, "/api/login", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://id.example.com/auth", rec.Header().Get("Location"))
}

func TestStaticPages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>camera</h1>"), 0o644))
	h, _ := newTestRouter(t, dir)

	rec := do(h, http.MethodGet, "/app/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/api/login", rec.Header().Get("Location"))

	rec = do(h, http.MethodGet, "/app/", "u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "camera")

	rec = do(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/app/", rec.Header().Get("Location"))
}

func TestStaticDisabled(t *testing.T) {
	h, _ := newTestRouter(t, "")
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/app/", "u1").Code)

	rec := do(h, http.MethodGet, "/", "u1")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/api/auth/user", rec.Header().Get("Location"))
}
