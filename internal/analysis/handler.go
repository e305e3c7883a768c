package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/principal"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/upload"
)

// Handler serves the submit, list and get endpoints of one analysis
// feature. Resp is the submit response body, Rec the stored record.
type Handler[Resp any, Rec any] struct {
	Noun   string
	Plural string
	Submit func(ctx context.Context, userID string, img *upload.Image) (*Resp, error)
	List   func(ctx context.Context, userID string, limit int) ([]Rec, error)
	Get    func(ctx context.Context, userID, id string) (*Rec, error)
	Logger *zap.SugaredLogger
}

// Create accepts one multipart image field named "image".
func (h *Handler[Resp, Rec]) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.From(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxImageBytes+1<<20)
	img, err := upload.ReadImage(r, "image", upload.MaxImageBytes)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			err = upload.ErrTooLarge
		}
		h.Logger.Debugw("rejected upload", "feature", h.Noun, "user_id", p.UserID, "err", err)
		h.writeJSON(w, upload.Status(err), map[string]string{"error": err.Error()})
		return
	}
	res, err := h.Submit(r.Context(), p.UserID, img)
	if err != nil {
		h.Logger.Errorw("analysis failed", "feature", h.Noun, "user_id", p.UserID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to analyze image"})
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Index lists the caller's records, newest first, honouring ?limit=.
func (h *Handler[Resp, Rec]) Index(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.From(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	items, err := h.List(r.Context(), p.UserID, ParseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		h.Logger.Errorw("list failed", "feature", h.Noun, "user_id", p.UserID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch " + h.Plural})
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// Show returns one record by path value id: 404 when absent, 403 when it
// belongs to someone else.
func (h *Handler[Resp, Rec]) Show(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.From(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	rec, err := h.Get(r.Context(), p.UserID, r.PathValue("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": h.Noun + " not found"})
	case errors.Is(err, ErrForbidden):
		h.Logger.Warnw("cross-user read refused", "feature", h.Noun, "user_id", p.UserID, "id", r.PathValue("id"))
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
	case err != nil:
		h.Logger.Errorw("get failed", "feature", h.Noun, "user_id", p.UserID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch " + h.Noun})
	default:
		h.writeJSON(w, http.StatusOK, rec)
	}
}

func (h *Handler[Resp, Rec]) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
