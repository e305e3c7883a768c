// Package analysis holds the pieces shared by every image analysis feature:
// the model round trip, history paging and record ownership.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/upload"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/vision"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/database"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("record belongs to another user")
)

// ParseLimit reads a ?limit= value. Missing, non-numeric or non-positive
// values give DefaultLimit; large values are capped at MaxLimit.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Owned returns ErrForbidden unless owner is the requesting user.
func Owned(owner, requester string) error {
	if owner != requester {
		return ErrForbidden
	}
	return nil
}

// Audit is what gets stored in gemini_response.
type Audit[R any] struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Result  R      `json:"result"`
	Reply   string `json:"reply"`
}

// Pipeline sends an image to the model with a fixed prompt and decodes the
// reply into R, substituting Fallback when the reply is unusable.
type Pipeline[R any] struct {
	Name     string
	Prompt   string
	Fallback R
	Analyzer vision.Analyzer
	Logger   *zap.SugaredLogger
}

// Run makes one model call. A blocked or unparseable reply yields the
// fallback outcome; any other model error is returned. NUL bytes are dropped
// from the reply before it is decoded or audited.
func (p *Pipeline[R]) Run(ctx context.Context, userID string, img *upload.Image) (vision.Outcome[R], database.JSONB, error) {
	reply, err := p.Analyzer.Analyze(ctx, p.Prompt, img.Data, img.MIME)
	reply = strings.ReplaceAll(reply, "\x00", "")
	var out vision.Outcome[R]
	switch {
	case errors.Is(err, vision.ErrBlocked):
		out = vision.Fallback(p.Fallback, err.Error())
	case err != nil:
		return out, nil, fmt.Errorf("%s: %w", p.Name, err)
	default:
		out = vision.Decode(reply, p.Fallback)
	}

	if !out.Parsed {
		p.Logger.Warnw("model reply unusable, using fallback",
			"feature", p.Name,
			"user_id", userID,
			"reason", out.Reason,
			"reply_len", len(reply),
		)
	}
	audit, err := database.Marshal(Audit[R]{Outcome: out.Kind(), Reason: out.Reason, Result: out.Result, Reply: reply})
	if err != nil {
		return out, nil, fmt.Errorf("%s: encode audit: %w", p.Name, err)
	}
	return out, audit, nil
}
