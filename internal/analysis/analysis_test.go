package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/upload"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/vision"
)

func TestParseLimit(t *testing.T) {
	tests := map[string]int{
		"":     DefaultLimit,
		"abc":  DefaultLimit,
		"0":    DefaultLimit,
		"-3":   DefaultLimit,
		"1":    1,
		"25":   25,
		"5000": MaxLimit,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLimit(in), "limit=%q", in)
	}
}

func TestOwned(t *testing.T) {
	assert.NoError(t, Owned("u1", "u1"))
	assert.ErrorIs(t, Owned("u1", "u2"), ErrForbidden)
}

type stubAnalyzer struct {
	reply string
	err   error
	calls int
}

func (s *stubAnalyzer) Analyze(context.Context, string, []byte, string) (string, error) {
	s.calls++
	return s.reply, s.err
}

type result struct {
	Score int `json:"score" validate:"min=0,max=100"`
}

func TestPipelineRun(t *testing.T) {
	img := &upload.Image{Data: []byte{1, 2, 3}, MIME: "image/jpeg"}
	newPipeline := func(a vision.Analyzer) *Pipeline[result] {
		return &Pipeline[result]{
			Name:     "test",
			Prompt:   "score it",
			Fallback: result{Score: 50},
			Analyzer: a,
			Logger:   zaptest.NewLogger(t).Sugar(),
		}
	}

	t.Run("parsed", func(t *testing.T) {
		a := &stubAnalyzer{reply: `{"score": 91}`}
		out, audit, err := newPipeline(a).Run(context.Background(), "u1", img)
		require.NoError(t, err)
		assert.True(t, out.Parsed)
		assert.Equal(t, 91, out.Result.Score)

		var stored Audit[result]
		require.NoError(t, json.Unmarshal(audit, &stored))
		assert.Equal(t, "parsed", stored.Outcome)
		assert.Equal(t, `{"score": 91}`, stored.Reply)
	})

	t.Run("non json falls back", func(t *testing.T) {
		a := &stubAnalyzer{reply: "I'd rather not say."}
		out, audit, err := newPipeline(a).Run(context.Background(), "u1", img)
		require.NoError(t, err)
		assert.False(t, out.Parsed)
		assert.Equal(t, 50, out.Result.Score)
		assert.Contains(t, string(audit), `"outcome":"fallback"`)
	})

	t.Run("NUL bytes are dropped", func(t *testing.T) {
		a := &stubAnalyzer{reply: "{\"score\": 91, \"note\": \"ok\x00bad\"}"}
		out, audit, err := newPipeline(a).Run(context.Background(), "u1", img)
		require.NoError(t, err)
		assert.True(t, out.Parsed)
		assert.Equal(t, 91, out.Result.Score)

		var stored Audit[result]
		require.NoError(t, json.Unmarshal(audit, &stored))
		assert.Equal(t, `{"score": 91, "note": "okbad"}`, stored.Reply)
	})

	t.Run("escaped NUL falls back", func(t *testing.T) {
		a := &stubAnalyzer{reply: `{"score": 91, "note": "ok\u0000bad"}`}
		out, audit, err := newPipeline(a).Run(context.Background(), "u1", img)
		require.NoError(t, err)
		assert.False(t, out.Parsed)
		assert.Equal(t, 50, out.Result.Score)

		var stored Audit[result]
		require.NoError(t, json.Unmarshal(audit, &stored))
		assert.Equal(t, "fallback", stored.Outcome)
		assert.NotContains(t, stored.Reply, "\x00")
	})

	t.Run("blocked falls back", func(t *testing.T) {
		a := &stubAnalyzer{err: vision.ErrBlocked}
		out, _, err := newPipeline(a).Run(context.Background(), "u1", img)
		require.NoError(t, err)
		assert.False(t, out.Parsed)
	})

	t.Run("transport error is returned once", func(t *testing.T) {
		a := &stubAnalyzer{err: errors.New("dial tcp: timeout")}
		_, _, err := newPipeline(a).Run(context.Background(), "u1", img)
		assert.Error(t, err)
		assert.Equal(t, 1, a.calls)
	})
}
