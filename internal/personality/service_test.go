package personality

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/analysis"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/personality/entity"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/upload"
)

type memStore struct {
	rows map[string]entity.Analysis
}

func (m *memStore) Create(_ context.Context, a *entity.Analysis) error {
	a.ID = "an-" + a.UserID
	a.CreatedAt = time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	m.rows[a.ID] = *a
	return nil
}

func (m *memStore) ListByUser(_ context.Context, userID string, limit int) ([]entity.Analysis, error) {
	out := []entity.Analysis{}
	for _, r := range m.rows {
		if r.UserID == userID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*entity.Analysis, error) {
	r, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

type stubAnalyzer struct {
	reply string
	err   error
}

func (s stubAnalyzer) Analyze(context.Context, string, []byte, string) (string, error) {
	return s.reply, s.err
}

const goodReply = `Here is the reading:
{
  "mbtiType": "enfp",
  "confidence": "high",
  "traits": {"openness": 88, "conscientiousness": 41, "extraversion": 77, "agreeableness": 69, "neuroticism": 30},
  "analysis": {"ko": "밝은 인상", "en": "Bright impression"},
  "strengths": {"ko": "창의성", "en": "Creativity"},
  "weaknesses": {"ko": "산만함", "en": "Easily distracted"},
  "recommendations": {"ko": "계획 세우기", "en": "Plan ahead"}
}`

var img = &upload.Image{Data: []byte{0xff, 0xd8, 0xff}, MIME: "image/jpeg"}

func newService(t *testing.T, a stubAnalyzer) (*PersonalityService, *memStore) {
	t.Helper()
	store := &memStore{rows: map[string]entity.Analysis{}}
	return NewPersonalityService(nil, store, a, zaptest.NewLogger(t).Sugar()), store
}

func TestAnalyzeParsed(t *testing.T) {
	svc, store := newService(t, stubAnalyzer{reply: goodReply})

	res, err := svc.Analyze(context.Background(), "u1", img)
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "ENFP", res.MBTIType)
	assert.Equal(t, 88, res.Traits.Openness)
	assert.Equal(t, "Creativity", res.Strengths.En)

	stored := store.rows[res.ID]
	assert.Equal(t, "ENFP", stored.MBTIType)
	assert.Equal(t, "data:image/jpeg;base64,/9j/", stored.ImageURL)
	assert.Equal(t, 30, stored.Neuroticism)
}

func TestAnalyzeFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose", "This person seems nice."},
		{"unknown type", `{"mbtiType": "XXXX", "confidence": "high", "traits": {"openness": 1, "conscientiousness": 1, "extraversion": 1, "agreeableness": 1, "neuroticism": 1}, "analysis": {"ko": "a", "en": "a"}, "strengths": {"ko": "a", "en": "a"}, "weaknesses": {"ko": "a", "en": "a"}, "recommendations": {"ko": "a", "en": "a"}}`},
		{"trait out of range", `{"mbtiType": "INTJ", "confidence": "high", "traits": {"openness": 140, "conscientiousness": 1, "extraversion": 1, "agreeableness": 1, "neuroticism": 1}, "analysis": {"ko": "a", "en": "a"}, "strengths": {"ko": "a", "en": "a"}, "weaknesses": {"ko": "a", "en": "a"}, "recommendations": {"ko": "a", "en": "a"}}`},
		{"missing translation", `{"mbtiType": "INTJ", "confidence": "low", "traits": {"openness": 1, "conscientiousness": 1, "extraversion": 1, "agreeableness": 1, "neuroticism": 1}, "analysis": {"en": "a"}, "strengths": {"ko": "a", "en": "a"}, "weaknesses": {"ko": "a", "en": "a"}, "recommendations": {"ko": "a", "en": "a"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newService(t, stubAnalyzer{reply: tt.reply})
			res, err := svc.Analyze(context.Background(), "u1", img)
			require.NoError(t, err)
			assert.True(t, res.Fallback)
			assert.Equal(t, "INFP", res.MBTIType)
			assert.Equal(t, fallback.Traits, res.Traits)

			var audit analysis.Audit[entity.Result]
			require.NoError(t, json.Unmarshal(store.rows[res.ID].GeminiResponse, &audit))
			assert.Equal(t, "fallback", audit.Outcome)
			assert.Equal(t, tt.reply, audit.Reply)
		})
	}
}

func TestAnalyzeNULInReply(t *testing.T) {
	t.Run("raw NUL is dropped", func(t *testing.T) {
		reply := strings.Replace(goodReply, "Bright impression", "Bright\x00 impression", 1)
		svc, store := newService(t, stubAnalyzer{reply: reply})
		res, err := svc.Analyze(context.Background(), "u1", img)
		require.NoError(t, err)
		assert.False(t, res.Fallback)

		stored := store.rows[res.ID]
		assert.Equal(t, "Bright impression", stored.Analysis.En)
		assert.NotContains(t, string(stored.GeminiResponse), `\u0000`)
	})

	t.Run("escaped NUL falls back", func(t *testing.T) {
		reply := strings.Replace(goodReply, "Bright impression", `Bright\u0000 impression`, 1)
		svc, store := newService(t, stubAnalyzer{reply: reply})
		res, err := svc.Analyze(context.Background(), "u1", img)
		require.NoError(t, err)
		assert.True(t, res.Fallback)
		assert.Equal(t, "INFP", res.MBTIType)

		stored := store.rows[res.ID]
		assert.NotContains(t, stored.Analysis.En, "\x00")
		var audit analysis.Audit[entity.Result]
		require.NoError(t, json.Unmarshal(stored.GeminiResponse, &audit))
		assert.Equal(t, reply, audit.Reply)
	})
}

func TestAnalyzeModelError(t *testing.T) {
	svc, store := newService(t, stubAnalyzer{err: errors.New("quota exceeded")})
	_, err := svc.Analyze(context.Background(), "u1", img)
	assert.Error(t, err)
	assert.Empty(t, store.rows)
}

func TestGetForUser(t *testing.T) {
	svc, _ := newService(t, stubAnalyzer{reply: goodReply})
	res, err := svc.Analyze(context.Background(), "owner", img)
	require.NoError(t, err)

	got, err := svc.GetForUser(context.Background(), "owner", res.ID)
	require.NoError(t, err)
	assert.Equal(t, "ENFP", got.MBTIType)

	_, err = svc.GetForUser(context.Background(), "other", res.ID)
	assert.ErrorIs(t, err, analysis.ErrForbidden)

	_, err = svc.GetForUser(context.Background(), "owner", "missing")
	assert.ErrorIs(t, err, analysis.ErrNotFound)
}

func TestRecordJSONShape(t *testing.T) {
	rec := entity.Analysis{
		ID:       "a1",
		MBTIType: "ISTJ",
		Traits:   entity.Traits{Openness: 10},
		Analysis: entity.Localized{Ko: "가", En: "a"},
	}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	traits, ok := m["traits"].(map[string]any)
	require.True(t, ok, "traits nested")
	assert.Equal(t, float64(10), traits["openness"])
	assert.Equal(t, "a", m["analysis"].(map[string]any)["en"])
	assert.NotContains(t, m, "geminiResponse")
}
