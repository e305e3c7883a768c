package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/database"
)

// Traits are Big Five scores from 0 to 100.
type Traits struct {
	Openness          int `db:"openness" json:"openness" validate:"min=0,max=100"`
	Conscientiousness int `db:"conscientiousness" json:"conscientiousness" validate:"min=0,max=100"`
	Extraversion      int `db:"extraversion" json:"extraversion" validate:"min=0,max=100"`
	Agreeableness     int `db:"agreeableness" json:"agreeableness" validate:"min=0,max=100"`
	Neuroticism       int `db:"neuroticism" json:"neuroticism" validate:"min=0,max=100"`
}

// Localized is text in Korean and English, stored as a jsonb object.
type Localized struct {
	Ko string `json:"ko" validate:"required"`
	En string `json:"en" validate:"required"`
}

func (l Localized) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *Localized) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*l = Localized{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("localized: cannot scan %T", src)
	}
	return json.Unmarshal(b, l)
}

// Analysis is a row of personality_analyses.
type Analysis struct {
	ID              string         `db:"id" json:"id"`
	UserID          string         `db:"user_id" json:"userId"`
	ImageURL        string         `db:"image_url" json:"imageUrl"`
	MBTIType        string         `db:"mbti_type" json:"mbtiType"`
	Confidence      *string        `db:"confidence" json:"confidence"`
	Traits          `json:"traits"`
	Analysis        Localized      `db:"analysis" json:"analysis"`
	Strengths       Localized      `db:"strengths" json:"strengths"`
	Weaknesses      Localized      `db:"weaknesses" json:"weaknesses"`
	Recommendations Localized      `db:"recommendations" json:"recommendations"`
	GeminiResponse  database.JSONB `db:"gemini_response" json:"geminiResponse,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
}

// Result is the shape the model is asked to return.
type Result struct {
	MBTIType        string    `json:"mbtiType" validate:"mbti"`
	Confidence      string    `json:"confidence" validate:"oneof=high medium low"`
	Traits          Traits    `json:"traits"`
	Analysis        Localized `json:"analysis"`
	Strengths       Localized `json:"strengths"`
	Weaknesses      Localized `json:"weaknesses"`
	Recommendations Localized `json:"recommendations"`
}

// Response is the body returned by POST /api/analyze-personality.
type Response struct {
	ID              string    `json:"id"`
	MBTIType        string    `json:"mbtiType"`
	Confidence      string    `json:"confidence"`
	Traits          Traits    `json:"traits"`
	Analysis        Localized `json:"analysis"`
	Strengths       Localized `json:"strengths"`
	Weaknesses      Localized `json:"weaknesses"`
	Recommendations Localized `json:"recommendations"`
	Fallback        bool      `json:"fallback"`
	CreatedAt       time.Time `json:"createdAt"`
}
