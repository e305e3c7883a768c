package entity

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/database"
)

// Prediction is a row of age_predictions.
type Prediction struct {
	ID                string         `db:"id" json:"id"`
	UserID            string         `db:"user_id" json:"userId"`
	ImageURL          string         `db:"image_url" json:"imageUrl"`
	PredictedAge      int            `db:"predicted_age" json:"predictedAge"`
	FutureAge         *int           `db:"future_age" json:"futureAge"`
	Confidence        *string        `db:"confidence" json:"confidence"`
	Analysis          *string        `db:"analysis" json:"analysis"`
	FutureDescription *string        `db:"future_description" json:"futureDescription"`
	GeminiResponse    database.JSONB `db:"gemini_response" json:"geminiResponse,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
}

// Result is the shape the model is asked to return.
type Result struct {
	PredictedAge      int    `json:"predictedAge" validate:"gt=0,lt=150"`
	FutureAge         int    `json:"futureAge" validate:"gtefield=PredictedAge"`
	Confidence        string `json:"confidence" validate:"oneof=high medium low"`
	Analysis          string `json:"analysis" validate:"required"`
	FutureDescription string `json:"futureDescription" validate:"required"`
}

// Response is the body returned by POST /api/predict-age.
type Response struct {
	ID                string    `json:"id"`
	PredictedAge      int       `json:"predictedAge"`
	FutureAge         int       `json:"futureAge"`
	Confidence        string    `json:"confidence"`
	Analysis          string    `json:"analysis"`
	FutureDescription string    `json:"futureDescription"`
	Fallback          bool      `json:"fallback"`
	CreatedAt         time.Time `json:"createdAt"`
}
