package client

import "time"

// Paths of the listing endpoints; they double as cache keys.
const (
	PredictionsPath = "/api/predictions"
	AnalysesPath    = "/api/analyses"
)

// HistoryPageSize is how many records the history views fetch.
const HistoryPageSize = 10

type User struct {
	ID              string    `json:"id"`
	Email           *string   `json:"email"`
	FirstName       *string   `json:"firstName"`
	LastName        *string   `json:"lastName"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
}

// AgeResult is the reply of POST /api/predict-age.
type AgeResult struct {
	ID                string    `json:"id"`
	PredictedAge      int       `json:"predictedAge"`
	FutureAge         int       `json:"futureAge"`
	Confidence        string    `json:"confidence"`
	Analysis          string    `json:"analysis"`
	FutureDescription string    `json:"futureDescription"`
	Fallback          bool      `json:"fallback"`
	CreatedAt         time.Time `json:"createdAt"`
}

type Prediction struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	ImageURL          string    `json:"imageUrl"`
	PredictedAge      int       `json:"predictedAge"`
	FutureAge         *int      `json:"futureAge"`
	Confidence        *string   `json:"confidence"`
	Analysis          *string   `json:"analysis"`
	FutureDescription *string   `json:"futureDescription"`
	CreatedAt         time.Time `json:"createdAt"`
}

type Localized struct {
	Ko string `json:"ko"`
	En string `json:"en"`
}

type Traits struct {
	Openness          int `json:"openness"`
	Conscientiousness int `json:"conscientiousness"`
	Extraversion      int `json:"extraversion"`
	Agreeableness     int `json:"agreeableness"`
	Neuroticism       int `json:"neuroticism"`
}

// PersonalityResult is the reply of POST /api/analyze-personality.
type PersonalityResult struct {
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

type Analysis struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	ImageURL        string    `json:"imageUrl"`
	MBTIType        string    `json:"mbtiType"`
	Confidence      *string   `json:"confidence"`
	Traits          Traits    `json:"traits"`
	Analysis        Localized `json:"analysis"`
	Strengths       Localized `json:"strengths"`
	Weaknesses      Localized `json:"weaknesses"`
	Recommendations Localized `json:"recommendations"`
	CreatedAt       time.Time `json:"createdAt"`
}
