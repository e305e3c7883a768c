package prediction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/analysis"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/prediction/entity"
	predictionrepo "github.com/ovaphlow/pitchfork/service-persona-ai/internal/prediction/repo"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/upload"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/vision"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, p *entity.Prediction) error
	ListByUser(ctx context.Context, userID string, limit int) ([]entity.Prediction, error)
	GetByID(ctx context.Context, id string) (*entity.Prediction, error)
}

// PredictionService runs age predictions and serves a user's history.
type PredictionService struct {
	repo     Store
	pipeline *analysis.Pipeline[entity.Result]
	logger   *zap.SugaredLogger
}

func NewPredictionService(db *sqlx.DB, r Store, analyzer vision.Analyzer, logger *zap.SugaredLogger) *PredictionService {
	if r == nil {
		r = predictionrepo.NewPredictionRepo(db)
	}
	return &PredictionService{
		repo: r,
		pipeline: &analysis.Pipeline[entity.Result]{
			Name:     "predict-age",
			Prompt:   prompt,
			Fallback: fallback,
			Analyzer: analyzer,
			Logger:   logger,
		},
		logger: logger,
	}
}

// Predict analyses img for userID, stores the result and returns it.
func (s *PredictionService) Predict(ctx context.Context, userID string, img *upload.Image) (*entity.Response, error) {
	out, audit, err := s.pipeline.Run(ctx, userID, img)
	if err != nil {
		return nil, err
	}
	res := out.Result
	rec := &entity.Prediction{
		UserID:            userID,
		ImageURL:          img.DataURL(),
		PredictedAge:      res.PredictedAge,
		FutureAge:         &res.FutureAge,
		Confidence:        &res.Confidence,
		Analysis:          &res.Analysis,
		FutureDescription: &res.FutureDescription,
		GeminiResponse:    audit,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store prediction: %w", err)
	}
	s.logger.Infow("age predicted", "id", rec.ID, "user_id", userID, "outcome", out.Kind(), "predicted_age", res.PredictedAge)
	return &entity.Response{
		ID:                rec.ID,
		PredictedAge:      res.PredictedAge,
		FutureAge:         res.FutureAge,
		Confidence:        res.Confidence,
		Analysis:          res.Analysis,
		FutureDescription: res.FutureDescription,
		Fallback:          !out.Parsed,
		CreatedAt:         rec.CreatedAt,
	}, nil
}

// List returns the newest predictions of userID.
func (s *PredictionService) List(ctx context.Context, userID string, limit int) ([]entity.Prediction, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

// GetForUser returns prediction id if it belongs to userID.
func (s *PredictionService) GetForUser(ctx context.Context, userID, id string) (*entity.Prediction, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, analysis.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := analysis.Owned(p.UserID, userID); err != nil {
		return nil, err
	}
	return p, nil
}
