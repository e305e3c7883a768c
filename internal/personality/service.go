package personality

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/analysis"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/personality/entity"
	analysisrepo "github.com/ovaphlow/pitchfork/service-persona-ai/internal/personality/repo"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/upload"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/vision"
)

type Store interface {
	Create(ctx context.Context, a *entity.Analysis) error
	ListByUser(ctx context.Context, userID string, limit int) ([]entity.Analysis, error)
	GetByID(ctx context.Context, id string) (*entity.Analysis, error)
}

// PersonalityService runs personality readings and serves a user's history.
type PersonalityService struct {
	repo     Store
	pipeline *analysis.Pipeline[entity.Result]
	logger   *zap.SugaredLogger
}

func NewPersonalityService(db *sqlx.DB, r Store, analyzer vision.Analyzer, logger *zap.SugaredLogger) *PersonalityService {
	if r == nil {
		r = analysisrepo.NewAnalysisRepo(db)
	}
	return &PersonalityService{
		repo: r,
		pipeline: &analysis.Pipeline[entity.Result]{
			Name:     "analyze-personality",
			Prompt:   prompt,
			Fallback: fallback,
			Analyzer: analyzer,
			Logger:   logger,
		},
		logger: logger,
	}
}

// Analyze reads img for userID, stores the result and returns it.
func (s *PersonalityService) Analyze(ctx context.Context, userID string, img *upload.Image) (*entity.Response, error) {
	out, audit, err := s.pipeline.Run(ctx, userID, img)
	if err != nil {
		return nil, err
	}
	res := out.Result
	normalize(&res)
	rec := &entity.Analysis{
		UserID:          userID,
		ImageURL:        img.DataURL(),
		MBTIType:        res.MBTIType,
		Confidence:      &res.Confidence,
		Traits:          res.Traits,
		Analysis:        res.Analysis,
		Strengths:       res.Strengths,
		Weaknesses:      res.Weaknesses,
		Recommendations: res.Recommendations,
		GeminiResponse:  audit,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}
	s.logger.Infow("personality analysed", "id", rec.ID, "user_id", userID, "outcome", out.Kind(), "mbti", res.MBTIType)
	return &entity.Response{
		ID:              rec.ID,
		MBTIType:        res.MBTIType,
		Confidence:      res.Confidence,
		Traits:          res.Traits,
		Analysis:        res.Analysis,
		Strengths:       res.Strengths,
		Weaknesses:      res.Weaknesses,
		Recommendations: res.Recommendations,
		Fallback:        !out.Parsed,
		CreatedAt:       rec.CreatedAt,
	}, nil
}

func (s *PersonalityService) List(ctx context.Context, userID string, limit int) ([]entity.Analysis, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

// GetForUser returns analysis id if it belongs to userID.
func (s *PersonalityService) GetForUser(ctx context.Context, userID, id string) (*entity.Analysis, error) {
	a, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, analysis.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := analysis.Owned(a.UserID, userID); err != nil {
		return nil, err
	}
	return a, nil
}
