package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/personality/entity"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/utilities"
)

// AnalysisRepo provides data access for personality_analyses. It does not
// check ownership; callers scope reads to the requesting user.
type AnalysisRepo struct {
	db *sqlx.DB
}

func NewAnalysisRepo(db *sqlx.DB) *AnalysisRepo { return &AnalysisRepo{db: db} }

const columns = `id, user_id, image_url, mbti_type, confidence, openness, conscientiousness,
	extraversion, agreeableness, neuroticism, analysis, strengths, weaknesses, recommendations,
	gemini_response, created_at`

// Create inserts a, filling in its generated id and created_at.
func (r *AnalysisRepo) Create(ctx context.Context, a *entity.Analysis) error {
	if a.ID == "" {
		a.ID = utilities.NewKSUID()
	}
	q := `INSERT INTO personality_analyses (id, user_id, image_url, mbti_type, confidence, openness,
		conscientiousness, extraversion, agreeableness, neuroticism, analysis, strengths, weaknesses,
		recommendations, gemini_response)
		VALUES (:id, :user_id, :image_url, :mbti_type, :confidence, :openness,
		:conscientiousness, :extraversion, :agreeableness, :neuroticism, :analysis, :strengths, :weaknesses,
		:recommendations, :gemini_response)
		RETURNING created_at`
	rows, err := r.db.NamedQueryContext(ctx, q, a)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return errors.New("insert returned no row")
	}
	return rows.Scan(&a.CreatedAt)
}

// ListByUser returns at most limit rows of userID, newest first.
func (r *AnalysisRepo) ListByUser(ctx context.Context, userID string, limit int) ([]entity.Analysis, error) {
	q := `SELECT ` + columns + ` FROM personality_analyses WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
	out := []entity.Analysis{}
	if err := r.db.SelectContext(ctx, &out, q, userID, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns the row or sql.ErrNoRows.
func (r *AnalysisRepo) GetByID(ctx context.Context, id string) (*entity.Analysis, error) {
	q := `SELECT ` + columns + ` FROM personality_analyses WHERE id = $1`
	var a entity.Analysis
	if err := r.db.GetContext(ctx, &a, q, id); err != nil {
		return nil, err
	}
	return &a, nil
}
