package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/prediction/entity"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/utilities"
)

// PredictionRepo provides data access for age_predictions. It does not check
// ownership; callers scope reads to the requesting user.
type PredictionRepo struct {
	db *sqlx.DB
}

func NewPredictionRepo(db *sqlx.DB) *PredictionRepo { return &PredictionRepo{db: db} }

const columns = `id, user_id, image_url, predicted_age, future_age, confidence, analysis,
	future_description, gemini_response, created_at`

// Create inserts p, filling in its generated id and created_at.
func (r *PredictionRepo) Create(ctx context.Context, p *entity.Prediction) error {
	if p.ID == "" {
		p.ID = utilities.NewKSUID()
	}
	q := `INSERT INTO age_predictions (id, user_id, image_url, predicted_age, future_age, confidence,
		analysis, future_description, gemini_response)
		VALUES (:id, :user_id, :image_url, :predicted_age, :future_age, :confidence,
		:analysis, :future_description, :gemini_response)
		RETURNING created_at`
	rows, err := r.db.NamedQueryContext(ctx, q, p)
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
	return rows.Scan(&p.CreatedAt)
}

// ListByUser returns at most limit rows of userID, newest first.
func (r *PredictionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]entity.Prediction, error) {
	q := `SELECT ` + columns + ` FROM age_predictions WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
	out := []entity.Prediction{}
	if err := r.db.SelectContext(ctx, &out, q, userID, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns the row or sql.ErrNoRows.
func (r *PredictionRepo) GetByID(ctx context.Context, id string) (*entity.Prediction, error) {
	q := `SELECT ` + columns + ` FROM age_predictions WHERE id = $1`
	var p entity.Prediction
	if err := r.db.GetContext(ctx, &p, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}
