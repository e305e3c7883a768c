package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/user/entity"
)

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, first_name, last_name, profile_image_url, created_at, updated_at`

// Upsert inserts the user or refreshes its profile fields and updated_at.
func (r *UserRepo) Upsert(ctx context.Context, u entity.Upsert) (*entity.User, error) {
	q := `INSERT INTO users (id, email, first_name, last_name, profile_image_url)
		  VALUES (:id, :email, :first_name, :last_name, :profile_image_url)
		  ON CONFLICT (id) DO UPDATE SET
		    email = EXCLUDED.email,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    profile_image_url = EXCLUDED.profile_image_url,
		    updated_at = NOW()
		  RETURNING ` + userColumns
	rows, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("upsert returned no row")
	}
	var out entity.User
	if err := rows.StructScan(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByID returns the user or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, err
	}
	return &u, nil
}
