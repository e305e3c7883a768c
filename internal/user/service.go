package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-persona-ai/internal/user/repo"
)

var ErrUserNotFound = errors.New("user not found")

// Store is the persistence surface UserService needs.
type Store interface {
	Upsert(ctx context.Context, u entity.Upsert) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// UserService keeps the users table in step with the identity provider.
type UserService struct {
	repo     Store
	validate *validator.Validate
}

func NewUserService(db *sqlx.DB, r Store) *UserService {
	if r == nil {
		r = userrepo.NewUserRepo(db)
	}
	return &UserService{repo: r, validate: validator.New()}
}

// UpsertFromClaims records the identity returned by a login. Blank optional
// fields are stored as NULL.
func (s *UserService) UpsertFromClaims(ctx context.Context, u entity.Upsert) (*entity.User, error) {
	u.Email = nilIfBlank(u.Email)
	u.FirstName = nilIfBlank(u.FirstName)
	u.LastName = nilIfBlank(u.LastName)
	u.ProfileImageURL = nilIfBlank(u.ProfileImageURL)
	if err := s.validate.Struct(u); err != nil {
		return nil, fmt.Errorf("invalid identity: %w", err)
	}
	return s.repo.Upsert(ctx, u)
}

// Get returns the user or ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func nilIfBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
