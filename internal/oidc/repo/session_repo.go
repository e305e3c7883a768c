package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

// SessionRepo stores login sessions. sid is always the digest of the cookie
// value, never the raw value.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Save(ctx context.Context, sid string, sess json.RawMessage, expire time.Time) error {
	query := `INSERT INTO sessions (sid, sess, expire) VALUES ($1, $2, $3)
		ON CONFLICT (sid) DO UPDATE SET sess = EXCLUDED.sess, expire = EXCLUDED.expire`
	_, err := r.db.ExecContext(ctx, query, sid, string(sess), expire)
	return err
}

// Update replaces the payload and leaves the expiry untouched.
func (r *SessionRepo) Update(ctx context.Context, sid string, sess json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET sess = $2 WHERE sid = $1`, sid, string(sess))
	return err
}

// Get returns the payload and expiry, or sql.ErrNoRows.
func (r *SessionRepo) Get(ctx context.Context, sid string) (json.RawMessage, time.Time, error) {
	var sess []byte
	var expire time.Time
	row := r.db.QueryRowxContext(ctx, `SELECT sess, expire FROM sessions WHERE sid = $1`, sid)
	if err := row.Scan(&sess, &expire); err != nil {
		return nil, time.Time{}, err
	}
	return sess, expire, nil
}

func (r *SessionRepo) Delete(ctx context.Context, sid string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE sid = $1`, sid)
	return err
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expire <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
