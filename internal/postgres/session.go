package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarhut/checkout/internal/domain/auth"
)

const (
	getSessionSQL = `SELECT token_hash, user_id, role, expires_at
		FROM sessions WHERE token_hash = $1`

	upsertSessionSQL = `INSERT INTO sessions (token_hash, user_id, role, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO UPDATE SET user_id = $2, role = $3, expires_at = $4`
)

var _ auth.Repository = (*SessionRepository)(nil)

// SessionRepository implements auth.Repository backed by PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// FindByTokenHash looks up a session by its peppered token hash. Returns
// auth.ErrNotAuthenticated when no session matches.
func (r *SessionRepository) FindByTokenHash(ctx context.Context, hash string) (*auth.Session, error) {
	var sess auth.Session
	err := r.pool.QueryRow(ctx, getSessionSQL, hash).Scan(
		&sess.TokenHash, &sess.UserID, &sess.Role, &sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("finding session: %w", err)
	}
	return &sess, nil
}

// Upsert stores a session. Used by the seed tool and the identity provider's
// sync job.
func (r *SessionRepository) Upsert(ctx context.Context, sess auth.Session) error {
	_, err := r.pool.Exec(ctx, upsertSessionSQL, sess.TokenHash, sess.UserID, sess.Role, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}
