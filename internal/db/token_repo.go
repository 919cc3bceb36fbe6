package db

import (
	"context"
	"time"

	"duewatch/internal/types"
)

// TokenRepository provides the maintenance-facing slice of the auth token
// tables. The tokens themselves (email verification, password reset) are
// issued and consumed by the auth layer; this repository only reclaims
// expired rows during cleanup sweeps.
type TokenRepository struct {
	db DBTX
}

// NewTokenRepository creates a new TokenRepository backed by the given
// database connection (pool or transaction).
func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// DeleteExpiredBefore removes auth tokens whose expiry has passed the given
// reference time. Returns the count of deleted rows.
func (r *TokenRepository) DeleteExpiredBefore(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM auth_tokens WHERE expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired tokens", err)
	}
	return int(tag.RowsAffected()), nil
}
