package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"duewatch/internal/types"
)

// Compile-time assertions that the snapshot repositories satisfy the
// provider contracts.
var (
	_ types.EntryProvider = (*EntryRepository)(nil)
	_ types.UserProvider  = (*UserRepository)(nil)
)

// EntryRepository provides read-only snapshot access to financial entries.
// The entry aggregate is owned by the entry-management service; the
// notification subsystem only reads the fields it schedules from.
type EntryRepository struct {
	db DBTX
}

// NewEntryRepository creates a new EntryRepository backed by the given
// database connection (pool or transaction).
func NewEntryRepository(db DBTX) *EntryRepository {
	return &EntryRepository{db: db}
}

// GetEntrySnapshot loads the scheduling-relevant fields of an entry.
func (r *EntryRepository) GetEntrySnapshot(ctx context.Context, entryID string) (*types.EntrySnapshot, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, description, amount_cents, type, due_date,
		        notification_lead_minutes
		 FROM entries
		 WHERE id = $1 AND deleted_at IS NULL`,
		entryID,
	)

	var e types.EntrySnapshot
	var entryType string
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Description,
		&e.AmountCents,
		&entryType,
		&e.DueDate,
		&e.NotificationLeadMinutes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundEntry, "entry not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load entry snapshot", err)
	}

	e.Type = types.EntryType(entryType)
	return &e, nil
}

// UserRepository provides read-only snapshot access to user notification
// preferences. The user aggregate is owned by the auth/user service.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetUserSnapshot loads the notification-preference fields of a user.
func (r *UserRepository) GetUserSnapshot(ctx context.Context, userID string) (*types.UserSnapshot, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, email, name, notifications_enabled,
		        default_notification_lead_minutes
		 FROM users
		 WHERE id = $1 AND deleted_at IS NULL`,
		userID,
	)

	var u types.UserSnapshot
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.NotificationsEnabled,
		&u.DefaultNotificationLeadMinutes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load user snapshot", err)
	}

	return &u, nil
}
