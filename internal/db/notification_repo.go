package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"duewatch/internal/types"
)

// Compile-time assertion that NotificationRepository implements the store
// contract consumed by the orchestrators and workers.
var _ types.NotificationStore = (*NotificationRepository)(nil)

// NotificationRepository provides data access for the notifications table.
//
// Status transitions are guarded in SQL: UpdateStatus only matches rows still
// in 'pending', so terminal states (sent, cancelled) absorb — a second update
// affects zero rows and is reported via ErrCodeConflictTerminalState, which
// callers that need idempotency (cancel) treat as success.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository backed by
// the given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification record in 'pending' status with a NULL
// job reference. If the ID is empty a prefixed UUID is generated. CreatedAt
// and UpdatedAt are stamped by the database.
func (r *NotificationRepository) Create(ctx context.Context, n *types.Notification) error {
	if n.ID == "" {
		n.ID = types.NewNotificationID()
	}
	if n.Status == "" {
		n.Status = types.StatusPending
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO notifications
		 (id, entry_id, user_id, scheduled_at, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		n.ID,
		n.EntryID,
		n.UserID,
		n.ScheduledAt,
		string(n.Status),
	)
	if err := row.Scan(&n.CreatedAt, &n.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	return nil
}

// GetByEntryID returns the most recent non-deleted notification for the
// given entry. Returns an AppError with ErrCodeNotFoundNotification when no
// record exists; callers implementing idempotent cancel rely on that code.
func (r *NotificationRepository) GetByEntryID(ctx context.Context, entryID string) (*types.Notification, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, entry_id, user_id, scheduled_at, sent_at, status, job_id,
		        created_at, updated_at, deleted_at
		 FROM notifications
		 WHERE entry_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC
		 LIMIT 1`,
		entryID,
	)

	var n types.Notification
	var status string
	err := row.Scan(
		&n.ID,
		&n.EntryID,
		&n.UserID,
		&n.ScheduledAt,
		&n.SentAt,
		&status,
		&n.JobID,
		&n.CreatedAt,
		&n.UpdatedAt,
		&n.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundNotification, "no notification for entry", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load notification", err)
	}

	n.Status = types.NotificationStatus(status)
	return &n, nil
}

// UpdateJobID attaches the queue job reference to a pending record. The
// WHERE clause enforces set-once semantics: a record whose job_id is already
// populated, or which has left 'pending', is not touched.
func (r *NotificationRepository) UpdateJobID(ctx context.Context, id string, jobID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET
			job_id = $1,
			updated_at = NOW()
		 WHERE id = $2 AND status = 'pending' AND job_id IS NULL`,
		jobID,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to attach job id", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not pending or job id already set", nil)
	}
	return nil
}

// UpdateStatus transitions a record out of 'pending'. Transitioning to
// 'sent' stamps sent_at. Updating a record already in a terminal state
// affects zero rows and returns ErrCodeConflictTerminalState.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id string, status types.NotificationStatus) error {
	if !status.Valid() {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "invalid notification status", nil)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET
			status = $1,
			sent_at = CASE WHEN $1 = 'sent' THEN NOW() ELSE sent_at END,
			updated_at = NOW()
		 WHERE id = $2 AND status = 'pending'`,
		string(status),
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update notification status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictTerminalState, "notification already in a terminal state", nil)
	}
	return nil
}

// DeleteCancelledBefore removes cancelled notifications created before the
// cutoff and returns the count of deleted rows. Only 'cancelled' records are
// eligible; pending and sent records are never swept by this path.
func (r *NotificationRepository) DeleteCancelledBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications
		 WHERE status = 'cancelled' AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete cancelled notifications", err)
	}
	return int(tag.RowsAffected()), nil
}
