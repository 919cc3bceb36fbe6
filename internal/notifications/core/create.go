package core

import (
	"context"
	"log/slog"
	"time"

	"duewatch/internal/types"
)

// CreateService orchestrates reminder creation for financial entries. The
// ordering contract is persist first, enqueue second: a notification record
// always exists before its queue job, so the delivery worker can rely on
// finding the record when the job fires.
type CreateService struct {
	store     types.NotificationStore
	entries   types.EntryProvider
	users     types.UserProvider
	scheduler Scheduler
	clock     types.Clock
	logger    *slog.Logger
}

// NewCreateService creates a CreateService. A nil clock falls back to the
// real clock and a nil logger to slog.Default.
func NewCreateService(
	store types.NotificationStore,
	entries types.EntryProvider,
	users types.UserProvider,
	scheduler Scheduler,
	clock types.Clock,
	logger *slog.Logger,
) *CreateService {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateService{
		store:     store,
		entries:   entries,
		users:     users,
		scheduler: scheduler,
		clock:     clock,
		logger:    logger,
	}
}

// CreateForEntry resolves the entry and owning user, then delegates to
// Create. Lookup failures surface as not-found errors from the providers.
func (s *CreateService) CreateForEntry(ctx context.Context, entryID string) (*types.Notification, error) {
	entry, err := s.entries.GetEntrySnapshot(ctx, entryID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserSnapshot(ctx, entry.UserID)
	if err != nil {
		return nil, err
	}

	return s.Create(ctx, entry, user)
}

// Create schedules a reminder for the entry.
//
// Eligibility is checked before anything is written: a user with
// notifications disabled yields ErrCodeNotificationsDisabled, and a resolved
// fire time before the start of the current UTC day yields
// ErrCodePastSchedule. Neither rejection leaves any record behind.
//
// A fire time earlier today is accepted; the queue delivers it immediately.
//
// On queue rejection the persisted record remains pending with no job
// reference and the error surfaces as ErrCodeSchedulingFailure. The record is
// not rolled back: the caller may retry the enqueue, and the cleanup sweep
// never touches pending rows.
func (s *CreateService) Create(ctx context.Context, entry *types.EntrySnapshot, user *types.UserSnapshot) (*types.Notification, error) {
	if !user.NotificationsEnabled {
		return nil, types.NewAppError(types.ErrCodeNotificationsDisabled,
			"user has notifications disabled", nil)
	}

	scheduledAt := s.scheduler.CalculateScheduledTime(entry, user)

	now := s.clock.Now()
	if scheduledAt.Before(startOfDayUTC(now)) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodePastSchedule,
			"resolved reminder time is before the current day", nil,
			map[string]any{
				"scheduled_at": scheduledAt.Format(time.RFC3339),
				"due_date":     entry.DueDate.UTC().Format(time.RFC3339),
			})
	}

	notification := &types.Notification{
		ID:          types.NewNotificationID(),
		EntryID:     entry.ID,
		UserID:      user.ID,
		ScheduledAt: scheduledAt,
		Status:      types.StatusPending,
	}

	if err := s.store.Create(ctx, notification); err != nil {
		return nil, err
	}

	jobID, err := s.scheduler.Schedule(ctx, notification, entry)
	if err != nil {
		s.logger.ErrorContext(ctx, "reminder enqueue failed, record left pending without job",
			"notification_id", notification.ID,
			"entry_id", entry.ID,
			"error", err,
		)
		return nil, err
	}

	if err := s.store.UpdateJobID(ctx, notification.ID, jobID); err != nil {
		// The job is already live and the worker marks the record sent by
		// ID, so delivery does not depend on this reference. Cancellation
		// for this record degrades to record-only.
		s.logger.WarnContext(ctx, "failed to attach job reference to notification",
			"notification_id", notification.ID,
			"job_id", jobID,
			"error", err,
		)
	} else {
		notification.JobID = &jobID
	}

	s.logger.InfoContext(ctx, "reminder created",
		"notification_id", notification.ID,
		"entry_id", entry.ID,
		"user_id", user.ID,
		"scheduled_at", scheduledAt.Format(time.RFC3339),
	)

	return notification, nil
}
