package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"duewatch/internal/config"
	"duewatch/internal/types"
)

func schedulerTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fixedClock returns a constant instant from Now.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// ============================================================
// Mock: JobQueue
// ============================================================

type submittedJob struct {
	msg         types.ReminderMessage
	delay       time.Duration
	maxAttempts int
}

type mockJobQueue struct {
	mu sync.Mutex

	submitted []submittedJob
	submitErr error
	jobID     string

	cancelled []string
	cancelErr error
}

func (m *mockJobQueue) Submit(_ context.Context, msg types.ReminderMessage, delay time.Duration, maxAttempts int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return "", m.submitErr
	}
	m.submitted = append(m.submitted, submittedJob{msg: msg, delay: delay, maxAttempts: maxAttempts})
	return m.jobID, nil
}

func (m *mockJobQueue) Cancel(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, jobID)
	return m.cancelErr
}

func intPtr(v int) *int { return &v }

func testNotifyConfig() config.NotifyConfig {
	return config.NotifyConfig{
		DefaultLeadMinutes: 30,
		MaxAttempts:        3,
		RetryBaseDelay:     2 * time.Second,
	}
}

// ============================================================
// CalculateScheduledTime
// ============================================================

func TestCalculateScheduledTime(t *testing.T) {
	dueDate := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		entryLead *int
		userLead  *int
		want      time.Time
	}{
		{
			name: "system default when nothing set",
			want: dueDate.Add(-30 * time.Minute),
		},
		{
			name:     "user default applies",
			userLead: intPtr(120),
			want:     dueDate.Add(-120 * time.Minute),
		},
		{
			name:      "entry override applies",
			entryLead: intPtr(15),
			want:      dueDate.Add(-15 * time.Minute),
		},
		{
			name:      "entry override beats user default",
			entryLead: intPtr(15),
			userLead:  intPtr(120),
			want:      dueDate.Add(-15 * time.Minute),
		},
		{
			name:      "day-scale entry override",
			entryLead: intPtr(2 * 24 * 60),
			want:      dueDate.AddDate(0, 0, -2),
		},
	}

	s := NewReminderScheduler(&mockJobQueue{}, testNotifyConfig(), nil, schedulerTestLogger())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &types.EntrySnapshot{
				ID:                      "entry_1",
				DueDate:                 dueDate,
				NotificationLeadMinutes: tt.entryLead,
			}
			user := &types.UserSnapshot{
				ID:                             "user_1",
				DefaultNotificationLeadMinutes: tt.userLead,
			}

			got := s.CalculateScheduledTime(entry, user)
			if !got.Equal(tt.want) {
				t.Errorf("CalculateScheduledTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateScheduledTimeNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	dueDate := time.Date(2025, 3, 10, 11, 0, 0, 0, loc) // 09:00 UTC

	s := NewReminderScheduler(&mockJobQueue{}, testNotifyConfig(), nil, schedulerTestLogger())

	got := s.CalculateScheduledTime(
		&types.EntrySnapshot{ID: "entry_1", DueDate: dueDate},
		&types.UserSnapshot{ID: "user_1"},
	)

	want := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("CalculateScheduledTime() = %v, want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Errorf("CalculateScheduledTime() location = %v, want UTC", got.Location())
	}
}

// ============================================================
// Schedule
// ============================================================

func TestScheduleComputesDelayFromClock(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	scheduledAt := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

	queue := &mockJobQueue{jobID: "job_42"}
	s := NewReminderScheduler(queue, testNotifyConfig(), fixedClock{now: now}, schedulerTestLogger())

	notification := &types.Notification{
		ID:          "ntf_1",
		EntryID:     "entry_1",
		UserID:      "user_1",
		ScheduledAt: scheduledAt,
		Status:      types.StatusPending,
	}
	entry := &types.EntrySnapshot{
		ID:          "entry_1",
		UserID:      "user_1",
		Description: "Rent",
		AmountCents: 120000,
		Type:        types.EntryExpense,
		DueDate:     time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	jobID, err := s.Schedule(context.Background(), notification, entry)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if jobID != "job_42" {
		t.Errorf("Schedule() jobID = %q, want %q", jobID, "job_42")
	}

	if len(queue.submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(queue.submitted))
	}
	job := queue.submitted[0]

	if job.delay != 30*time.Minute {
		t.Errorf("submitted delay = %v, want 30m", job.delay)
	}
	if job.maxAttempts != 3 {
		t.Errorf("submitted maxAttempts = %d, want 3", job.maxAttempts)
	}
	if job.msg.NotificationID != "ntf_1" {
		t.Errorf("msg.NotificationID = %q, want ntf_1", job.msg.NotificationID)
	}
	if job.msg.Description != "Rent" || job.msg.AmountCents != 120000 {
		t.Errorf("entry snapshot not carried: %+v", job.msg)
	}
	if job.msg.TraceID == "" {
		t.Error("msg.TraceID is empty, want generated trace ID")
	}
}

func TestSchedulePastFireTimeClampsDelayToZero(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	queue := &mockJobQueue{jobID: "job_1"}
	s := NewReminderScheduler(queue, testNotifyConfig(), fixedClock{now: now}, schedulerTestLogger())

	notification := &types.Notification{
		ID:          "ntf_1",
		UserID:      "user_1",
		ScheduledAt: now.Add(-10 * time.Minute),
		Status:      types.StatusPending,
	}
	entry := &types.EntrySnapshot{ID: "entry_1", DueDate: now}

	if _, err := s.Schedule(context.Background(), notification, entry); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	if queue.submitted[0].delay != 0 {
		t.Errorf("submitted delay = %v, want 0 for past fire time", queue.submitted[0].delay)
	}
}

func TestScheduleQueueRejection(t *testing.T) {
	queue := &mockJobQueue{submitErr: errors.New("redis unreachable")}
	s := NewReminderScheduler(queue, testNotifyConfig(), fixedClock{now: time.Now().UTC()}, schedulerTestLogger())

	notification := &types.Notification{
		ID:          "ntf_1",
		UserID:      "user_1",
		ScheduledAt: time.Now().UTC().Add(time.Hour),
		Status:      types.StatusPending,
	}
	entry := &types.EntrySnapshot{ID: "entry_1", DueDate: time.Now().UTC().Add(2 * time.Hour)}

	_, err := s.Schedule(context.Background(), notification, entry)
	if err == nil {
		t.Fatal("Schedule() error = nil, want scheduling failure")
	}
	if !types.IsCode(err, types.ErrCodeSchedulingFailure) {
		t.Errorf("Schedule() error code = %v, want %s", err, types.ErrCodeSchedulingFailure)
	}
}

// ============================================================
// Cancel
// ============================================================

func TestCancelRemovesJob(t *testing.T) {
	queue := &mockJobQueue{}
	s := NewReminderScheduler(queue, testNotifyConfig(), nil, schedulerTestLogger())

	s.Cancel(context.Background(), "job_7")

	if len(queue.cancelled) != 1 || queue.cancelled[0] != "job_7" {
		t.Errorf("cancelled = %v, want [job_7]", queue.cancelled)
	}
}

func TestCancelSwallowsQueueErrors(t *testing.T) {
	queue := &mockJobQueue{cancelErr: errors.New("redis unreachable")}
	s := NewReminderScheduler(queue, testNotifyConfig(), nil, schedulerTestLogger())

	// Must not panic or propagate; record-level cancellation wins.
	s.Cancel(context.Background(), "job_7")

	if len(queue.cancelled) != 1 {
		t.Errorf("expected cancel attempt despite error, got %d", len(queue.cancelled))
	}
}

func TestCancelEmptyJobIDIsNoOp(t *testing.T) {
	queue := &mockJobQueue{}
	s := NewReminderScheduler(queue, testNotifyConfig(), nil, schedulerTestLogger())

	s.Cancel(context.Background(), "")

	if len(queue.cancelled) != 0 {
		t.Errorf("expected no cancel call for empty job ID, got %v", queue.cancelled)
	}
}
