package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"duewatch/internal/types"
)

func coreTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// mockStore implements types.NotificationStore for testing.
type mockStore struct {
	created   []*types.Notification
	createErr error

	getResult *types.Notification
	getErr    error

	updateJobCalled  bool
	updateJobNotifID string
	updateJobID      string
	updateJobErr     error

	updateStatusCalled bool
	updateStatusID     string
	updateStatusValue  types.NotificationStatus
	updateStatusErr    error
}

func (m *mockStore) Create(_ context.Context, n *types.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, n)
	return nil
}

func (m *mockStore) GetByEntryID(_ context.Context, _ string) (*types.Notification, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.getResult, nil
}

func (m *mockStore) UpdateJobID(_ context.Context, id, jobID string) error {
	m.updateJobCalled = true
	m.updateJobNotifID = id
	m.updateJobID = jobID
	return m.updateJobErr
}

func (m *mockStore) UpdateStatus(_ context.Context, id string, status types.NotificationStatus) error {
	m.updateStatusCalled = true
	m.updateStatusID = id
	m.updateStatusValue = status
	return m.updateStatusErr
}

func (m *mockStore) DeleteCancelledBefore(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// mockScheduler implements Scheduler for testing.
type mockScheduler struct {
	scheduledAt time.Time

	scheduleCalled bool
	scheduledNotif *types.Notification
	scheduleJobID  string
	scheduleErr    error

	cancelled []string
}

func (m *mockScheduler) CalculateScheduledTime(_ *types.EntrySnapshot, _ *types.UserSnapshot) time.Time {
	return m.scheduledAt
}

func (m *mockScheduler) Schedule(_ context.Context, n *types.Notification, _ *types.EntrySnapshot) (string, error) {
	m.scheduleCalled = true
	m.scheduledNotif = n
	if m.scheduleErr != nil {
		return "", m.scheduleErr
	}
	return m.scheduleJobID, nil
}

func (m *mockScheduler) Cancel(_ context.Context, jobID string) {
	m.cancelled = append(m.cancelled, jobID)
}

type mockEntryProvider struct {
	entry *types.EntrySnapshot
	err   error
}

func (m *mockEntryProvider) GetEntrySnapshot(_ context.Context, _ string) (*types.EntrySnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entry, nil
}

type mockUserProvider struct {
	user      *types.UserSnapshot
	err       error
	gotUserID string
}

func (m *mockUserProvider) GetUserSnapshot(_ context.Context, userID string) (*types.UserSnapshot, error) {
	m.gotUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func testEntry() *types.EntrySnapshot {
	return &types.EntrySnapshot{
		ID:          "entry_1",
		UserID:      "user_1",
		Description: "Rent",
		AmountCents: 120000,
		Type:        types.EntryExpense,
		DueDate:     time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func testUser() *types.UserSnapshot {
	return &types.UserSnapshot{
		ID:                   "user_1",
		Email:                "user@example.com",
		Name:                 "Test User",
		NotificationsEnabled: true,
	}
}

// ============================================================
// Create
// ============================================================

func TestCreatePersistsThenEnqueues(t *testing.T) {
	now := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	scheduledAt := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

	store := &mockStore{}
	sched := &mockScheduler{scheduledAt: scheduledAt, scheduleJobID: "job_42"}
	svc := NewCreateService(store, nil, nil, sched, fixedClock{now: now}, coreTestLogger())

	n, err := svc.Create(context.Background(), testEntry(), testUser())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(store.created))
	}
	rec := store.created[0]

	if rec.Status != types.StatusPending {
		t.Errorf("persisted status = %s, want pending", rec.Status)
	}
	if rec.EntryID != "entry_1" || rec.UserID != "user_1" {
		t.Errorf("persisted record owner fields wrong: %+v", rec)
	}
	if !rec.ScheduledAt.Equal(scheduledAt) {
		t.Errorf("persisted scheduled_at = %v, want %v", rec.ScheduledAt, scheduledAt)
	}
	if rec.ID == "" {
		t.Error("persisted record has empty ID")
	}

	if !sched.scheduleCalled {
		t.Fatal("scheduler.Schedule was not called")
	}
	if !store.updateJobCalled || store.updateJobID != "job_42" {
		t.Errorf("job reference not attached: called=%v jobID=%q", store.updateJobCalled, store.updateJobID)
	}
	if n.JobID == nil || *n.JobID != "job_42" {
		t.Errorf("returned notification JobID = %v, want job_42", n.JobID)
	}
}

func TestCreateNotificationsDisabled(t *testing.T) {
	store := &mockStore{}
	sched := &mockScheduler{}
	svc := NewCreateService(store, nil, nil, sched, fixedClock{now: time.Now().UTC()}, coreTestLogger())

	user := testUser()
	user.NotificationsEnabled = false

	_, err := svc.Create(context.Background(), testEntry(), user)
	if !types.IsCode(err, types.ErrCodeNotificationsDisabled) {
		t.Fatalf("Create() error = %v, want %s", err, types.ErrCodeNotificationsDisabled)
	}

	if len(store.created) != 0 {
		t.Error("record was persisted for a disabled user")
	}
	if sched.scheduleCalled {
		t.Error("job was enqueued for a disabled user")
	}
}

func TestCreatePastScheduleRejected(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	// Resolved fire time falls on the previous day.
	scheduledAt := time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)

	store := &mockStore{}
	sched := &mockScheduler{scheduledAt: scheduledAt}
	svc := NewCreateService(store, nil, nil, sched, fixedClock{now: now}, coreTestLogger())

	_, err := svc.Create(context.Background(), testEntry(), testUser())
	if !types.IsCode(err, types.ErrCodePastSchedule) {
		t.Fatalf("Create() error = %v, want %s", err, types.ErrCodePastSchedule)
	}

	if len(store.created) != 0 || sched.scheduleCalled {
		t.Error("past-schedule rejection must leave no record and no job")
	}
}

func TestCreateEarlierTodayAccepted(t *testing.T) {
	// Fire time already passed today but is within the current UTC day;
	// the job fires immediately rather than being rejected.
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	scheduledAt := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)

	store := &mockStore{}
	sched := &mockScheduler{scheduledAt: scheduledAt, scheduleJobID: "job_1"}
	svc := NewCreateService(store, nil, nil, sched, fixedClock{now: now}, coreTestLogger())

	if _, err := svc.Create(context.Background(), testEntry(), testUser()); err != nil {
		t.Fatalf("Create() error = %v, want success for same-day fire time", err)
	}
}

func TestCreateStoreFailureSkipsEnqueue(t *testing.T) {
	store := &mockStore{createErr: errors.New("connection reset")}
	sched := &mockScheduler{scheduledAt: time.Now().UTC().Add(time.Hour)}
	svc := NewCreateService(store, nil, nil, sched, fixedClock{now: time.Now().UTC()}, coreTestLogger())

	_, err := svc.Create(context.Background(), testEntry(), testUser())
	if err == nil {
		t.Fatal("Create() error = nil, want store error")
	}
	if sched.scheduleCalled {
		t.Error("job was enqueued although persistence failed")
	}
}

func TestCreateQueueRejectionLeavesPendingRecord(t *testing.T) {
	queueErr := types.NewAppError(types.ErrCodeSchedulingFailure, "submitting reminder job", errors.New("redis unreachable"))

	store := &mockStore{}
	sched := &mockScheduler{scheduledAt: time.Now().UTC().Add(time.Hour), scheduleErr: queueErr}
	svc := NewCreateService(store, nil, nil, sched, fixedClock{now: time.Now().UTC()}, coreTestLogger())

	_, err := svc.Create(context.Background(), testEntry(), testUser())
	if !types.IsCode(err, types.ErrCodeSchedulingFailure) {
		t.Fatalf("Create() error = %v, want %s", err, types.ErrCodeSchedulingFailure)
	}

	// The record stays pending with no job reference.
	if len(store.created) != 1 {
		t.Fatalf("expected persisted record to remain, got %d", len(store.created))
	}
	if store.updateJobCalled {
		t.Error("job reference was attached despite queue rejection")
	}
}

func TestCreateJobReferenceFailureTolerated(t *testing.T) {
	store := &mockStore{updateJobErr: errors.New("connection reset")}
	sched := &mockScheduler{scheduledAt: time.Now().UTC().Add(time.Hour), scheduleJobID: "job_1"}
	svc := NewCreateService(store, nil, nil, sched, fixedClock{now: time.Now().UTC()}, coreTestLogger())

	n, err := svc.Create(context.Background(), testEntry(), testUser())
	if err != nil {
		t.Fatalf("Create() error = %v, want success despite job-reference failure", err)
	}
	if n.JobID != nil {
		t.Error("returned notification carries a job reference that was never persisted")
	}
}

// ============================================================
// CreateForEntry
// ============================================================

func TestCreateForEntryResolvesProviders(t *testing.T) {
	now := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)

	entries := &mockEntryProvider{entry: testEntry()}
	users := &mockUserProvider{user: testUser()}
	store := &mockStore{}
	sched := &mockScheduler{scheduledAt: now.Add(time.Hour), scheduleJobID: "job_1"}
	svc := NewCreateService(store, entries, users, sched, fixedClock{now: now}, coreTestLogger())

	n, err := svc.CreateForEntry(context.Background(), "entry_1")
	if err != nil {
		t.Fatalf("CreateForEntry() error = %v", err)
	}
	if users.gotUserID != "user_1" {
		t.Errorf("user lookup used ID %q, want the entry owner user_1", users.gotUserID)
	}
	if n.EntryID != "entry_1" {
		t.Errorf("notification EntryID = %q, want entry_1", n.EntryID)
	}
}

func TestCreateForEntryUnknownEntry(t *testing.T) {
	entries := &mockEntryProvider{err: types.NewAppError(types.ErrCodeNotFoundEntry, "entry not found", nil)}
	store := &mockStore{}
	svc := NewCreateService(store, entries, &mockUserProvider{}, &mockScheduler{}, nil, coreTestLogger())

	_, err := svc.CreateForEntry(context.Background(), "entry_missing")
	if !types.IsCode(err, types.ErrCodeNotFoundEntry) {
		t.Fatalf("CreateForEntry() error = %v, want %s", err, types.ErrCodeNotFoundEntry)
	}
	if len(store.created) != 0 {
		t.Error("record was persisted for an unknown entry")
	}
}
