package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScheduleRepo struct {
	create     func(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	get        func(ctx context.Context, id, uid string) (*domain.Schedule, error)
	list       func(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error)
	update     func(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	softDelete func(ctx context.Context, id, uid string) error
}

func (f *fakeScheduleRepo) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	if f.create == nil {
		s.ID = "sched-created"
		return s, nil
	}
	return f.create(ctx, s)
}

func (f *fakeScheduleRepo) GetByID(_ context.Context, _ string) (*domain.Schedule, error) {
	return nil, domain.ErrScheduleNotFound
}

func (f *fakeScheduleRepo) Get(ctx context.Context, id, uid string) (*domain.Schedule, error) {
	if f.get == nil {
		return nil, domain.ErrScheduleNotFound
	}
	return f.get(ctx, id, uid)
}

func (f *fakeScheduleRepo) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	if f.list == nil {
		return nil, nil
	}
	return f.list(ctx, input)
}

func (f *fakeScheduleRepo) Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	if f.update == nil {
		return s, nil
	}
	return f.update(ctx, s)
}

func (f *fakeScheduleRepo) SoftDelete(ctx context.Context, id, uid string) error {
	if f.softDelete == nil {
		return nil
	}
	return f.softDelete(ctx, id, uid)
}

func (f *fakeScheduleRepo) ListDue(_ context.Context, _ time.Time, _ int) ([]*domain.Schedule, error) {
	return nil, nil
}

func (f *fakeScheduleRepo) AdvanceNextRun(_ context.Context, _ string, _ time.Time, _ *time.Time, _ time.Time) (bool, error) {
	return false, nil
}

func (f *fakeScheduleRepo) Disable(_ context.Context, _ string, _ domain.ScheduleConfig) error {
	return nil
}

func (f *fakeScheduleRepo) CountActive(_ context.Context, _ string) (int, error) { return 0, nil }

func (f *fakeScheduleRepo) ListActiveNewest(_ context.Context, _, _ string, _ int) ([]*domain.Schedule, error) {
	return nil, nil
}

func (f *fakeScheduleRepo) DisableBatch(_ context.Context, ids []string) (int, error) {
	return len(ids), nil
}

func (f *fakeScheduleRepo) ListByCanvas(_ context.Context, _, _ string) ([]*domain.Schedule, error) {
	return nil, nil
}

func (f *fakeScheduleRepo) SoftDeleteBatch(_ context.Context, ids []string, _ time.Time) (int, error) {
	return len(ids), nil
}

type fakeRecordRepo struct {
	create          func(ctx context.Context, r *domain.ExecutionRecord) (*domain.ExecutionRecord, error)
	getByID         func(ctx context.Context, id string) (*domain.ExecutionRecord, error)
	list            func(ctx context.Context, input repository.ListRecordsInput) ([]*domain.ExecutionRecord, error)
	failBySchedules func(ctx context.Context, scheduleIDs []string, statuses []domain.RecordStatus, reason domain.FailureReason, completedAt time.Time) (int, error)
}

func (f *fakeRecordRepo) Create(ctx context.Context, r *domain.ExecutionRecord) (*domain.ExecutionRecord, error) {
	if f.create == nil {
		return r, nil
	}
	return f.create(ctx, r)
}

func (f *fakeRecordRepo) GetByID(ctx context.Context, id string) (*domain.ExecutionRecord, error) {
	if f.getByID == nil {
		return nil, domain.ErrRecordNotFound
	}
	return f.getByID(ctx, id)
}

func (f *fakeRecordRepo) List(ctx context.Context, input repository.ListRecordsInput) ([]*domain.ExecutionRecord, error) {
	if f.list == nil {
		return nil, nil
	}
	return f.list(ctx, input)
}

func (f *fakeRecordRepo) PromoteScheduled(_ context.Context, _ string, _ time.Time) (*domain.ExecutionRecord, error) {
	return nil, domain.ErrRecordNotFound
}

func (f *fakeRecordRepo) UpsertScheduledSlot(_ context.Context, _ *domain.ExecutionRecord) error {
	return nil
}

func (f *fakeRecordRepo) FailBySchedules(ctx context.Context, scheduleIDs []string, statuses []domain.RecordStatus, reason domain.FailureReason, completedAt time.Time) (int, error) {
	if f.failBySchedules == nil {
		return 0, nil
	}
	return f.failBySchedules(ctx, scheduleIDs, statuses, reason, completedAt)
}

func (f *fakeRecordRepo) Finalize(_ context.Context, _ string, _ repository.Finalization) error {
	return nil
}

func (f *fakeRecordRepo) UpdatePriority(_ context.Context, _ string, _ int) error { return nil }

func (f *fakeRecordRepo) CountBySchedules(_ context.Context, _ []string, _ []domain.RecordStatus) (int, error) {
	return 0, nil
}

func (f *fakeRecordRepo) CountInFlight(_ context.Context, _ string) (int, error) { return 0, nil }

type fakeQueue struct {
	enqueue func(ctx context.Context, job domain.RunJob) error
	pending func(ctx context.Context) ([]domain.RunJob, error)
	remove  func(ctx context.Context, ids ...string) (int, error)
}

func (f *fakeQueue) Enqueue(ctx context.Context, job domain.RunJob) error {
	if f.enqueue == nil {
		return nil
	}
	return f.enqueue(ctx, job)
}

func (f *fakeQueue) Pending(ctx context.Context) ([]domain.RunJob, error) {
	if f.pending == nil {
		return nil, nil
	}
	return f.pending(ctx)
}

func (f *fakeQueue) Remove(ctx context.Context, ids ...string) (int, error) {
	if f.remove == nil {
		return len(ids), nil
	}
	return f.remove(ctx, ids...)
}

func (f *fakeQueue) PromoteDelayed(_ context.Context, _ time.Time) (int, error) { return 0, nil }

func (f *fakeQueue) Depth(_ context.Context) (int64, error) { return 0, nil }

type fakeCanvas struct {
	workflowTitle func(ctx context.Context, canvasID string) (string, error)
}

func (f *fakeCanvas) WorkflowTitle(ctx context.Context, canvasID string) (string, error) {
	if f.workflowTitle == nil {
		return "Test workflow", nil
	}
	return f.workflowTitle(ctx, canvasID)
}

type fakePriority struct {
	compute func(ctx context.Context, uid string) (int, error)
}

func (f *fakePriority) ComputePriority(ctx context.Context, uid string) (int, error) {
	if f.compute == nil {
		return domain.PriorityDefault, nil
	}
	return f.compute(ctx, uid)
}

type fakeChecker struct {
	check func(ctx context.Context, scheduleID string) error
}

func (f *fakeChecker) CheckSchedule(ctx context.Context, scheduleID string) error {
	if f.check == nil {
		return nil
	}
	return f.check(ctx, scheduleID)
}
