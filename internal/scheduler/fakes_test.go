package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
)

// Shared function-field fakes for the scheduler package tests. A nil field
// means the method returns zero values, so each test only wires what it
// asserts on.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScheduleRepo struct {
	create           func(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	getByID          func(ctx context.Context, id string) (*domain.Schedule, error)
	get              func(ctx context.Context, id, uid string) (*domain.Schedule, error)
	list             func(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error)
	update           func(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	softDelete       func(ctx context.Context, id, uid string) error
	listDue          func(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error)
	advanceNextRun   func(ctx context.Context, id string, prev time.Time, next *time.Time, now time.Time) (bool, error)
	disable          func(ctx context.Context, id string, config domain.ScheduleConfig) error
	countActive      func(ctx context.Context, uid string) (int, error)
	listActiveNewest func(ctx context.Context, uid, excludeID string, limit int) ([]*domain.Schedule, error)
	disableBatch     func(ctx context.Context, ids []string) (int, error)
	listByCanvas     func(ctx context.Context, canvasID, uid string) ([]*domain.Schedule, error)
	softDeleteBatch  func(ctx context.Context, ids []string, deletedAt time.Time) (int, error)
}

func (f *fakeScheduleRepo) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	if f.create == nil {
		return s, nil
	}
	return f.create(ctx, s)
}

func (f *fakeScheduleRepo) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	if f.getByID == nil {
		return nil, domain.ErrScheduleNotFound
	}
	return f.getByID(ctx, id)
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

func (f *fakeScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error) {
	if f.listDue == nil {
		return nil, nil
	}
	return f.listDue(ctx, now, limit)
}

func (f *fakeScheduleRepo) AdvanceNextRun(ctx context.Context, id string, prev time.Time, next *time.Time, now time.Time) (bool, error) {
	if f.advanceNextRun == nil {
		return true, nil
	}
	return f.advanceNextRun(ctx, id, prev, next, now)
}

func (f *fakeScheduleRepo) Disable(ctx context.Context, id string, config domain.ScheduleConfig) error {
	if f.disable == nil {
		return nil
	}
	return f.disable(ctx, id, config)
}

func (f *fakeScheduleRepo) CountActive(ctx context.Context, uid string) (int, error) {
	if f.countActive == nil {
		return 0, nil
	}
	return f.countActive(ctx, uid)
}

func (f *fakeScheduleRepo) ListActiveNewest(ctx context.Context, uid, excludeID string, limit int) ([]*domain.Schedule, error) {
	if f.listActiveNewest == nil {
		return nil, nil
	}
	return f.listActiveNewest(ctx, uid, excludeID, limit)
}

func (f *fakeScheduleRepo) DisableBatch(ctx context.Context, ids []string) (int, error) {
	if f.disableBatch == nil {
		return len(ids), nil
	}
	return f.disableBatch(ctx, ids)
}

func (f *fakeScheduleRepo) ListByCanvas(ctx context.Context, canvasID, uid string) ([]*domain.Schedule, error) {
	if f.listByCanvas == nil {
		return nil, nil
	}
	return f.listByCanvas(ctx, canvasID, uid)
}

func (f *fakeScheduleRepo) SoftDeleteBatch(ctx context.Context, ids []string, deletedAt time.Time) (int, error) {
	if f.softDeleteBatch == nil {
		return len(ids), nil
	}
	return f.softDeleteBatch(ctx, ids, deletedAt)
}

type fakeRecordRepo struct {
	create           func(ctx context.Context, r *domain.ExecutionRecord) (*domain.ExecutionRecord, error)
	getByID          func(ctx context.Context, id string) (*domain.ExecutionRecord, error)
	list             func(ctx context.Context, input repository.ListRecordsInput) ([]*domain.ExecutionRecord, error)
	promoteScheduled func(ctx context.Context, scheduleID string, triggeredAt time.Time) (*domain.ExecutionRecord, error)
	upsertSlot       func(ctx context.Context, r *domain.ExecutionRecord) error
	failBySchedules  func(ctx context.Context, scheduleIDs []string, statuses []domain.RecordStatus, reason domain.FailureReason, completedAt time.Time) (int, error)
	finalize         func(ctx context.Context, id string, f repository.Finalization) error
	updatePriority   func(ctx context.Context, id string, priority int) error
	countBySchedules func(ctx context.Context, scheduleIDs []string, statuses []domain.RecordStatus) (int, error)
	countInFlight    func(ctx context.Context, uid string) (int, error)
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

func (f *fakeRecordRepo) PromoteScheduled(ctx context.Context, scheduleID string, triggeredAt time.Time) (*domain.ExecutionRecord, error) {
	if f.promoteScheduled == nil {
		return nil, domain.ErrRecordNotFound
	}
	return f.promoteScheduled(ctx, scheduleID, triggeredAt)
}

func (f *fakeRecordRepo) UpsertScheduledSlot(ctx context.Context, r *domain.ExecutionRecord) error {
	if f.upsertSlot == nil {
		return nil
	}
	return f.upsertSlot(ctx, r)
}

func (f *fakeRecordRepo) FailBySchedules(ctx context.Context, scheduleIDs []string, statuses []domain.RecordStatus, reason domain.FailureReason, completedAt time.Time) (int, error) {
	if f.failBySchedules == nil {
		return 0, nil
	}
	return f.failBySchedules(ctx, scheduleIDs, statuses, reason, completedAt)
}

func (f *fakeRecordRepo) Finalize(ctx context.Context, id string, fin repository.Finalization) error {
	if f.finalize == nil {
		return nil
	}
	return f.finalize(ctx, id, fin)
}

func (f *fakeRecordRepo) UpdatePriority(ctx context.Context, id string, priority int) error {
	if f.updatePriority == nil {
		return nil
	}
	return f.updatePriority(ctx, id, priority)
}

func (f *fakeRecordRepo) CountBySchedules(ctx context.Context, scheduleIDs []string, statuses []domain.RecordStatus) (int, error) {
	if f.countBySchedules == nil {
		return 0, nil
	}
	return f.countBySchedules(ctx, scheduleIDs, statuses)
}

func (f *fakeRecordRepo) CountInFlight(ctx context.Context, uid string) (int, error) {
	if f.countInFlight == nil {
		return 0, nil
	}
	return f.countInFlight(ctx, uid)
}

type fakeAccountRepo struct {
	getByUID func(ctx context.Context, uid string) (*domain.Account, error)
}

func (f *fakeAccountRepo) GetByUID(ctx context.Context, uid string) (*domain.Account, error) {
	if f.getByUID == nil {
		return nil, domain.ErrAccountNotFound
	}
	return f.getByUID(ctx, uid)
}

func (f *fakeAccountRepo) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	return a, nil
}

type fakeQueue struct {
	enqueue        func(ctx context.Context, job domain.RunJob) error
	pending        func(ctx context.Context) ([]domain.RunJob, error)
	remove         func(ctx context.Context, ids ...string) (int, error)
	promoteDelayed func(ctx context.Context, now time.Time) (int, error)
	depth          func(ctx context.Context) (int64, error)
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

func (f *fakeQueue) PromoteDelayed(ctx context.Context, now time.Time) (int, error) {
	if f.promoteDelayed == nil {
		return 0, nil
	}
	return f.promoteDelayed(ctx, now)
}

func (f *fakeQueue) Depth(ctx context.Context) (int64, error) {
	if f.depth == nil {
		return 0, nil
	}
	return f.depth(ctx)
}

type fakeNotifier struct {
	schedulesDisabled func(ctx context.Context, account *domain.Account, disabled []*domain.Schedule, limit, activeCount int) error
	runFinished       func(ctx context.Context, account *domain.Account, rec *domain.ExecutionRecord, nextRunAt *time.Time) error
}

func (f *fakeNotifier) SchedulesDisabled(ctx context.Context, account *domain.Account, disabled []*domain.Schedule, limit, activeCount int) error {
	if f.schedulesDisabled == nil {
		return nil
	}
	return f.schedulesDisabled(ctx, account, disabled, limit, activeCount)
}

func (f *fakeNotifier) RunFinished(ctx context.Context, account *domain.Account, rec *domain.ExecutionRecord, nextRunAt *time.Time) error {
	if f.runFinished == nil {
		return nil
	}
	return f.runFinished(ctx, account, rec, nextRunAt)
}

type fakeCounter struct {
	decrement func(ctx context.Context, uid string) error
}

func (f *fakeCounter) Decrement(ctx context.Context, uid string) error {
	if f.decrement == nil {
		return nil
	}
	return f.decrement(ctx, uid)
}

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

type fakeLock struct {
	acquire func(ctx context.Context, key string, lease time.Duration) (func(context.Context) error, bool, error)
}

func (f *fakeLock) Acquire(ctx context.Context, key string, lease time.Duration) (func(context.Context) error, bool, error) {
	if f.acquire == nil {
		return func(context.Context) error { return nil }, true, nil
	}
	return f.acquire(ctx, key, lease)
}
