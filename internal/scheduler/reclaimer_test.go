package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/scheduler"
)

func canvasSchedules() []*domain.Schedule {
	return []*domain.Schedule{
		{ID: "sched-1", CanvasID: "canvas-1", UID: "user-1", Enabled: true},
		{ID: "sched-2", CanvasID: "canvas-1", UID: "user-1", Enabled: true},
	}
}

func TestHandleCanvasDeleted_SoftDeletesAndFailsQueuedWork(t *testing.T) {
	var deletedIDs []string
	schedules := &fakeScheduleRepo{
		listByCanvas: func(_ context.Context, canvasID, uid string) ([]*domain.Schedule, error) {
			if canvasID != "canvas-1" || uid != "user-1" {
				t.Errorf("looked up canvas %q uid %q", canvasID, uid)
			}
			return canvasSchedules(), nil
		},
		softDeleteBatch: func(_ context.Context, ids []string, _ time.Time) (int, error) {
			deletedIDs = ids
			return len(ids), nil
		},
	}

	var failedStatuses []domain.RecordStatus
	var failedReason domain.FailureReason
	records := &fakeRecordRepo{
		failBySchedules: func(_ context.Context, _ []string, statuses []domain.RecordStatus, reason domain.FailureReason, _ time.Time) (int, error) {
			failedStatuses = statuses
			failedReason = reason
			return 3, nil
		},
	}

	var removed []string
	queue := &fakeQueue{
		pending: func(_ context.Context) ([]domain.RunJob, error) {
			return []domain.RunJob{
				{ID: "job-1", ScheduleID: "sched-1"},
				{ID: "job-2", ScheduleID: "sched-other"},
			}, nil
		},
		remove: func(_ context.Context, ids ...string) (int, error) {
			removed = ids
			return len(ids), nil
		},
	}

	r := scheduler.NewReclaimer(schedules, records, queue, testLogger())
	r.HandleCanvasDeleted(context.Background(), domain.CanvasDeletedEvent{CanvasID: "canvas-1", UID: "user-1"})

	if len(deletedIDs) != 2 {
		t.Errorf("soft-deleted %v, want both schedules", deletedIDs)
	}
	if failedReason != domain.FailureCanvasDeleted {
		t.Errorf("failure reason = %s, want %s", failedReason, domain.FailureCanvasDeleted)
	}
	for _, st := range failedStatuses {
		if st == domain.StatusProcessing || st == domain.StatusRunning {
			t.Errorf("in-flight status %s must be left for the reconciler", st)
		}
	}
	if len(removed) != 1 || removed[0] != "job-1" {
		t.Errorf("purged %v, want only this canvas's job", removed)
	}
}

func TestHandleCanvasDeleted_NoSchedules_IsNoop(t *testing.T) {
	schedules := &fakeScheduleRepo{
		listByCanvas: func(_ context.Context, _, _ string) ([]*domain.Schedule, error) { return nil, nil },
		softDeleteBatch: func(_ context.Context, ids []string, _ time.Time) (int, error) {
			t.Errorf("soft-deleted %v for a canvas without schedules", ids)
			return 0, nil
		},
	}

	r := scheduler.NewReclaimer(schedules, &fakeRecordRepo{}, &fakeQueue{}, testLogger())
	r.HandleCanvasDeleted(context.Background(), domain.CanvasDeletedEvent{CanvasID: "canvas-empty", UID: "user-1"})
}

func TestHandleCanvasDeleted_SoftDeleteError_StopsBeforeFailingRecords(t *testing.T) {
	schedules := &fakeScheduleRepo{
		listByCanvas: func(_ context.Context, _, _ string) ([]*domain.Schedule, error) {
			return canvasSchedules(), nil
		},
		softDeleteBatch: func(_ context.Context, _ []string, _ time.Time) (int, error) {
			return 0, context.DeadlineExceeded
		},
	}
	records := &fakeRecordRepo{
		failBySchedules: func(_ context.Context, _ []string, _ []domain.RecordStatus, _ domain.FailureReason, _ time.Time) (int, error) {
			t.Error("failed records although schedules were not deleted")
			return 0, nil
		},
	}

	r := scheduler.NewReclaimer(schedules, records, &fakeQueue{}, testLogger())
	r.HandleCanvasDeleted(context.Background(), domain.CanvasDeletedEvent{CanvasID: "canvas-1", UID: "user-1"})
}
