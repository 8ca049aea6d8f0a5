package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
	"github.com/aidynbek/canvas-scheduler/internal/usecase"
)

func newScheduleUsecase(schedules *fakeScheduleRepo, records *fakeRecordRepo, queue *fakeQueue, checker *fakeChecker) *usecase.ScheduleUsecase {
	return usecase.NewScheduleUsecase(schedules, records, &fakeCanvas{}, &fakePriority{}, queue, checker, testLogger())
}

func TestCreate_ComputesInitialNextRun(t *testing.T) {
	var created *domain.Schedule
	schedules := &fakeScheduleRepo{
		create: func(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
			s.ID = "sched-1"
			created = s
			return s, nil
		},
	}
	var checked string
	checker := &fakeChecker{check: func(_ context.Context, id string) error {
		checked = id
		return nil
	}}

	u := newScheduleUsecase(schedules, &fakeRecordRepo{}, &fakeQueue{}, checker)
	s, err := u.Create(context.Background(), usecase.CreateScheduleInput{
		UID:      "user-1",
		CanvasID: "canvas-1",
		CronExpr: "*/5 * * * *",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !created.Enabled {
		t.Error("new schedule should be enabled")
	}
	if created.NextRunAt == nil || !created.NextRunAt.After(time.Now()) {
		t.Errorf("next run %v should be computed and in the future", created.NextRunAt)
	}
	if checked != s.ID {
		t.Errorf("on-demand check ran for %q, want the new schedule %q", checked, s.ID)
	}
}

func TestCreate_InvalidCron_Rejected(t *testing.T) {
	schedules := &fakeScheduleRepo{
		create: func(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
			t.Error("persisted a schedule with an invalid cron expression")
			return s, nil
		},
	}

	u := newScheduleUsecase(schedules, &fakeRecordRepo{}, &fakeQueue{}, &fakeChecker{})
	_, err := u.Create(context.Background(), usecase.CreateScheduleInput{
		UID:      "user-1",
		CanvasID: "canvas-1",
		CronExpr: "every day at nine",
	})
	if !errors.Is(err, domain.ErrInvalidCronExpr) {
		t.Errorf("err = %v, want ErrInvalidCronExpr", err)
	}
}

func TestUpdate_Disable_ClearsNextRunAndFailsOpenWork(t *testing.T) {
	next := time.Now().Add(time.Hour)
	existing := &domain.Schedule{ID: "sched-1", UID: "user-1", CronExpr: "*/5 * * * *", Enabled: true, NextRunAt: &next}

	var updated *domain.Schedule
	schedules := &fakeScheduleRepo{
		get: func(_ context.Context, _, _ string) (*domain.Schedule, error) { return existing, nil },
		update: func(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
			updated = s
			return s, nil
		},
	}

	var failedReason domain.FailureReason
	var failedStatuses []domain.RecordStatus
	records := &fakeRecordRepo{
		failBySchedules: func(_ context.Context, _ []string, statuses []domain.RecordStatus, reason domain.FailureReason, _ time.Time) (int, error) {
			failedReason = reason
			failedStatuses = statuses
			return 1, nil
		},
	}

	var removed []string
	queue := &fakeQueue{
		pending: func(_ context.Context) ([]domain.RunJob, error) {
			return []domain.RunJob{{ID: "job-1", ScheduleID: "sched-1"}, {ID: "job-2", ScheduleID: "sched-2"}}, nil
		},
		remove: func(_ context.Context, ids ...string) (int, error) {
			removed = ids
			return len(ids), nil
		},
	}

	u := newScheduleUsecase(schedules, records, queue, &fakeChecker{})
	_, err := u.Update(context.Background(), usecase.UpdateScheduleInput{
		ID: "sched-1", UID: "user-1", CronExpr: "*/5 * * * *", Enabled: false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.NextRunAt != nil {
		t.Errorf("disabled schedule keeps next_run_at %v", updated.NextRunAt)
	}
	if failedReason != domain.FailureScheduleDisabled {
		t.Errorf("reason = %s, want %s", failedReason, domain.FailureScheduleDisabled)
	}
	for _, st := range failedStatuses {
		if st != domain.StatusPending && st != domain.StatusScheduled {
			t.Errorf("status %s should be left alone on disable", st)
		}
	}
	if len(removed) != 1 || removed[0] != "job-1" {
		t.Errorf("purged %v, want only this schedule's job", removed)
	}
}

func TestUpdate_Enable_RecomputesNextRunAndChecks(t *testing.T) {
	existing := &domain.Schedule{ID: "sched-1", UID: "user-1", CronExpr: "0 9 * * *", Enabled: false}

	var updated *domain.Schedule
	schedules := &fakeScheduleRepo{
		get: func(_ context.Context, _, _ string) (*domain.Schedule, error) { return existing, nil },
		update: func(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
			updated = s
			return s, nil
		},
	}
	var checked bool
	checker := &fakeChecker{check: func(_ context.Context, _ string) error {
		checked = true
		return nil
	}}

	u := newScheduleUsecase(schedules, &fakeRecordRepo{}, &fakeQueue{}, checker)
	_, err := u.Update(context.Background(), usecase.UpdateScheduleInput{
		ID: "sched-1", UID: "user-1", CronExpr: "*/10 * * * *", Enabled: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.NextRunAt == nil || !updated.NextRunAt.After(time.Now()) {
		t.Errorf("next run %v should be recomputed on enable", updated.NextRunAt)
	}
	if updated.CronExpr != "*/10 * * * *" {
		t.Errorf("cron expr = %q, want the new expression", updated.CronExpr)
	}
	if !checked {
		t.Error("on-demand check skipped after enable")
	}
}

func TestUpdate_NotOwned_ReturnsNotFound(t *testing.T) {
	u := newScheduleUsecase(&fakeScheduleRepo{}, &fakeRecordRepo{}, &fakeQueue{}, &fakeChecker{})
	_, err := u.Update(context.Background(), usecase.UpdateScheduleInput{
		ID: "sched-1", UID: "intruder", CronExpr: "* * * * *", Enabled: true,
	})
	if !errors.Is(err, domain.ErrScheduleNotFound) {
		t.Errorf("err = %v, want ErrScheduleNotFound", err)
	}
}

func TestDelete_FailsOpenWorkAsDeleted(t *testing.T) {
	var failedReason domain.FailureReason
	records := &fakeRecordRepo{
		failBySchedules: func(_ context.Context, ids []string, _ []domain.RecordStatus, reason domain.FailureReason, _ time.Time) (int, error) {
			if len(ids) != 1 || ids[0] != "sched-1" {
				t.Errorf("failed records for %v, want sched-1", ids)
			}
			failedReason = reason
			return 1, nil
		},
	}

	u := newScheduleUsecase(&fakeScheduleRepo{}, records, &fakeQueue{}, &fakeChecker{})
	if err := u.Delete(context.Background(), "sched-1", "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failedReason != domain.FailureScheduleDeleted {
		t.Errorf("reason = %s, want %s", failedReason, domain.FailureScheduleDeleted)
	}
}

func TestTrigger_EnqueuesManualRun(t *testing.T) {
	schedules := &fakeScheduleRepo{
		get: func(_ context.Context, id, uid string) (*domain.Schedule, error) {
			return &domain.Schedule{ID: id, UID: uid, CanvasID: "canvas-1"}, nil
		},
	}

	var createdRec *domain.ExecutionRecord
	records := &fakeRecordRepo{
		create: func(_ context.Context, r *domain.ExecutionRecord) (*domain.ExecutionRecord, error) {
			createdRec = r
			return r, nil
		},
	}
	var job domain.RunJob
	queue := &fakeQueue{enqueue: func(_ context.Context, j domain.RunJob) error { job = j; return nil }}

	u := newScheduleUsecase(schedules, records, queue, &fakeChecker{})
	rec, err := u.Trigger(context.Background(), "sched-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if createdRec.Status != domain.StatusPending {
		t.Errorf("record status = %s, want pending", createdRec.Status)
	}
	if job.ID != "manual:"+rec.ID {
		t.Errorf("job id = %q, want manual:%s", job.ID, rec.ID)
	}
	if job.ScheduleRecordID != rec.ID {
		t.Errorf("job record id = %q, want %q", job.ScheduleRecordID, rec.ID)
	}
}

func TestList_PaginatesWithOpaqueCursor(t *testing.T) {
	all := make([]*domain.Schedule, 0, 25)
	base := time.Now()
	for i := 0; i < 25; i++ {
		all = append(all, &domain.Schedule{
			ID:        fmt.Sprintf("sched-%02d", i),
			UID:       "user-1",
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}

	schedules := &fakeScheduleRepo{
		// Mimics the SQL predicate: rows strictly after the cursor row in
		// (created_at DESC, id DESC) order.
		list: func(_ context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
			start := 0
			if input.CursorID != "" {
				for i, s := range all {
					if s.ID == input.CursorID {
						start = i + 1
						break
					}
				}
			}
			end := start + input.Limit
			if end > len(all) {
				end = len(all)
			}
			return all[start:end], nil
		},
	}

	u := newScheduleUsecase(schedules, &fakeRecordRepo{}, &fakeQueue{}, &fakeChecker{})

	first, err := u.List(context.Background(), usecase.ListSchedulesInput{UID: "user-1", Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Schedules) != 20 {
		t.Fatalf("first page has %d schedules, want 20", len(first.Schedules))
	}
	if first.NextCursor == nil {
		t.Fatal("first page missing next cursor")
	}
	if strings.Contains(*first.NextCursor, "sched-") {
		t.Errorf("cursor %q leaks internals, want an opaque token", *first.NextCursor)
	}

	second, err := u.List(context.Background(), usecase.ListSchedulesInput{UID: "user-1", Limit: 20, Cursor: *first.NextCursor})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Schedules) != 5 {
		t.Errorf("second page has %d schedules, want the remaining 5", len(second.Schedules))
	}
	if second.NextCursor != nil {
		t.Errorf("last page has next cursor %q", *second.NextCursor)
	}
	if second.Schedules[0].ID != "sched-20" {
		t.Errorf("second page starts at %q, want sched-20", second.Schedules[0].ID)
	}
}

func TestList_BadCursor_Rejected(t *testing.T) {
	u := newScheduleUsecase(&fakeScheduleRepo{}, &fakeRecordRepo{}, &fakeQueue{}, &fakeChecker{})
	_, err := u.List(context.Background(), usecase.ListSchedulesInput{UID: "user-1", Cursor: "!!not-base64!!"})
	if !errors.Is(err, usecase.ErrBadCursor) {
		t.Errorf("err = %v, want ErrBadCursor", err)
	}
}
