package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
	"github.com/aidynbek/canvas-scheduler/internal/scheduler"
)

// DueChecker triggers a schedule immediately when it is already due.
// Satisfied by *scheduler.Scanner.
type DueChecker interface {
	CheckSchedule(ctx context.Context, scheduleID string) error
}

type ScheduleUsecase struct {
	schedules repository.ScheduleRepository
	records   repository.RecordRepository
	canvases  scheduler.CanvasResolver
	priority  scheduler.PriorityService
	queue     scheduler.Queue
	checker   DueChecker
	logger    *slog.Logger
}

func NewScheduleUsecase(
	schedules repository.ScheduleRepository,
	records repository.RecordRepository,
	canvases scheduler.CanvasResolver,
	priority scheduler.PriorityService,
	queue scheduler.Queue,
	checker DueChecker,
	logger *slog.Logger,
) *ScheduleUsecase {
	return &ScheduleUsecase{
		schedules: schedules,
		records:   records,
		canvases:  canvases,
		priority:  priority,
		queue:     queue,
		checker:   checker,
		logger:    logger.With("component", "schedule_usecase"),
	}
}

type CreateScheduleInput struct {
	UID      string
	CanvasID string
	CronExpr string
	Timezone string
	Config   domain.ScheduleConfig
}

func (u *ScheduleUsecase) Create(ctx context.Context, input CreateScheduleInput) (*domain.Schedule, error) {
	now := time.Now()
	next, err := scheduler.NextRun(input.CronExpr, input.Timezone, now)
	if err != nil {
		return nil, err // wraps domain.ErrInvalidCronExpr
	}

	if input.Config == nil {
		input.Config = domain.ScheduleConfig{}
	}

	s, err := u.schedules.Create(ctx, &domain.Schedule{
		CanvasID:  input.CanvasID,
		UID:       input.UID,
		CronExpr:  input.CronExpr,
		Timezone:  input.Timezone,
		Enabled:   true,
		NextRunAt: &next,
		Config:    input.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	// Fire immediately if the first slot is already due, so the owner does
	// not wait a full scan interval.
	if err := u.checker.CheckSchedule(ctx, s.ID); err != nil {
		u.logger.Warn("on-demand check after create", "schedule_id", s.ID, "error", err)
	}
	return s, nil
}

type UpdateScheduleInput struct {
	ID       string
	UID      string
	CronExpr string
	Timezone string
	Enabled  bool
	Config   domain.ScheduleConfig
}

func (u *ScheduleUsecase) Update(ctx context.Context, input UpdateScheduleInput) (*domain.Schedule, error) {
	s, err := u.schedules.Get(ctx, input.ID, input.UID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	s.CronExpr = input.CronExpr
	s.Timezone = input.Timezone
	s.Enabled = input.Enabled
	if input.Config != nil {
		s.Config = input.Config
	}

	if input.Enabled {
		next, err := scheduler.NextRun(input.CronExpr, input.Timezone, time.Now())
		if err != nil {
			return nil, err
		}
		s.NextRunAt = &next
	} else {
		// Disabled schedules must never keep a pending fire time.
		s.NextRunAt = nil
	}

	updated, err := u.schedules.Update(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	if !input.Enabled {
		u.failOpenWork(ctx, s.ID, domain.FailureScheduleDisabled)
	} else if err := u.checker.CheckSchedule(ctx, s.ID); err != nil {
		u.logger.Warn("on-demand check after update", "schedule_id", s.ID, "error", err)
	}
	return updated, nil
}

func (u *ScheduleUsecase) Get(ctx context.Context, id, uid string) (*domain.Schedule, error) {
	s, err := u.schedules.Get(ctx, id, uid)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

func (u *ScheduleUsecase) Delete(ctx context.Context, id, uid string) error {
	if err := u.schedules.SoftDelete(ctx, id, uid); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	u.failOpenWork(ctx, id, domain.FailureScheduleDeleted)
	return nil
}

// failOpenWork fails the schedule's queued records and purges its pending
// queue jobs after a user-initiated disable or delete. Best-effort.
func (u *ScheduleUsecase) failOpenWork(ctx context.Context, scheduleID string, reason domain.FailureReason) {
	_, err := u.records.FailBySchedules(ctx, []string{scheduleID},
		[]domain.RecordStatus{domain.StatusPending, domain.StatusScheduled},
		reason, time.Now())
	if err != nil {
		u.logger.Error("fail open records", "schedule_id", scheduleID, "error", err)
	}

	pending, err := u.queue.Pending(ctx)
	if err != nil {
		u.logger.Error("list pending jobs", "error", err)
		return
	}
	var jobIDs []string
	for _, job := range pending {
		if job.ScheduleID == scheduleID {
			jobIDs = append(jobIDs, job.ID)
		}
	}
	if len(jobIDs) > 0 {
		if _, err := u.queue.Remove(ctx, jobIDs...); err != nil {
			u.logger.Error("purge queued jobs", "schedule_id", scheduleID, "error", err)
		}
	}
}

// Trigger starts an ad-hoc run of the schedule right now, bypassing the cron
// cursor. The record is created as pending and dispatched as a manual run.
func (u *ScheduleUsecase) Trigger(ctx context.Context, id, uid string) (*domain.ExecutionRecord, error) {
	s, err := u.schedules.Get(ctx, id, uid)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	title, err := u.canvases.WorkflowTitle(ctx, s.CanvasID)
	if err != nil {
		u.logger.Warn("resolve workflow title", "canvas_id", s.CanvasID, "error", err)
		title = "Untitled workflow"
	}

	now := time.Now()
	scheduleID := s.ID
	rec, err := u.records.Create(ctx, &domain.ExecutionRecord{
		ID:             uuid.NewString(),
		ScheduleID:     &scheduleID,
		UID:            s.UID,
		SourceCanvasID: s.CanvasID,
		WorkflowTitle:  title,
		Status:         domain.StatusPending,
		Priority:       domain.PriorityDefault,
		ScheduledAt:    &now,
		TriggeredAt:    &now,
	})
	if err != nil {
		return nil, fmt.Errorf("create manual record: %w", err)
	}

	priority, err := u.priority.ComputePriority(ctx, s.UID)
	if err != nil {
		priority = domain.PriorityDefault
	}

	err = u.queue.Enqueue(ctx, domain.RunJob{
		ID:               "manual:" + rec.ID,
		ScheduleID:       s.ID,
		CanvasID:         s.CanvasID,
		UID:              s.UID,
		ScheduleRecordID: rec.ID,
		ScheduledAt:      now,
		Priority:         priority,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue manual run: %w", err)
	}
	return rec, nil
}

type ListSchedulesInput struct {
	UID    string
	Cursor string
	Limit  int
}

type ListSchedulesResult struct {
	Schedules  []*domain.Schedule
	NextCursor *string
}

type cursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

func decodeCursor(s string) (*time.Time, string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, "", fmt.Errorf("unmarshal cursor: %w", err)
	}
	return &c.CreatedAt, c.ID, nil
}

func encodeCursor(createdAt time.Time, id string) string {
	b, _ := json.Marshal(cursor{CreatedAt: createdAt, ID: id})
	return base64.RawURLEncoding.EncodeToString(b)
}

var ErrBadCursor = errors.New("invalid pagination cursor")

func (u *ScheduleUsecase) List(ctx context.Context, input ListSchedulesInput) (ListSchedulesResult, error) {
	limit := clampLimit(input.Limit)

	repoInput := repository.ListSchedulesInput{
		UID:   input.UID,
		Limit: limit + 1,
	}
	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListSchedulesResult{}, ErrBadCursor
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	schedules, err := u.schedules.List(ctx, repoInput)
	if err != nil {
		return ListSchedulesResult{}, fmt.Errorf("list schedules: %w", err)
	}

	var nextCursor *string
	if len(schedules) == limit+1 {
		schedules = schedules[:limit]
		// Cursor points at the last returned row; the repo's strict
		// comparison resumes right after it.
		last := schedules[limit-1]
		s := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &s
	}
	return ListSchedulesResult{Schedules: schedules, NextCursor: nextCursor}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
