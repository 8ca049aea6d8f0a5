package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
	"github.com/aidynbek/canvas-scheduler/internal/scheduler"
)

type RecordUsecase struct {
	records  repository.RecordRepository
	priority scheduler.PriorityService
	queue    scheduler.Queue
}

func NewRecordUsecase(records repository.RecordRepository, priority scheduler.PriorityService, queue scheduler.Queue) *RecordUsecase {
	return &RecordUsecase{records: records, priority: priority, queue: queue}
}

func (u *RecordUsecase) Get(ctx context.Context, id, uid string) (*domain.ExecutionRecord, error) {
	rec, err := u.records.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	if rec.UID != uid {
		return nil, domain.ErrRecordNotFound
	}
	return rec, nil
}

type ListRecordsInput struct {
	UID        string
	ScheduleID string
	Status     domain.RecordStatus
	Cursor     string
	Limit      int
}

type ListRecordsResult struct {
	Records    []*domain.ExecutionRecord
	NextCursor *string
}

func (u *RecordUsecase) List(ctx context.Context, input ListRecordsInput) (ListRecordsResult, error) {
	limit := clampLimit(input.Limit)

	repoInput := repository.ListRecordsInput{
		UID:        input.UID,
		ScheduleID: input.ScheduleID,
		Status:     input.Status,
		Limit:      limit + 1,
	}
	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListRecordsResult{}, ErrBadCursor
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	records, err := u.records.List(ctx, repoInput)
	if err != nil {
		return ListRecordsResult{}, fmt.Errorf("list records: %w", err)
	}

	var nextCursor *string
	if len(records) == limit+1 {
		records = records[:limit]
		last := records[limit-1]
		s := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &s
	}
	return ListRecordsResult{Records: records, NextCursor: nextCursor}, nil
}

// Retry replays a finished record as a fresh attempt. The snapshot key is
// carried over so the engine replays the captured inputs instead of the
// live canvas.
func (u *RecordUsecase) Retry(ctx context.Context, id, uid string) (*domain.ExecutionRecord, error) {
	orig, err := u.Get(ctx, id, uid)
	if err != nil {
		return nil, err
	}
	if !orig.Status.Terminal() {
		return nil, fmt.Errorf("record %s is still %s: %w", id, orig.Status, domain.ErrRecordNotFinished)
	}

	now := time.Now()
	rec, err := u.records.Create(ctx, &domain.ExecutionRecord{
		ID:                 uuid.NewString(),
		ScheduleID:         orig.ScheduleID,
		UID:                orig.UID,
		SourceCanvasID:     orig.SourceCanvasID,
		WorkflowTitle:      orig.WorkflowTitle,
		Status:             domain.StatusPending,
		Priority:           domain.PriorityDefault,
		ScheduledAt:        &now,
		TriggeredAt:        &now,
		SnapshotStorageKey: orig.SnapshotStorageKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create retry record: %w", err)
	}

	priority, err := u.priority.ComputePriority(ctx, uid)
	if err != nil {
		priority = domain.PriorityDefault
	}

	scheduleID := ""
	if orig.ScheduleID != nil {
		scheduleID = *orig.ScheduleID
	}
	err = u.queue.Enqueue(ctx, domain.RunJob{
		ID:               "retry:" + rec.ID,
		ScheduleID:       scheduleID,
		CanvasID:         orig.SourceCanvasID,
		UID:              orig.UID,
		ScheduleRecordID: rec.ID,
		ScheduledAt:      now,
		Priority:         priority,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue retry: %w", err)
	}
	return rec, nil
}
