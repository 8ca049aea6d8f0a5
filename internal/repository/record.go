package repository

import (
	"context"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
)

type ListRecordsInput struct {
	UID        string
	ScheduleID string              // empty = all schedules
	Status     domain.RecordStatus // empty = all statuses
	CursorTime *time.Time          // cursor on (created_at DESC, id DESC)
	CursorID   string
	Limit      int
}

// Finalization is the terminal update applied by the result reconciler.
type Finalization struct {
	Status              domain.RecordStatus
	CompletedAt         time.Time
	CreditUsed          int
	FailureReason       domain.FailureReason // empty on success
	ErrorDetails        []byte               // nil on success
	CanvasID            string               // concrete execution canvas, if known
	WorkflowExecutionID string
}

type RecordRepository interface {
	Create(ctx context.Context, r *domain.ExecutionRecord) (*domain.ExecutionRecord, error)
	GetByID(ctx context.Context, id string) (*domain.ExecutionRecord, error)
	List(ctx context.Context, input ListRecordsInput) ([]*domain.ExecutionRecord, error)

	// PromoteScheduled flips the schedule's queued slot (status = scheduled,
	// workflow_execution_id IS NULL) to pending and stamps triggered_at.
	// Returns ErrRecordNotFound when no such slot exists.
	PromoteScheduled(ctx context.Context, scheduleID string, triggeredAt time.Time) (*domain.ExecutionRecord, error)

	// UpsertScheduledSlot creates or refreshes the single forward-provisioned
	// scheduled record for the schedule. Idempotent per (schedule, slot).
	UpsertScheduledSlot(ctx context.Context, r *domain.ExecutionRecord) error

	// FailBySchedules moves records in the given non-terminal statuses to
	// failed with the reason. Terminal records are left untouched.
	FailBySchedules(ctx context.Context, scheduleIDs []string, statuses []domain.RecordStatus, reason domain.FailureReason, completedAt time.Time) (int, error)

	Finalize(ctx context.Context, id string, f Finalization) error

	// UpdatePriority stamps the computed dispatch priority at enqueue time.
	UpdatePriority(ctx context.Context, id string, priority int) error

	// CountBySchedules counts records for the schedules in any of the given
	// statuses — used to report in-flight work left untouched by cleanup.
	CountBySchedules(ctx context.Context, scheduleIDs []string, statuses []domain.RecordStatus) (int, error)

	// CountInFlight counts processing/running records for the account — the
	// authoritative concurrency admission input (the Redis counter is advisory).
	CountInFlight(ctx context.Context, uid string) (int, error)
}
