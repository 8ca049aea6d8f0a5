package repository

import (
	"context"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
)

type ListSchedulesInput struct {
	UID        string
	CursorTime *time.Time // cursor on (created_at DESC, id DESC)
	CursorID   string
	Limit      int
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	// GetByID loads a schedule regardless of owner — used by background
	// components that re-read fresh state before acting.
	GetByID(ctx context.Context, id string) (*domain.Schedule, error)
	Get(ctx context.Context, id, uid string) (*domain.Schedule, error)
	List(ctx context.Context, input ListSchedulesInput) ([]*domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	SoftDelete(ctx context.Context, id, uid string) error

	// ListDue returns enabled, non-deleted schedules with next_run_at <= now,
	// ordered by next_run_at ascending, at most limit rows.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error)

	// AdvanceNextRun performs the compare-and-swap advance: last_run_at = now,
	// next_run_at = next, conditioned on next_run_at still equalling prev.
	// Returns false when another process already advanced the schedule.
	AdvanceNextRun(ctx context.Context, id string, prev time.Time, next *time.Time, now time.Time) (bool, error)

	// Disable turns the schedule off (enabled = false, next_run_at = NULL) and
	// replaces its config — used for the invalid-cron auto-disable audit trail.
	Disable(ctx context.Context, id string, config domain.ScheduleConfig) error

	CountActive(ctx context.Context, uid string) (int, error)
	// ListActiveNewest returns up to limit enabled, non-deleted schedules for
	// the account, newest-created first, excluding excludeID.
	ListActiveNewest(ctx context.Context, uid, excludeID string, limit int) ([]*domain.Schedule, error)
	DisableBatch(ctx context.Context, ids []string) (int, error)

	ListByCanvas(ctx context.Context, canvasID, uid string) ([]*domain.Schedule, error)
	// SoftDeleteBatch disables and soft-deletes in one statement.
	SoftDeleteBatch(ctx context.Context, ids []string, deletedAt time.Time) (int, error)
}
