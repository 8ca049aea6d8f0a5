package scheduler

import (
	"context"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
)

// Locker grants a time-bounded exclusive lock by key. Acquire returns
// (nil, false, nil) when another process holds the lock.
type Locker interface {
	Acquire(ctx context.Context, key string, lease time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// Queue is the priority job queue the execution engine consumes from.
type Queue interface {
	Enqueue(ctx context.Context, job domain.RunJob) error
	Pending(ctx context.Context) ([]domain.RunJob, error)
	Remove(ctx context.Context, ids ...string) (int, error)
	PromoteDelayed(ctx context.Context, now time.Time) (int, error)
	Depth(ctx context.Context) (int64, error)
}

// ConcurrencyCounter is the advisory per-account concurrent-execution counter.
type ConcurrencyCounter interface {
	Decrement(ctx context.Context, uid string) error
}

// PriorityService resolves an account's current dispatch priority, 1..10 with
// 1 the most urgent.
type PriorityService interface {
	ComputePriority(ctx context.Context, uid string) (int, error)
}

// QuotaResolver maps a subscription tier to its plan ceilings.
type QuotaResolver interface {
	Resolve(tier domain.SubscriptionTier) domain.Quota
}

// CreditService reports credits consumed by a finished execution.
type CreditService interface {
	CreditsUsed(ctx context.Context, uid, executionID string) (int, error)
}

// CanvasResolver reads workflow metadata off the canvas a schedule points at.
type CanvasResolver interface {
	WorkflowTitle(ctx context.Context, canvasID string) (string, error)
}

// Notifier delivers best-effort user-facing notifications. Callers log and
// swallow errors — email is explicitly non-critical.
type Notifier interface {
	SchedulesDisabled(ctx context.Context, account *domain.Account, disabled []*domain.Schedule, limit, activeCount int) error
	RunFinished(ctx context.Context, account *domain.Account, rec *domain.ExecutionRecord, nextRunAt *time.Time) error
}
