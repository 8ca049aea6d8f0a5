package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
)

// Reclaimer reacts to canvas deletion by cascading disablement to dependent
// schedules and their not-yet-started records. Runs already processing or
// running are deliberately left alone — the reconciler finalizes them, and
// the soft-deleted schedule can never re-trigger past the freshness re-check.
// Everything here is best-effort cleanup: failures are logged, never thrown.
type Reclaimer struct {
	schedules repository.ScheduleRepository
	records   repository.RecordRepository
	queue     Queue
	logger    *slog.Logger

	now func() time.Time
}

func NewReclaimer(
	schedules repository.ScheduleRepository,
	records repository.RecordRepository,
	queue Queue,
	logger *slog.Logger,
) *Reclaimer {
	return &Reclaimer{
		schedules: schedules,
		records:   records,
		queue:     queue,
		logger:    logger.With("component", "canvas_reclaimer"),
		now:       time.Now,
	}
}

func (r *Reclaimer) HandleCanvasDeleted(ctx context.Context, ev domain.CanvasDeletedEvent) {
	schedules, err := r.schedules.ListByCanvas(ctx, ev.CanvasID, ev.UID)
	if err != nil {
		r.logger.Error("list schedules for deleted canvas", "canvas_id", ev.CanvasID, "error", err)
		return
	}
	if len(schedules) == 0 {
		return
	}

	ids := make([]string, len(schedules))
	for i, s := range schedules {
		ids[i] = s.ID
	}
	now := r.now()

	deleted, err := r.schedules.SoftDeleteBatch(ctx, ids, now)
	if err != nil {
		r.logger.Error("soft-delete schedules for deleted canvas", "canvas_id", ev.CanvasID, "error", err)
		return
	}

	// Only queued work is failed; processing/running records keep their
	// status until the engine reports back.
	failed, err := r.records.FailBySchedules(ctx, ids,
		[]domain.RecordStatus{domain.StatusPending, domain.StatusScheduled},
		domain.FailureCanvasDeleted, now)
	if err != nil {
		r.logger.Error("fail records for deleted canvas", "canvas_id", ev.CanvasID, "error", err)
	}

	inFlight, err := r.records.CountBySchedules(ctx, ids,
		[]domain.RecordStatus{domain.StatusProcessing, domain.StatusRunning})
	if err != nil {
		r.logger.Warn("count in-flight records for deleted canvas", "canvas_id", ev.CanvasID, "error", err)
		inFlight = 0
	}

	purged := r.purgeQueued(ctx, ids)

	r.logger.Info("canvas deletion reclaimed",
		"canvas_id", ev.CanvasID,
		"uid", ev.UID,
		"schedules_deleted", deleted,
		"records_failed", failed,
		"jobs_purged", purged,
		"in_flight_untouched", inFlight,
	)
}

func (r *Reclaimer) purgeQueued(ctx context.Context, scheduleIDs []string) int {
	pending, err := r.queue.Pending(ctx)
	if err != nil {
		r.logger.Error("list pending queue jobs", "error", err)
		return 0
	}

	targets := make(map[string]struct{}, len(scheduleIDs))
	for _, id := range scheduleIDs {
		targets[id] = struct{}{}
	}

	var jobIDs []string
	for _, job := range pending {
		if _, ok := targets[job.ScheduleID]; ok {
			jobIDs = append(jobIDs, job.ID)
		}
	}
	if len(jobIDs) == 0 {
		return 0
	}

	removed, err := r.queue.Remove(ctx, jobIDs...)
	if err != nil {
		r.logger.Error("purge queued jobs", "error", err)
		return 0
	}
	return removed
}
