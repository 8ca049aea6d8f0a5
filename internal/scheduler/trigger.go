package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/metrics"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
)

// Pipeline fires one due schedule: it re-reads fresh state, computes the next
// run, enforces the account quota, advances the scheduling cursor with a
// compare-and-swap, materializes the execution record, forward-provisions the
// next slot, and enqueues the run.
type Pipeline struct {
	schedules repository.ScheduleRepository
	records   repository.RecordRepository
	canvases  CanvasResolver
	queue     Queue
	priority  PriorityService
	enforcer  *Enforcer
	logger    *slog.Logger

	now func() time.Time
}

func NewPipeline(
	schedules repository.ScheduleRepository,
	records repository.RecordRepository,
	canvases CanvasResolver,
	queue Queue,
	priority PriorityService,
	enforcer *Enforcer,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		schedules: schedules,
		records:   records,
		canvases:  canvases,
		queue:     queue,
		priority:  priority,
		enforcer:  enforcer,
		logger:    logger.With("component", "trigger_pipeline"),
		now:       time.Now,
	}
}

// Trigger runs the pipeline for one schedule. A nil return means the pipeline
// finished or cleanly short-circuited (not due anymore, lost the CAS race,
// auto-disabled). A non-nil error leaves the schedule due, to be retried on
// the next scan.
func (p *Pipeline) Trigger(ctx context.Context, scheduleID string) error {
	now := p.now()

	// Re-read fresh state: the row handed to us by the scanner may be stale,
	// and an on-demand check can race a scheduled tick.
	s, err := p.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			return nil
		}
		return fmt.Errorf("reload schedule: %w", err)
	}
	if !s.Due(now) {
		p.logger.Debug("schedule no longer due, skipping", "schedule_id", s.ID)
		return nil
	}
	firedAt := *s.NextRunAt

	next, err := NextRun(s.CronExpr, s.Timezone, now)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCronExpr) {
			p.autoDisable(ctx, s, err, now)
			return nil // fatal for the schedule, not for the batch
		}
		return fmt.Errorf("compute next run: %w", err)
	}

	if err := p.enforcer.Enforce(ctx, s); err != nil {
		return fmt.Errorf("enforce quota: %w", err)
	}

	advanced, err := p.schedules.AdvanceNextRun(ctx, s.ID, firedAt, &next, now)
	if err != nil {
		return err
	}
	if !advanced {
		// Another process won the compare-and-swap for this fire instant.
		p.logger.Debug("schedule already advanced, skipping", "schedule_id", s.ID)
		metrics.TriggersTotal.WithLabelValues("lost_race").Inc()
		return nil
	}

	rec, err := p.materializeRecord(ctx, s, firedAt, now)
	if err != nil {
		return err
	}

	// Forward-provision the slot for the run we just scheduled, keeping the
	// one-queued-slot invariant continuously true.
	if err := p.provisionNextSlot(ctx, s, rec.WorkflowTitle, next); err != nil {
		p.logger.Error("provision next slot", "schedule_id", s.ID, "error", err)
	}

	priority, err := p.priority.ComputePriority(ctx, s.UID)
	if err != nil {
		p.logger.Warn("compute priority, using default", "uid", s.UID, "error", err)
		priority = domain.PriorityDefault
	}
	if err := p.records.UpdatePriority(ctx, rec.ID, priority); err != nil {
		p.logger.Warn("stamp record priority", "record_id", rec.ID, "error", err)
	}

	job := domain.RunJob{
		ID:               fmt.Sprintf("sched:%s:%d", s.ID, firedAt.Unix()),
		ScheduleID:       s.ID,
		CanvasID:         s.CanvasID,
		UID:              s.UID,
		ScheduleRecordID: rec.ID,
		ScheduledAt:      firedAt,
		Priority:         priority,
	}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue run: %w", err)
	}

	metrics.TriggersTotal.WithLabelValues("fired").Inc()
	p.logger.Info("schedule triggered",
		"schedule_id", s.ID,
		"canvas_id", s.CanvasID,
		"uid", s.UID,
		"record_id", rec.ID,
		"priority", priority,
		"next_run_at", next,
	)
	return nil
}

// autoDisable turns off a schedule whose cron expression can no longer be
// parsed, persisting the cause into the config audit keys. No record is
// created for the failed fire.
func (p *Pipeline) autoDisable(ctx context.Context, s *domain.Schedule, cause error, now time.Time) {
	reason := fmt.Sprintf("Invalid cron expression: %v", cause)
	cfg := s.Config.WithDisabledAudit(reason, now)

	if err := p.schedules.Disable(ctx, s.ID, cfg); err != nil {
		p.logger.Error("auto-disable schedule", "schedule_id", s.ID, "error", err)
		return
	}
	metrics.TriggersTotal.WithLabelValues("auto_disabled").Inc()
	p.logger.Warn("schedule auto-disabled",
		"schedule_id", s.ID,
		"cron_expr", s.CronExpr,
		"reason", reason,
	)
}

// materializeRecord promotes the forward-provisioned scheduled slot to
// pending, or creates a fresh pending record when no slot exists (first fire,
// or the slot was consumed by an earlier failure path).
func (p *Pipeline) materializeRecord(ctx context.Context, s *domain.Schedule, firedAt, now time.Time) (*domain.ExecutionRecord, error) {
	rec, err := p.records.PromoteScheduled(ctx, s.ID, now)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("promote scheduled record: %w", err)
	}

	title, err := p.canvases.WorkflowTitle(ctx, s.CanvasID)
	if err != nil {
		p.logger.Warn("resolve workflow title", "canvas_id", s.CanvasID, "error", err)
		title = "Untitled workflow"
	}

	scheduleID := s.ID
	rec, err = p.records.Create(ctx, &domain.ExecutionRecord{
		ID:             uuid.NewString(),
		ScheduleID:     &scheduleID,
		UID:            s.UID,
		SourceCanvasID: s.CanvasID,
		WorkflowTitle:  title,
		Status:         domain.StatusPending,
		Priority:       domain.PriorityDefault,
		ScheduledAt:    &firedAt,
		TriggeredAt:    &now,
	})
	if err != nil {
		return nil, fmt.Errorf("create pending record: %w", err)
	}
	return rec, nil
}

func (p *Pipeline) provisionNextSlot(ctx context.Context, s *domain.Schedule, title string, next time.Time) error {
	scheduleID := s.ID
	return p.records.UpsertScheduledSlot(ctx, &domain.ExecutionRecord{
		ID:             uuid.NewString(),
		ScheduleID:     &scheduleID,
		UID:            s.UID,
		SourceCanvasID: s.CanvasID,
		WorkflowTitle:  title,
		Status:         domain.StatusScheduled,
		Priority:       domain.PriorityDefault,
		ScheduledAt:    &next,
	})
}
