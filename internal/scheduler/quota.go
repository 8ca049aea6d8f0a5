package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/metrics"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
)

// Enforcer brings an over-quota account back to its plan limit: the newest
// excess schedules are disabled (first come, first served), their open
// records failed, their queued jobs purged, and the owner notified once.
// The schedule currently mid-trigger is never among the victims.
type Enforcer struct {
	schedules repository.ScheduleRepository
	records   repository.RecordRepository
	accounts  repository.AccountRepository
	queue     Queue
	resolver  QuotaResolver
	notifier  Notifier
	logger    *slog.Logger

	now func() time.Time
}

func NewEnforcer(
	schedules repository.ScheduleRepository,
	records repository.RecordRepository,
	accounts repository.AccountRepository,
	queue Queue,
	resolver QuotaResolver,
	notifier Notifier,
	logger *slog.Logger,
) *Enforcer {
	return &Enforcer{
		schedules: schedules,
		records:   records,
		accounts:  accounts,
		queue:     queue,
		resolver:  resolver,
		notifier:  notifier,
		logger:    logger.With("component", "quota_enforcer"),
		now:       time.Now,
	}
}

// Enforce checks the account owning s and, when over quota, disables the
// excess. Re-running for the same state is a no-op: already-disabled
// schedules fall out of the enabled filter.
func (e *Enforcer) Enforce(ctx context.Context, s *domain.Schedule) error {
	account, err := e.accounts.GetByUID(ctx, s.UID)
	if err != nil {
		return fmt.Errorf("resolve account: %w", err)
	}
	quota := e.resolver.Resolve(account.Tier)

	active, err := e.schedules.CountActive(ctx, s.UID)
	if err != nil {
		return fmt.Errorf("count active schedules: %w", err)
	}
	if active <= quota.MaxActiveSchedules {
		return nil
	}
	excess := active - quota.MaxActiveSchedules

	victims, err := e.schedules.ListActiveNewest(ctx, s.UID, s.ID, excess)
	if err != nil {
		return fmt.Errorf("select over-quota schedules: %w", err)
	}
	if len(victims) == 0 {
		return nil
	}

	ids := make([]string, len(victims))
	for i, v := range victims {
		ids[i] = v.ID
	}

	disabled, err := e.schedules.DisableBatch(ctx, ids)
	if err != nil {
		return fmt.Errorf("disable over-quota schedules: %w", err)
	}

	failed, err := e.records.FailBySchedules(ctx, ids,
		[]domain.RecordStatus{domain.StatusPending, domain.StatusScheduled, domain.StatusProcessing},
		domain.FailureScheduleLimit, e.now())
	if err != nil {
		return fmt.Errorf("fail over-quota records: %w", err)
	}

	// Purge queued-but-not-started jobs so a stale run cannot later overwrite
	// the failed status.
	purged := e.purgeQueued(ctx, ids)

	metrics.QuotaDisabledTotal.Add(float64(disabled))
	e.logger.Warn("over-quota schedules disabled",
		"uid", s.UID,
		"tier", account.Tier,
		"limit", quota.MaxActiveSchedules,
		"active", active,
		"disabled", disabled,
		"records_failed", failed,
		"jobs_purged", purged,
	)

	if err := e.notifier.SchedulesDisabled(ctx, account, victims, quota.MaxActiveSchedules, active); err != nil {
		e.logger.Error("send limit-exceeded notification", "uid", s.UID, "error", err)
	}
	return nil
}

// purgeQueued removes pending queue jobs belonging to the given schedules.
// Best-effort: a purge failure is logged, not propagated.
func (e *Enforcer) purgeQueued(ctx context.Context, scheduleIDs []string) int {
	pending, err := e.queue.Pending(ctx)
	if err != nil {
		e.logger.Error("list pending queue jobs", "error", err)
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

	removed, err := e.queue.Remove(ctx, jobIDs...)
	if err != nil {
		e.logger.Error("purge queued jobs", "error", err)
		return 0
	}
	return removed
}
