package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/metrics"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
)

// Reconciler consumes completion/failure signals from the execution engine
// and folds them back into the record store. Signals are delivered
// at-least-once, so every step is safe to repeat: a record that is already
// terminal is left alone.
type Reconciler struct {
	records   repository.RecordRepository
	schedules repository.ScheduleRepository
	accounts  repository.AccountRepository
	counter   ConcurrencyCounter
	credits   CreditService
	notifier  Notifier
	logger    *slog.Logger

	now func() time.Time
}

func NewReconciler(
	records repository.RecordRepository,
	schedules repository.ScheduleRepository,
	accounts repository.AccountRepository,
	counter ConcurrencyCounter,
	credits CreditService,
	notifier Notifier,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		records:   records,
		schedules: schedules,
		accounts:  accounts,
		counter:   counter,
		credits:   credits,
		notifier:  notifier,
		logger:    logger.With("component", "result_reconciler"),
		now:       time.Now,
	}
}

func (r *Reconciler) HandleCompleted(ctx context.Context, ev domain.WorkflowEvent) {
	r.reconcile(ctx, ev, false)
}

func (r *Reconciler) HandleFailed(ctx context.Context, ev domain.WorkflowEvent) {
	r.reconcile(ctx, ev, true)
}

func (r *Reconciler) reconcile(ctx context.Context, ev domain.WorkflowEvent, failed bool) {
	if ev.ScheduleRecordID == "" {
		// Not a run this subsystem started.
		return
	}

	scheduled := ev.TriggerType == domain.TriggerScheduled
	decremented := false
	decrement := func() {
		if !scheduled || decremented {
			return
		}
		decremented = true
		if err := r.counter.Decrement(ctx, ev.UID); err != nil {
			// Advisory counter; the admission check re-derives from records.
			r.logger.Warn("decrement concurrency counter", "uid", ev.UID, "error", err)
		}
	}
	// A crash or early return mid-reconciliation must not leak the slot.
	defer decrement()

	rec, err := r.records.GetByID(ctx, ev.ScheduleRecordID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			r.logger.Warn("record not found, nothing to reconcile", "record_id", ev.ScheduleRecordID)
			return
		}
		r.logger.Error("load record", "record_id", ev.ScheduleRecordID, "error", err)
		return
	}
	if rec.Status.Terminal() {
		// Duplicate delivery.
		r.logger.Debug("record already terminal, skipping", "record_id", rec.ID, "status", rec.Status)
		return
	}

	decrement()

	credit, err := r.credits.CreditsUsed(ctx, ev.UID, ev.ExecutionID)
	if err != nil {
		r.logger.Warn("compute credit usage, defaulting to 0", "execution_id", ev.ExecutionID, "error", err)
		credit = 0
	}

	final := repository.Finalization{
		Status:              domain.StatusSuccess,
		CompletedAt:         r.now(),
		CreditUsed:          credit,
		CanvasID:            ev.CanvasID,
		WorkflowExecutionID: ev.ExecutionID,
	}
	if failed {
		final.Status = domain.StatusFailed
		final.FailureReason = domain.ClassifyFailure(ev.ErrorMessage)
		final.ErrorDetails = errorDetailsJSON(ev)
	}

	if err := r.records.Finalize(ctx, rec.ID, final); err != nil {
		r.logger.Error("finalize record", "record_id", rec.ID, "error", err)
		return
	}

	metrics.ReconciliationsTotal.WithLabelValues(string(final.Status)).Inc()
	r.logger.Info("execution reconciled",
		"record_id", rec.ID,
		"execution_id", ev.ExecutionID,
		"status", final.Status,
		"credit_used", credit,
		"duration_ms", ev.DurationMS,
	)

	if scheduled {
		r.notify(ctx, rec, final)
	}
}

// notify emails the owner about the finished run. Missing account or email is
// logged and skipped — notification never raises.
func (r *Reconciler) notify(ctx context.Context, rec *domain.ExecutionRecord, final repository.Finalization) {
	account, err := r.accounts.GetByUID(ctx, rec.UID)
	if err != nil {
		r.logger.Warn("notify: account lookup", "uid", rec.UID, "error", err)
		return
	}
	if account.Email == "" {
		r.logger.Warn("notify: account has no email", "uid", rec.UID)
		return
	}

	var nextRunAt *time.Time
	if rec.ScheduleID != nil {
		if sched, err := r.schedules.GetByID(ctx, *rec.ScheduleID); err == nil {
			nextRunAt = sched.NextRunAt
		}
	}

	finished := *rec
	finished.Status = final.Status
	finished.FailureReason = final.FailureReason
	finished.CreditUsed = final.CreditUsed
	finished.CompletedAt = &final.CompletedAt

	if err := r.notifier.RunFinished(ctx, account, &finished, nextRunAt); err != nil {
		r.logger.Warn("send run notification", "record_id", rec.ID, "error", err)
	}
}

func errorDetailsJSON(ev domain.WorkflowEvent) []byte {
	if len(ev.ErrorDetails) > 0 {
		return ev.ErrorDetails
	}
	raw, err := json.Marshal(map[string]string{"message": ev.ErrorMessage})
	if err != nil {
		return nil
	}
	return raw
}
