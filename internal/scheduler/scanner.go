package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/metrics"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
)

const scanLockKey = "cron:scan:lock"

// Triggerer fires one schedule. Satisfied by *Pipeline.
type Triggerer interface {
	Trigger(ctx context.Context, scheduleID string) error
}

// Scanner is the periodic background task that finds due schedules and hands
// them to the trigger pipeline. Any number of instances may run; the
// distributed lock ensures only one performs a given tick's scan.
type Scanner struct {
	schedules repository.ScheduleRepository
	pipeline  Triggerer
	lock      Locker
	queue     Queue
	logger    *slog.Logger
	interval  time.Duration
	batchSize int

	now func() time.Time
}

func NewScanner(
	schedules repository.ScheduleRepository,
	pipeline Triggerer,
	lock Locker,
	queue Queue,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
) *Scanner {
	return &Scanner{
		schedules: schedules,
		pipeline:  pipeline,
		lock:      lock,
		queue:     queue,
		logger:    logger.With("component", "cron_scanner"),
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (s *Scanner) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scanner started", "interval", s.interval, "batch_size", s.batchSize)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner shut down")
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan runs one tick. Failures are logged and the tick is skipped — there is
// no caller to propagate to.
func (s *Scanner) Scan(ctx context.Context) {
	started := s.now()

	// Lease runs longer than one interval so a slow scan is not stolen
	// mid-flight, and a crashed holder frees up after at most two ticks.
	release, acquired, err := s.lock.Acquire(ctx, scanLockKey, 2*s.interval)
	if err != nil {
		s.logger.Error("acquire scan lock", "error", err)
		return
	}
	if !acquired {
		// Another instance owns this tick.
		return
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logger.Error("release scan lock", "error", err)
		}
	}()

	if promoted, err := s.queue.PromoteDelayed(ctx, started); err != nil {
		s.logger.Error("promote delayed jobs", "error", err)
	} else if promoted > 0 {
		s.logger.Info("promoted delayed jobs", "count", promoted)
	}

	due, err := s.schedules.ListDue(ctx, started, s.batchSize)
	if err != nil {
		s.logger.Error("list due schedules", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	// Sequential on purpose: quota-check-then-update sequences stay simple to
	// reason about, and one schedule's failure must not abort the batch.
	var fired, failed int
	for _, sched := range due {
		if err := s.triggerOne(ctx, sched.ID); err != nil {
			failed++
			s.logger.Error("trigger schedule", "schedule_id", sched.ID, "error", err)
			continue
		}
		fired++
	}

	if depth, err := s.queue.Depth(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}

	metrics.ScansTotal.Inc()
	metrics.ScanDuration.Observe(time.Since(started).Seconds())
	s.logger.Info("scan complete", "due", len(due), "ok", fired, "failed", failed,
		"duration", time.Since(started))
}

func (s *Scanner) triggerOne(ctx context.Context, scheduleID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trigger panicked: %v", r)
		}
	}()
	return s.pipeline.Trigger(ctx, scheduleID)
}

// CheckSchedule triggers the schedule immediately if it is currently due.
// Called right after a schedule is created or updated with a near-future
// next_run_at, so the owner does not wait a full scan interval. The pipeline's
// compare-and-swap makes a race with a concurrent tick harmless.
func (s *Scanner) CheckSchedule(ctx context.Context, scheduleID string) error {
	sched, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			return nil
		}
		return fmt.Errorf("load schedule: %w", err)
	}
	if !sched.Due(s.now()) {
		return nil
	}
	return s.triggerOne(ctx, scheduleID)
}
