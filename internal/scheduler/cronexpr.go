package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
)

// NextRun computes the first fire time strictly after "after" for the
// expression evaluated in the schedule's IANA timezone. An unparsable
// expression or unknown timezone wraps domain.ErrInvalidCronExpr so callers
// can auto-disable the schedule.
func NextRun(expr, timezone string, after time.Time) (time.Time, error) {
	spec := expr
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return time.Time{}, fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidCronExpr, timezone)
		}
		spec = "CRON_TZ=" + timezone + " " + expr
	}

	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", domain.ErrInvalidCronExpr, expr, err)
	}

	next := sched.Next(after)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %q never fires", domain.ErrInvalidCronExpr, expr)
	}
	return next, nil
}
