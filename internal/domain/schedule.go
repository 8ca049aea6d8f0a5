package domain

import (
	"errors"
	"time"
)

var (
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrInvalidCronExpr   = errors.New("invalid cron expression")
	ErrRecordNotFound    = errors.New("execution record not found")
	ErrRecordNotFinished = errors.New("execution record has not finished")
	ErrAccountNotFound   = errors.New("account not found")
)

// ScheduleConfig is an opaque per-schedule settings blob, persisted as JSONB.
// Known keys: "type" (daily/weekly/monthly/custom) plus the audit keys written
// when a schedule is auto-disabled.
type ScheduleConfig map[string]any

const (
	ConfigKeyType           = "type"
	ConfigKeyDisabledReason = "_disabledReason"
	ConfigKeyDisabledAt     = "_disabledAt"
)

// WithDisabledAudit returns a copy of cfg carrying the auto-disable audit
// trail, preserving all pre-existing keys.
func (c ScheduleConfig) WithDisabledAudit(reason string, at time.Time) ScheduleConfig {
	out := make(ScheduleConfig, len(c)+2)
	for k, v := range c {
		out[k] = v
	}
	out[ConfigKeyDisabledReason] = reason
	out[ConfigKeyDisabledAt] = at.UTC().Format(time.RFC3339)
	return out
}

// Schedule is a recurring trigger definition bound to a canvas (a workflow
// template). NextRunAt == nil means the schedule will not fire.
type Schedule struct {
	ID       string
	CanvasID string
	UID      string

	CronExpr string
	Timezone string // IANA name, e.g. "Asia/Bishkek"

	Enabled   bool
	DeletedAt *time.Time

	NextRunAt *time.Time
	LastRunAt *time.Time

	Config ScheduleConfig

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Due reports whether the schedule should fire at now: next run time has
// passed, and the schedule is enabled and not soft-deleted.
func (s *Schedule) Due(now time.Time) bool {
	return s.Enabled && s.DeletedAt == nil && s.NextRunAt != nil && !s.NextRunAt.After(now)
}
