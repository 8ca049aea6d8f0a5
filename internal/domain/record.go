package domain

import "time"

type RecordStatus string

const (
	StatusScheduled  RecordStatus = "scheduled"
	StatusPending    RecordStatus = "pending"
	StatusProcessing RecordStatus = "processing"
	StatusRunning    RecordStatus = "running"
	StatusSuccess    RecordStatus = "success"
	StatusFailed     RecordStatus = "failed"
)

// Terminal reports whether the status is final — terminal records are never
// touched again by the reconciler or the cleanup paths.
func (s RecordStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

const (
	PriorityHighest = 1
	PriorityDefault = 5
	PriorityLowest  = 10
)

// ExecutionRecord is one historical trigger attempt for a schedule (or an
// ad-hoc run, in which case ScheduleID is nil).
type ExecutionRecord struct {
	ID         string
	ScheduleID *string
	UID        string

	SourceCanvasID string // the template canvas the run was triggered from
	CanvasID       string // concrete execution instance, empty until it starts
	WorkflowTitle  string

	Status   RecordStatus
	Priority int // 1..10, 1 = most urgent

	ScheduledAt *time.Time
	TriggeredAt *time.Time
	CompletedAt *time.Time

	CreditUsed          int
	FailureReason       FailureReason
	ErrorDetails        []byte // opaque JSON diagnostic payload
	WorkflowExecutionID *string
	SnapshotStorageKey  *string // set when this attempt replays a prior snapshot

	CreatedAt time.Time
	UpdatedAt time.Time
}
