package domain

import "encoding/json"

type TriggerType string

const (
	TriggerScheduled TriggerType = "scheduled"
	TriggerManual    TriggerType = "manual"
)

// WorkflowEvent is the asynchronous completion/failure signal emitted by the
// execution engine. Events without a ScheduleRecordID belong to runs this
// subsystem did not start and are ignored.
type WorkflowEvent struct {
	ExecutionID      string          `json:"executionId"`
	CanvasID         string          `json:"canvasId"`
	UID              string          `json:"uid"`
	TriggerType      TriggerType     `json:"triggerType"`
	ScheduleRecordID string          `json:"scheduleRecordId,omitempty"`
	Output           json.RawMessage `json:"output,omitempty"`
	DurationMS       int64           `json:"durationMs"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	ErrorDetails     json.RawMessage `json:"errorDetails,omitempty"`
}

// CanvasDeletedEvent is emitted by the canvas lifecycle when a workflow
// definition is removed.
type CanvasDeletedEvent struct {
	CanvasID string `json:"canvasId"`
	UID      string `json:"uid"`
}
