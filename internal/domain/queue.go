package domain

import "time"

// RunJob is the payload dispatched to the priority queue for one trigger
// instant. The ID is deterministic per (schedule, fire instant) so re-runs of
// the same schedule never collide and duplicates are rejected by the queue.
type RunJob struct {
	ID               string    `json:"id"`
	ScheduleID       string    `json:"scheduleId"`
	CanvasID         string    `json:"canvasId"`
	UID              string    `json:"uid"`
	ScheduleRecordID string    `json:"scheduleRecordId"`
	ScheduledAt      time.Time `json:"scheduledAt"`
	Priority         int       `json:"priority"` // 1..10, 1 = most urgent
}
