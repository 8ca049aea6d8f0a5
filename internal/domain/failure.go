package domain

import "regexp"

// FailureReason is the fixed taxonomy surfaced in execution history. The UI
// maps credit/quota reasons to an "Upgrade" action and execution reasons to
// "Debug", so values here are load-bearing.
type FailureReason string

const (
	FailureInsufficientCredits  FailureReason = "INSUFFICIENT_CREDITS"
	FailureScheduleLimit        FailureReason = "SCHEDULE_LIMIT_EXCEEDED"
	FailureScheduleDeleted      FailureReason = "SCHEDULE_DELETED"
	FailureScheduleDisabled     FailureReason = "SCHEDULE_DISABLED"
	FailureInvalidCron          FailureReason = "INVALID_CRON_EXPRESSION"
	FailureCanvasData           FailureReason = "CANVAS_DATA_ERROR"
	FailureCanvasDeleted        FailureReason = "CANVAS_DELETED"
	FailureSnapshot             FailureReason = "SNAPSHOT_ERROR"
	FailureWorkflowExecution    FailureReason = "WORKFLOW_EXECUTION_FAILED"
	FailureWorkflowTimeout      FailureReason = "WORKFLOW_EXECUTION_TIMEOUT"
	FailureUnknown              FailureReason = "UNKNOWN_ERROR"
)

type failureMatcher struct {
	pattern *regexp.Regexp
	reason  FailureReason
}

// Matchers are evaluated top to bottom; the order is part of the contract
// (credits before limits before cron before canvas before snapshot before
// execution), so more specific causes win over the generic execution bucket.
var failureMatchers = []failureMatcher{
	{regexp.MustCompile(`(?i)insufficient\s+credit|not\s+enough\s+credit|credit.*exhaust`), FailureInsufficientCredits},
	{regexp.MustCompile(`(?i)schedule\s+limit|limit\s+exceeded|quota\s+exceeded`), FailureScheduleLimit},
	{regexp.MustCompile(`(?i)invalid\s+cron|cron\s+expression`), FailureInvalidCron},
	{regexp.MustCompile(`(?i)canvas\s+not\s+found|canvas\s+data|invalid\s+canvas|corrupt.*canvas`), FailureCanvasData},
	{regexp.MustCompile(`(?i)snapshot`), FailureSnapshot},
	{regexp.MustCompile(`(?i)timeout|timed\s+out|deadline\s+exceeded`), FailureWorkflowTimeout},
	{regexp.MustCompile(`(?i)execut|workflow\s+fail`), FailureWorkflowExecution},
}

// ClassifyFailure maps a raw error message from the execution engine onto the
// taxonomy. Unmatched messages (including the empty string) fall through to
// FailureUnknown.
func ClassifyFailure(message string) FailureReason {
	if message == "" {
		return FailureUnknown
	}
	for _, m := range failureMatchers {
		if m.pattern.MatchString(message) {
			return m.reason
		}
	}
	return FailureUnknown
}
