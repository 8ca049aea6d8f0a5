package handler

const (
	errInternalServer   = "Internal server error"
	errScheduleNotFound = "Schedule not found"
	errRecordNotFound   = "Execution record not found"
	errInvalidCronExpr  = "Invalid cron expression or timezone"
	errRecordNotDone    = "Execution record has not finished yet"
	errBadCursor        = "Invalid pagination cursor"
)
