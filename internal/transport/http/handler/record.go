package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/usecase"
)

type RecordHandler struct {
	uc     *usecase.RecordUsecase
	logger *slog.Logger
}

func NewRecordHandler(uc *usecase.RecordUsecase, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{uc: uc, logger: logger.With("component", "record_handler")}
}

type recordResponse struct {
	ID            string     `json:"id"`
	ScheduleID    *string    `json:"schedule_id,omitempty"`
	CanvasID      string     `json:"canvas_id,omitempty"`
	WorkflowTitle string     `json:"workflow_title"`
	Status        string     `json:"status"`
	Priority      int        `json:"priority"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	TriggeredAt   *time.Time `json:"triggered_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreditUsed    int        `json:"credit_used"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toRecordResponse(rec *domain.ExecutionRecord) recordResponse {
	return recordResponse{
		ID:            rec.ID,
		ScheduleID:    rec.ScheduleID,
		CanvasID:      rec.SourceCanvasID,
		WorkflowTitle: rec.WorkflowTitle,
		Status:        string(rec.Status),
		Priority:      rec.Priority,
		ScheduledAt:   rec.ScheduledAt,
		TriggeredAt:   rec.TriggeredAt,
		CompletedAt:   rec.CompletedAt,
		CreditUsed:    rec.CreditUsed,
		FailureReason: string(rec.FailureReason),
		CreatedAt:     rec.CreatedAt,
	}
}

func (h *RecordHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	rec, err := h.uc.Get(ctx.Request.Context(), id, ctx.GetString("uid"))
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errRecordNotFound})
			return
		}
		h.logger.Error("get record", "record_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, toRecordResponse(rec))
}

func (h *RecordHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.uc.List(ctx.Request.Context(), usecase.ListRecordsInput{
		UID:        ctx.GetString("uid"),
		ScheduleID: ctx.Query("schedule_id"),
		Status:     domain.RecordStatus(ctx.Query("status")),
		Cursor:     ctx.Query("cursor"),
		Limit:      limit,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrBadCursor) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errBadCursor})
			return
		}
		h.logger.Error("list records", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	items := make([]recordResponse, len(result.Records))
	for i, rec := range result.Records {
		items[i] = toRecordResponse(rec)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"records":     items,
		"next_cursor": result.NextCursor,
	})
}

func (h *RecordHandler) Retry(ctx *gin.Context) {
	id := ctx.Param("id")

	rec, err := h.uc.Retry(ctx.Request.Context(), id, ctx.GetString("uid"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": errRecordNotFound})
		case errors.Is(err, domain.ErrRecordNotFinished):
			ctx.JSON(http.StatusConflict, gin.H{"error": errRecordNotDone})
		default:
			h.logger.Error("retry record", "record_id", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.JSON(http.StatusAccepted, toRecordResponse(rec))
}
