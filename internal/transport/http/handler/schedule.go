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

type ScheduleHandler struct {
	uc     *usecase.ScheduleUsecase
	logger *slog.Logger
}

func NewScheduleHandler(uc *usecase.ScheduleUsecase, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	CanvasID string                `json:"canvas_id" binding:"required,max=64"`
	CronExpr string                `json:"cron_expr" binding:"required"`
	Timezone string                `json:"timezone"  binding:"omitempty,max=64"`
	Config   domain.ScheduleConfig `json:"config"`
}

type updateScheduleRequest struct {
	CronExpr string                `json:"cron_expr" binding:"required"`
	Timezone string                `json:"timezone"  binding:"omitempty,max=64"`
	Enabled  bool                  `json:"enabled"`
	Config   domain.ScheduleConfig `json:"config"`
}

type scheduleResponse struct {
	ID        string                `json:"id"`
	CanvasID  string                `json:"canvas_id"`
	CronExpr  string                `json:"cron_expr"`
	Timezone  string                `json:"timezone,omitempty"`
	Enabled   bool                  `json:"enabled"`
	NextRunAt *time.Time            `json:"next_run_at,omitempty"`
	LastRunAt *time.Time            `json:"last_run_at,omitempty"`
	Config    domain.ScheduleConfig `json:"config,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

func toScheduleResponse(s *domain.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:        s.ID,
		CanvasID:  s.CanvasID,
		CronExpr:  s.CronExpr,
		Timezone:  s.Timezone,
		Enabled:   s.Enabled,
		NextRunAt: s.NextRunAt,
		LastRunAt: s.LastRunAt,
		Config:    s.Config,
		CreatedAt: s.CreatedAt,
	}
}

func (h *ScheduleHandler) Create(ctx *gin.Context) {
	var req createScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.uc.Create(ctx.Request.Context(), usecase.CreateScheduleInput{
		UID:      ctx.GetString("uid"),
		CanvasID: req.CanvasID,
		CronExpr: req.CronExpr,
		Timezone: req.Timezone,
		Config:   req.Config,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCronExpr) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCronExpr})
			return
		}
		h.logger.Error("create schedule", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, toScheduleResponse(s))
}

func (h *ScheduleHandler) Update(ctx *gin.Context) {
	id := ctx.Param("id")

	var req updateScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.uc.Update(ctx.Request.Context(), usecase.UpdateScheduleInput{
		ID:       id,
		UID:      ctx.GetString("uid"),
		CronExpr: req.CronExpr,
		Timezone: req.Timezone,
		Enabled:  req.Enabled,
		Config:   req.Config,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrScheduleNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
		case errors.Is(err, domain.ErrInvalidCronExpr):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCronExpr})
		default:
			h.logger.Error("update schedule", "schedule_id", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	s, err := h.uc.Get(ctx.Request.Context(), id, ctx.GetString("uid"))
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("get schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.uc.List(ctx.Request.Context(), usecase.ListSchedulesInput{
		UID:    ctx.GetString("uid"),
		Cursor: ctx.Query("cursor"),
		Limit:  limit,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrBadCursor) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errBadCursor})
			return
		}
		h.logger.Error("list schedules", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	items := make([]scheduleResponse, len(result.Schedules))
	for i, s := range result.Schedules {
		items[i] = toScheduleResponse(s)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"schedules":   items,
		"next_cursor": result.NextCursor,
	})
}

func (h *ScheduleHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := h.uc.Delete(ctx.Request.Context(), id, ctx.GetString("uid")); err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("delete schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) Trigger(ctx *gin.Context) {
	id := ctx.Param("id")

	rec, err := h.uc.Trigger(ctx.Request.Context(), id, ctx.GetString("uid"))
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("trigger schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusAccepted, toRecordResponse(rec))
}
