package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/aidynbek/canvas-scheduler/internal/repository"
	"github.com/aidynbek/canvas-scheduler/internal/transport/http/handler"
	"github.com/aidynbek/canvas-scheduler/internal/transport/http/middleware"
)

func NewRouter(logger *slog.Logger, scheduleHandler *handler.ScheduleHandler, recordHandler *handler.RecordHandler, accountRepo repository.AccountRepository, hmacKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(hmacKey)
	ensureAccount := middleware.EnsureAccount(accountRepo, logger)

	// Protected schedule routes
	schedules := r.Group("/schedules", authMW, ensureAccount)
	schedules.POST("", scheduleHandler.Create)
	schedules.GET("", scheduleHandler.List)
	schedules.GET("/:id", scheduleHandler.GetByID)
	schedules.PUT("/:id", scheduleHandler.Update)
	schedules.DELETE("/:id", scheduleHandler.Delete)
	schedules.POST("/:id/trigger", scheduleHandler.Trigger)

	// Protected execution record routes
	records := r.Group("/records", authMW, ensureAccount)
	records.GET("", recordHandler.List)
	records.GET("/:id", recordHandler.GetByID)
	records.POST("/:id/retry", recordHandler.Retry)

	return r
}
