package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
)

// EnsureAccount runs after Auth. It upserts the authenticated account so
// that schedule/record FK constraints are always satisfied. New accounts
// start on the free tier.
func EnsureAccount(repo repository.AccountRepository, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := repo.Create(c.Request.Context(), &domain.Account{
			UID:   c.GetString("uid"),
			Email: c.GetString("email"),
			Tier:  domain.TierFree,
		})
		if err != nil {
			logger.ErrorContext(c.Request.Context(), "ensure account upsert", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"error": "Internal server error"})
			return
		}
		c.Next()
	}
}
