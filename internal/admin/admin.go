// Package admin wires the operational endpoints: manual status override,
// run-counter inspection and reset, and the stale-session cleanup hook.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/MAnasLatif/kyc/internal/config"
	"github.com/MAnasLatif/kyc/internal/middleware"
	"github.com/MAnasLatif/kyc/internal/models"
	"github.com/MAnasLatif/kyc/internal/services"
)

// Setup mounts the admin surface under /kyc/admin. The JWT-guarded group
// serves humans; the cleanup hook is guarded by a shared secret instead so
// an external scheduler can call it.
func Setup(router *gin.Engine, svc *services.KycService, cfg *config.Config) {
	group := router.Group("/kyc/admin")
	group.Use(middleware.AdminAuth(cfg))
	{
		group.POST("/override", overrideStatus(svc))
		group.GET("/runs", runsSnapshot(svc))
		group.POST("/runs/reset", resetRuns(svc))
	}

	router.POST("/kyc/admin/cleanup", cleanupSessions(svc, cfg))
}

type overrideInput struct {
	Reference string           `json:"reference" binding:"required"`
	Status    models.KycStatus `json:"status" binding:"required"`
}

func overrideStatus(svc *services.KycService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input overrideInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
		if !input.Status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid status"})
			return
		}

		updated, err := svc.UpdateStatus(input.Reference, input.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
		if !updated {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Session not found"})
			return
		}

		logrus.WithFields(logrus.Fields{
			"reference": input.Reference,
			"status":    input.Status,
		}).Info("session status overridden by admin")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func runsSnapshot(svc *services.KycService) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := svc.RunsSnapshot(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "runs": counts})
	}
}

type resetRunsInput struct {
	UserID string `json:"userId" binding:"required"`
}

func resetRuns(svc *services.KycService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input resetRunsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
		if err := svc.ResetRuns(c.Request.Context(), input.UserID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func cleanupSessions(svc *services.KycService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Cron-Secret")
		if secret == "" || secret != cfg.Cleanup.Secret {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or missing X-Cron-Secret"})
			return
		}

		expired, err := svc.ExpireStaleSessions()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Cleanup failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":          "Cleanup complete",
			"sessions_expired": expired,
		})
	}
}
