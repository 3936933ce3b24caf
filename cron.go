package main

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/draftforge/contentflow_backend/workflow"
)

func registerCronRoutes(r *gin.Engine, drainer *workflow.QueueDrainer, sweeper *workflow.PublishSweeper) {
	r.POST("/internal/cron/drain-queue", cronAuth(), drainQueueHandler(drainer))
	r.POST("/internal/cron/publish-due", cronAuth(), publishDueHandler(sweeper))
}

// cronAuth guards the cron endpoints with a shared secret (Cloud Scheduler
// header). Unset secret disables the endpoints.
func cronAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := strings.TrimSpace(os.Getenv("CRON_SECRET"))
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cron endpoints disabled"})
			return
		}
		got := c.GetHeader("x-cron-secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(got)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// drainQueueHandler runs one queue sweep synchronously. The background
// drainer runs the same DrainOnce, so the endpoint is a manual/scheduled
// trigger, not a different code path.
func drainQueueHandler(drainer *workflow.QueueDrainer) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := drainer.DrainOnce(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"started": started})
	}
}

// publishDueHandler publishes articles past their publish_at and attempts
// pending channel deliveries.
func publishDueHandler(sweeper *workflow.PublishSweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		published := sweeper.SweepOnce(c.Request.Context())
		delivered := sweeper.DeliverOnce(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"published": published, "delivered": delivered})
	}
}
