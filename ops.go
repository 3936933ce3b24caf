package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
)

// Ops tooling (admin only): recover events and queue items that exhausted
// their automatic retries.
func registerOpsRoutes(r *gin.Engine) {
	r.POST("/internal/ops/events/replay", eventReplayHandler())
	r.POST("/internal/ops/queue/requeue", queueRequeueHandler())
}

type eventReplayRequest struct {
	WorkspaceId string `json:"workspace_id"`
	RecordId    int    `json:"record_id"`
}

// eventReplayHandler puts a DEAD/FAILED outbox row back in front of the
// dispatcher by resetting it to FAILED with an immediate next attempt.
func eventReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req eventReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.WorkspaceId == "" || req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "workspace_id and record_id are required"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}
		// Only rows whose delivery actually gave up are replayable; resetting
		// a SENT row would republish a duplicate.
		now := time.Now().UTC()
		result := db.WithContext(c.Request.Context()).
			Model(&models.ContentEventRecord{}).
			Where("id = ? AND workspace_id = ? AND publish_status IN ?", req.RecordId, req.WorkspaceId,
				models.ReplayableOutboxStatuses()).
			Updates(map[string]interface{}{
				"publish_status":  models.OutboxPublishStatusFailed,
				"next_attempt_at": &now,
				"locked_at":       nil,
				"locked_by":       nil,
				"last_error":      nil,
			})
		if result.Error != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": result.Error.Error()})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found or not replayable"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"workspace_id":    req.WorkspaceId,
			"record_id":       req.RecordId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}

type queueRequeueRequest struct {
	QueueItemId int `json:"queue_item_id"`
}

// queueRequeueHandler returns a failed queue item to queued so the next
// drain sweep picks it up again.
func queueRequeueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req queueRequeueRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.QueueItemId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "queue_item_id is required"})
			return
		}

		ctx := utils.SetSkipTenantScopeInContext(c.Request.Context(), true)
		item, err := models.RequeueFailedItem(ctx, req.QueueItemId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, item)
	}
}
