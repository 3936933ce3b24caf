package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/seo"
	"github.com/draftforge/contentflow_backend/utils"
	"github.com/draftforge/contentflow_backend/workflow"
)

type generateNowRequest struct {
	ForceRegenerate bool `json:"force_regenerate"`
}

// generateNowHandler starts generation immediately. The pipeline runs in the
// background; the response is an acknowledgement, progress is polled.
func generateNowHandler(orchestrator *workflow.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		articleId, ok := pathID(c)
		if !ok {
			return
		}
		var req generateNowRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())

		ctx, span := tracer.Start(c.Request.Context(), "generate-now")
		defer span.End()

		record, err := orchestrator.StartGenerationNow(ctx, userId, articleId, req.ForceRegenerate)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"generation_id": record.ID,
			"article_id":    articleId,
			"status":        record.Status,
		})
	}
}

type queueGenerationRequest struct {
	ScheduledFor *time.Time `json:"scheduled_for"`
}

func queueGenerationHandler(orchestrator *workflow.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		articleId, ok := pathID(c)
		if !ok {
			return
		}
		var req queueGenerationRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		scheduledFor := time.Now().UTC()
		if req.ScheduledFor != nil {
			scheduledFor = req.ScheduledFor.UTC()
		}
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())

		item, err := orchestrator.EnqueueGeneration(c.Request.Context(), userId, articleId, scheduledFor)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"queue_item_id":  item.ID,
			"article_id":     articleId,
			"queue_position": item.QueuePosition,
			"scheduled_for":  item.ScheduledFor,
		})
	}
}

func retryGenerationHandler(orchestrator *workflow.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		articleId, ok := pathID(c)
		if !ok {
			return
		}
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		record, err := orchestrator.RetryGeneration(c.Request.Context(), userId, articleId)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"generation_id": record.ID,
			"article_id":    articleId,
			"status":        record.Status,
		})
	}
}

type generationStatusResponse struct {
	GenerationId int                     `json:"generation_id"`
	ArticleId    int                     `json:"article_id"`
	Status       models.GenerationStatus `json:"status"`
	Progress     int                     `json:"progress"`
	CurrentPhase string                  `json:"current_phase,omitempty"`
	Error        string                  `json:"error,omitempty"`
	StartedAt    *time.Time              `json:"started_at,omitempty"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	SeoScore     *int                    `json:"seo_score,omitempty"`
	SeoFailures  []seo.Failure           `json:"seo_failures,omitempty"`
}

// generationStatusHandler is the polling endpoint: status, progress, phase,
// error and the SEO audit outcome once the audit has run.
func generationStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		articleId, ok := pathID(c)
		if !ok {
			return
		}
		record, err := models.GetGenerationForArticle(c.Request.Context(), articleId)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}

		resp := generationStatusResponse{
			GenerationId: record.ID,
			ArticleId:    record.ArticleId,
			Status:       record.Status,
			Progress:     record.Progress,
			CurrentPhase: record.CurrentPhase,
			Error:        record.Error,
			StartedAt:    record.StartedAt,
			CompletedAt:  record.CompletedAt,
		}
		if raw, ok := record.Artifacts[workflow.PhaseFinalize]; ok && len(raw) > 0 {
			var audit struct {
				Report seo.Report `json:"report"`
			}
			if err := json.Unmarshal(raw, &audit); err == nil {
				score := audit.Report.Score
				resp.SeoScore = &score
				resp.SeoFailures = audit.Report.Failures
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func listQueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}
		items, err := models.GetQueueItems(c.Request.Context(), limit, offset)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}
