package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
	"github.com/draftforge/contentflow_backend/workflow"
)

const (
	researchWebhookHandlerName = "research-webhook"
	webhookTimestampTolerance  = 5 * time.Minute

	researchEventCompleted = "research.completed"
	researchEventFailed    = "research.failed"
)

func registerWebhookRoutes(r *gin.Engine, orchestrator *workflow.Orchestrator) {
	r.POST("/webhooks/research", researchWebhookHandler(orchestrator))
}

type researchWebhookPayload struct {
	Event string `json:"event"`
	RunId string `json:"run_id"`
	Error string `json:"error"`
}

// researchWebhookHandler resumes generations parked on the async research
// service. The signature is verified before any state change; processing is
// deduplicated per (workspace, message id) and serialized per generation.
func researchWebhookHandler(orchestrator *workflow.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}

		msgId := c.GetHeader("webhook-id")
		timestamp := c.GetHeader("webhook-timestamp")
		signature := c.GetHeader("webhook-signature")
		if err := verifyWebhookSignature(msgId, timestamp, body, signature); err != nil {
			config.LogError(logger, "server", "researchWebhookHandler", "signature", msgId, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		var payload researchWebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil || payload.RunId == "" {
			// Malformed but authenticated: ack so the sender stops retrying.
			if err == nil {
				err = errors.New("missing run_id")
			}
			config.LogError(logger, "server", "researchWebhookHandler", "payload", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		switch payload.Event {
		case researchEventCompleted, researchEventFailed:
		default:
			// Unknown event type: ack so the sender stops retrying, touch nothing.
			logger.WithFields(logrus.Fields{
				"field":  "researchWebhookHandler",
				"event":  payload.Event,
				"run_id": payload.RunId,
			}).Warn("ignoring unknown webhook event")
			c.Status(http.StatusNoContent)
			return
		}

		// Webhooks carry no session; the workspace comes from the record.
		ctx := utils.SetSkipTenantScopeInContext(c.Request.Context(), true)
		record, err := models.FindGenerationByResearchRun(ctx, payload.RunId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				// Already resumed or unknown run: duplicate-safe ack.
				c.Status(http.StatusNoContent)
				return
			}
			c.Status(http.StatusInternalServerError)
			return
		}
		ctx = utils.SetWorkspaceIdInContext(ctx, record.WorkspaceId)

		db := config.GetDB()
		skip, err := workflow.BeginIdempotency(db.WithContext(ctx), record.WorkspaceId, researchWebhookHandlerName, msgId)
		if err != nil {
			if errors.Is(err, workflow.ErrIdempotencyInProgress) {
				// Another instance is processing this delivery right now.
				c.Status(http.StatusConflict)
				return
			}
			c.Status(http.StatusInternalServerError)
			return
		}
		if skip {
			c.Status(http.StatusNoContent)
			return
		}

		// Best-effort redis lock; the MySQL advisory lock below is what
		// actually serializes concurrent resumption.
		if lock, lockErr := utils.WorkspaceLock(ctx, record.WorkspaceId, researchWebhookHandlerName, 30*time.Second); lockErr == nil && lock != nil {
			defer func() { _ = lock.Release(ctx) }()
		}

		if err := workflow.AcquireResumeLock(db.WithContext(ctx), record.ID); err != nil {
			_ = workflow.MarkIdempotencyFailed(db.WithContext(ctx), record.WorkspaceId, researchWebhookHandlerName, msgId, err)
			c.Status(http.StatusInternalServerError)
			return
		}
		defer workflow.ReleaseResumeLock(db.WithContext(ctx), record.ID)

		switch payload.Event {
		case researchEventFailed:
			_, err = orchestrator.HandleResearchFailed(ctx, payload.RunId, payload.Error)
		case researchEventCompleted:
			_, err = orchestrator.HandleResearchCompleted(ctx, payload.RunId)
		}
		if err != nil {
			_ = workflow.MarkIdempotencyFailed(db.WithContext(ctx), record.WorkspaceId, researchWebhookHandlerName, msgId, err)
			logger.WithFields(logrus.Fields{
				"field":        "researchWebhookHandler",
				"workspace_id": record.WorkspaceId,
				"run_id":       payload.RunId,
				"message_id":   msgId,
			}).Error("webhook processing failed: " + err.Error())
			// Non-2xx tells the sender to retry.
			c.Status(http.StatusInternalServerError)
			return
		}
		if err := workflow.MarkIdempotencySucceeded(db.WithContext(ctx), record.WorkspaceId, researchWebhookHandlerName, msgId); err != nil {
			config.LogError(logger, "server", "researchWebhookHandler", "mark succeeded", msgId, err)
		}
		c.Status(http.StatusNoContent)
	}
}

// verifyWebhookSignature checks the HMAC-SHA256 signature over
// "{id}.{timestamp}.{body}". The signature header holds space-separated
// "v1,<base64>" entries; any matching entry accepts.
func verifyWebhookSignature(msgId string, timestamp string, body []byte, signatureHeader string) error {
	secret := strings.TrimSpace(os.Getenv("RESEARCH_WEBHOOK_SECRET"))
	if secret == "" {
		return errors.New("RESEARCH_WEBHOOK_SECRET is not set")
	}
	if msgId == "" || timestamp == "" || signatureHeader == "" {
		return errors.New("missing webhook headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.New("invalid webhook timestamp")
	}
	age := time.Since(time.Unix(ts, 0))
	if age > webhookTimestampTolerance || age < -webhookTimestampTolerance {
		return errors.New("webhook timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msgId))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(signatureHeader) {
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return errors.New("no matching signature")
}
