package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
	"github.com/sirupsen/logrus"
)

// QueueDrainer periodically picks up due generation queue items, claims
// their articles and hands them to the orchestrator. Item failures are
// isolated: one bad item never stops the sweep.
type QueueDrainer struct {
	Orchestrator *Orchestrator
	Logger       *logrus.Logger

	BatchSize    int
	PollInterval time.Duration
}

func NewQueueDrainer(orchestrator *Orchestrator, logger *logrus.Logger) *QueueDrainer {
	return &QueueDrainer{
		Orchestrator: orchestrator,
		Logger:       logger,
		BatchSize:    20,
		PollInterval: 30 * time.Second,
	}
}

func (d *QueueDrainer) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DrainOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DrainOnce processes one batch of due items and reports how many started
// generating. Safe to invoke concurrently with a running loop: the per-item
// article claim admits exactly one starter.
func (d *QueueDrainer) DrainOnce(ctx context.Context) int {
	items, err := models.GetDueQueueItems(ctx, time.Now().UTC(), d.BatchSize)
	if err != nil {
		config.LogError(d.Logger, "workflow", "DrainOnce", "select due items", nil, err)
		return 0
	}
	started := 0
	for _, item := range items {
		if d.drainItem(ctx, item) {
			started++
		}
	}
	return started
}

// drainItem claims and starts one queued generation. Claim outcomes:
// success starts the pipeline and deletes the row immediately; an already
// advanced article just deletes the row; a generating article whose record
// went stale is taken over and restarted; anything else marks the row
// failed for an operator.
func (d *QueueDrainer) drainItem(ctx context.Context, item *models.GenerationQueueItem) bool {
	itemCtx := utils.SetWorkspaceIdInContext(ctx, item.WorkspaceId)

	if _, err := models.GetArticleByID(itemCtx, item.ArticleId); err != nil {
		d.markFailed(itemCtx, item, err)
		return false
	}
	if _, err := d.Orchestrator.validateEligibility(itemCtx, item.ArticleId); err != nil {
		if err == ErrArticleNotEligible {
			// someone already moved the article along; nothing left to do
			d.deleteItem(itemCtx, item)
			return false
		}
		d.markFailed(itemCtx, item, err)
		return false
	}

	claim, err := d.Orchestrator.ClaimArticleForGeneration(itemCtx, item.ArticleId)
	if err != nil {
		d.markFailed(itemCtx, item, err)
		return false
	}
	switch claim {
	case Claimed:
	case AlreadyClaimed:
		existing, err := models.GetActiveGenerationForArticle(itemCtx, nil, item.ArticleId)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			d.markFailed(itemCtx, item, err)
			return false
		}
		if !generationAbandoned(existing, time.Now().UTC(), d.Orchestrator.StaleClaimAge) {
			// a live pipeline holds the article; the row has served its purpose
			d.deleteItem(itemCtx, item)
			return false
		}
		// Wedged claim from a died pipeline; setup below resets the record.
	default:
		d.deleteItem(itemCtx, item)
		return false
	}

	record, err := d.Orchestrator.ValidateAndSetupGeneration(itemCtx, item.UserId, item.ArticleId, true)
	if err != nil {
		if _, revertErr := models.TransitionArticleStatus(itemCtx, nil, item.ArticleId, models.ArticleStatusToGenerate); revertErr != nil {
			config.LogError(d.Logger, "workflow", "drainItem", "revert claim", item.ArticleId, revertErr)
		}
		d.markFailed(itemCtx, item, err)
		return false
	}

	// the queue row goes away now; the generation record tracks progress
	// from here on
	d.deleteItem(itemCtx, item)

	bgCtx := d.Orchestrator.detachContext(itemCtx, item.WorkspaceId)
	go d.Orchestrator.GenerateArticle(bgCtx, record.ID)

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":         "QueueDrainer",
			"workspace_id":  item.WorkspaceId,
			"article_id":    item.ArticleId,
			"generation_id": record.ID,
		}).Info("queued generation started")
	}
	return true
}

func (d *QueueDrainer) deleteItem(ctx context.Context, item *models.GenerationQueueItem) {
	if err := models.DeleteQueueItem(ctx, item.ID); err != nil {
		config.LogError(d.Logger, "workflow", "drainItem", "delete queue item", item.ID, err)
	}
}

func (d *QueueDrainer) markFailed(ctx context.Context, item *models.GenerationQueueItem, cause error) {
	config.LogError(d.Logger, "workflow", "drainItem", "item failed", item.ID, cause)
	if err := models.MarkQueueItemFailed(ctx, item.ID, cause.Error()); err != nil {
		config.LogError(d.Logger, "workflow", "drainItem", "mark failed", item.ID, err)
	}
}
