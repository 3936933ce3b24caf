package models

import (
	"context"
	"errors"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/utils"
	"gorm.io/gorm"
)

// GenerationQueueItem is a deferred generation request. Successfully claimed
// items are deleted; failed ones stay behind with the error for an operator
// to inspect and requeue.
type GenerationQueueItem struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ArticleId     int             `gorm:"not null;index" json:"article_id"`
	WorkspaceId   string          `gorm:"size:36;not null;index" json:"workspace_id"`
	UserId        int             `gorm:"not null" json:"user_id"`
	Status        QueueItemStatus `gorm:"size:20;not null;index;default:queued" json:"status"`
	ScheduledFor  time.Time       `gorm:"not null;index" json:"scheduled_for"`
	QueuePosition int             `gorm:"not null;default:0" json:"queue_position"`
	Attempts      int             `gorm:"not null;default:0" json:"attempts"`
	LastError     string          `gorm:"size:1000" json:"last_error"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// EnqueueGenerationItem inserts a queue row, reusing an existing queued row
// for the same article so double-clicks do not double-queue.
func EnqueueGenerationItem(ctx context.Context, articleId int, workspaceId string, userId int, scheduledFor time.Time) (*GenerationQueueItem, error) {
	db := workerDB(ctx)

	var existing GenerationQueueItem
	err := db.Where("article_id = ? AND status = ?", articleId, QueueItemStatusQueued).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}

	var maxPos struct{ Max int }
	if err := db.Model(&GenerationQueueItem{}).
		Select("COALESCE(MAX(queue_position), 0) AS max").
		Where("workspace_id = ? AND status = ?", workspaceId, QueueItemStatusQueued).
		Scan(&maxPos).Error; err != nil {
		return nil, err
	}

	item := GenerationQueueItem{
		ArticleId:     articleId,
		WorkspaceId:   workspaceId,
		UserId:        userId,
		Status:        QueueItemStatusQueued,
		ScheduledFor:  scheduledFor,
		QueuePosition: maxPos.Max + 1,
	}
	if err := db.Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// GetDueQueueItems returns queued items whose time has come, oldest first.
// The select runs in autocommit, so SKIP LOCKED only sidesteps rows other
// transactions hold; the article-status claim in the drainer is what keeps
// overlapping sweeps from double-starting an item.
func GetDueQueueItems(ctx context.Context, now time.Time, limit int) ([]*GenerationQueueItem, error) {
	var items []*GenerationQueueItem
	err := workerDB(ctx).
		Clauses(clauseSkipLocked()).
		Where("status = ? AND scheduled_for <= ?", QueueItemStatusQueued, now).
		Order("queue_position asc, created_at asc").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func DeleteQueueItem(ctx context.Context, id int) error {
	return workerDB(ctx).Delete(&GenerationQueueItem{}, id).Error
}

// MarkQueueItemFailed keeps the row for operator visibility; there is no
// automatic requeue.
func MarkQueueItemFailed(ctx context.Context, id int, errMsg string) error {
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	return workerDB(ctx).Model(&GenerationQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     QueueItemStatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": errMsg,
		}).Error
}

// RequeueFailedItem is the explicit operator action that puts a failed row
// back in line.
func RequeueFailedItem(ctx context.Context, id int) (*GenerationQueueItem, error) {
	db := workerDB(ctx)
	result := db.Model(&GenerationQueueItem{}).
		Where("id = ? AND status = ?", id, QueueItemStatusFailed).
		Updates(map[string]interface{}{
			"status":        QueueItemStatusQueued,
			"scheduled_for": time.Now().UTC(),
			"last_error":    "",
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, errors.New("queue item is not in failed status")
	}
	var item GenerationQueueItem
	if err := db.Where("id = ?", id).First(&item).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &item, nil
}

// GetQueueItems lists a workspace's queue for the UI, pending first.
func GetQueueItems(ctx context.Context, limit int, offset int) ([]*GenerationQueueItem, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok {
		return nil, errors.New("workspace id is required")
	}
	db := config.GetDB()
	var items []*GenerationQueueItem
	dbCtx := db.WithContext(ctx).
		Where("workspace_id = ?", workspaceId).
		Order("status asc, queue_position asc")
	if limit > 0 {
		dbCtx = dbCtx.Limit(limit).Offset(offset)
	}
	err := dbCtx.Find(&items).Error
	return items, err
}
