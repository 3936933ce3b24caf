package workflow

import (
	"errors"
	"time"

	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

// BeginIdempotency inserts STARTED. If SUCCEEDED already exists, returns
// (true, nil) meaning "skip safely".
func BeginIdempotency(tx *gorm.DB, workspaceId, handlerName, messageId string) (skip bool, err error) {
	key := models.IdempotencyKey{
		WorkspaceId: workspaceId,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !utils.IsDuplicateKeyError(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("workspace_id = ? AND handler_name = ? AND message_id = ?", workspaceId, handlerName, messageId).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		// Another worker is processing right now; ask the sender to retry.
		// A stale STARTED row means that worker died, so reclaim it.
		if time.Since(existing.UpdatedAt) < 5*time.Minute {
			return false, ErrIdempotencyInProgress
		}
		return false, reclaimIdempotency(tx, existing.ID)
	default:
		return false, reclaimIdempotency(tx, existing.ID)
	}
}

func reclaimIdempotency(tx *gorm.DB, id int) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

func MarkIdempotencySucceeded(tx *gorm.DB, workspaceId, handlerName, messageId string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("workspace_id = ? AND handler_name = ? AND message_id = ?", workspaceId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

func MarkIdempotencyFailed(tx *gorm.DB, workspaceId, handlerName, messageId string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("workspace_id = ? AND handler_name = ? AND message_id = ?", workspaceId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
}
