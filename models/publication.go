package models

import (
	"context"
	"errors"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/utils"
	"gorm.io/gorm"
)

// Publication max delivery attempts before the row is parked as dead.
const PublicationMaxAttempts = 5

// Publication is one delivery of a published article to one channel.
// Delivery failures never affect the article itself.
type Publication struct {
	ID          int               `gorm:"primary_key" json:"id"`
	ArticleId   int               `gorm:"not null;index:idx_publication_article_channel,unique" json:"article_id"`
	Channel     PublishChannel    `gorm:"size:20;not null;index:idx_publication_article_channel,unique" json:"channel"`
	WorkspaceId string            `gorm:"size:36;not null;index" json:"workspace_id"`
	Status      PublicationStatus `gorm:"size:20;not null;index;default:pending" json:"status"`
	Attempts    int               `gorm:"not null;default:0" json:"attempts"`
	ExternalURL string            `gorm:"size:500" json:"external_url"`
	Error       string            `gorm:"size:1000" json:"error"`
	NextRetryAt *time.Time        `gorm:"index" json:"next_retry_at"`
	SentAt      *time.Time        `json:"sent_at"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreatePublicationsForArticle inserts one pending row per enabled channel
// inside the publish transaction. Duplicate inserts (rerun sweep) are
// tolerated via the unique (article, channel) index.
func CreatePublicationsForArticle(ctx context.Context, tx *gorm.DB, article *Article, channels []PublishChannel) error {
	if tx == nil {
		tx = workerDB(ctx)
	}
	for _, channel := range channels {
		pub := Publication{
			ArticleId:   article.ID,
			Channel:     channel,
			WorkspaceId: article.WorkspaceId,
			Status:      PublicationStatusPending,
		}
		err := tx.Create(&pub).Error
		if err != nil && !utils.IsDuplicateKeyError(err) {
			return err
		}
	}
	return nil
}

// GetDeliverablePublications returns pending or retryable rows across all
// workspaces for the delivery loop. The select runs in autocommit, so SKIP
// LOCKED does not fence a second delivery loop; deployments run one
// PublishSweeper, and a duplicate delivery is recorded, not prevented.
func GetDeliverablePublications(ctx context.Context, now time.Time, limit int) ([]*Publication, error) {
	var results []*Publication
	err := workerDB(ctx).
		Clauses(clauseSkipLocked()).
		Where("status IN ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			[]PublicationStatus{PublicationStatusPending, PublicationStatusFailed}, now).
		Order("created_at asc").
		Limit(limit).
		Find(&results).Error
	return results, err
}

func MarkPublicationSent(ctx context.Context, id int, externalURL string) error {
	now := time.Now().UTC()
	return workerDB(ctx).Model(&Publication{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       PublicationStatusSent,
			"external_url": externalURL,
			"error":        "",
			"sent_at":      now,
		}).Error
}

// MarkPublicationFailed bumps attempts with exponential backoff; the row
// goes dead once attempts exceed PublicationMaxAttempts.
func MarkPublicationFailed(ctx context.Context, pub *Publication, errMsg string) error {
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	attempts := pub.Attempts + 1
	status := PublicationStatusFailed
	var nextRetry *time.Time
	if attempts >= PublicationMaxAttempts {
		status = PublicationStatusDead
	} else {
		backoff := time.Duration(1<<min(attempts, 5)) * time.Minute
		t := time.Now().UTC().Add(backoff)
		nextRetry = &t
	}
	return workerDB(ctx).Model(&Publication{}).
		Where("id = ?", pub.ID).
		Updates(map[string]interface{}{
			"status":        status,
			"attempts":      attempts,
			"error":         errMsg,
			"next_retry_at": nextRetry,
		}).Error
}

// GetPublicationsForArticle lists delivery rows for one article in the
// caller's workspace.
func GetPublicationsForArticle(ctx context.Context, articleId int) ([]*Publication, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok {
		return nil, errors.New("workspace id is required")
	}
	db := config.GetDB()
	var results []*Publication
	err := db.WithContext(ctx).
		Where("article_id = ? AND workspace_id = ?", articleId, workspaceId).
		Order("channel asc").
		Find(&results).Error
	return results, err
}
