package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/draftforge/contentflow_backend/models"
)

// DirectEventProcessor drains the content-event outbox without Pub/Sub.
// Intended for local/dev environments: events are logged and marked SENT so
// the outbox does not grow unbounded. Rows are claimed with SKIP LOCKED, so
// running it alongside another instance is safe.
type DirectEventProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewDirectEventProcessor(db *gorm.DB, logger *logrus.Logger) *DirectEventProcessor {
	return &DirectEventProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "direct-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

func (p *DirectEventProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *DirectEventProcessor) processOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.ContentEventRecord
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("publish_status IN ?", []string{
				models.OutboxPublishStatusPending,
				models.OutboxPublishStatusFailed,
			}).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if err := tx.Model(&models.ContentEventRecord{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": &now,
					"locked_by": &p.WorkerID,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, rec := range claimed {
		p.Logger.WithFields(logrus.Fields{
			"field":          "DirectEventProcessor",
			"workspace_id":   rec.WorkspaceId,
			"event_type":     rec.EventType,
			"reference_type": rec.ReferenceType,
			"reference_id":   rec.ReferenceId,
			"correlation_id": rec.CorrelationId,
		}).Info("content event (direct)")

		sentAt := time.Now().UTC()
		if err := p.DB.WithContext(ctx).Model(&models.ContentEventRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status": models.OutboxPublishStatusSent,
				"published_at":   &sentAt,
				"locked_at":      nil,
				"locked_by":      nil,
				"last_error":     nil,
			}).Error; err != nil {
			p.Logger.WithFields(logrus.Fields{
				"field":     "DirectEventProcessor",
				"record_id": rec.ID,
			}).Error("failed to mark event sent: " + err.Error())
		}
	}
}
