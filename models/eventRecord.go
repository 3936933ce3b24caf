package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentEventRecord is a transactional outbox row. The domain event is
// written inside the caller's DB transaction; publishing to Pub/Sub happens
// after commit via the event dispatcher.
type ContentEventRecord struct {
	ID            int        `gorm:"primary_key;index:idx_event_dispatch,priority:3" json:"id"`
	WorkspaceId   string     `gorm:"size:36;not null;index" json:"workspace_id"`
	OccurredAt    time.Time  `gorm:"index;not null" json:"occurred_at"`
	ReferenceId   int        `json:"reference_id"`
	ReferenceType string     `gorm:"size:20;not null" json:"reference_type"`
	EventType     string     `gorm:"size:50;not null;index" json:"event_type"`
	Payload       []byte     `gorm:"type:blob" json:"payload"`
	PublishStatus string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_event_dispatch,priority:1" json:"publish_status"`
	PublishedAt   *time.Time `gorm:"index" json:"published_at"`
	MessageId     *string    `gorm:"size:255" json:"message_id"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index;index:idx_event_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt      *time.Time `gorm:"index" json:"locked_at"`
	LockedBy      *string    `gorm:"size:100" json:"locked_by"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishToContentEvents writes the event record inside the caller's DB
// transaction but does NOT publish to Pub/Sub; the dispatcher picks it up
// after commit.
func PublishToContentEvents(ctx context.Context, db *gorm.DB, workspaceId string, eventType string, refId int, refType string, payload interface{}) error {
	var payloadBytes []byte
	var err error
	if payload != nil {
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}
	record := ContentEventRecord{
		WorkspaceId:   workspaceId,
		OccurredAt:    time.Now().UTC(),
		ReferenceId:   refId,
		ReferenceType: refType,
		EventType:     eventType,
		Payload:       payloadBytes,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return db.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToContentEventMessage(record ContentEventRecord) config.ContentEventMessage {
	return config.ContentEventMessage{
		ID:            record.ID,
		WorkspaceId:   record.WorkspaceId,
		OccurredAt:    record.OccurredAt,
		ReferenceId:   record.ReferenceId,
		ReferenceType: record.ReferenceType,
		EventType:     record.EventType,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}
