package models

// ArticleStatus is the kanban-style lifecycle status of an article.
type ArticleStatus string

const (
	ArticleStatusIdea           ArticleStatus = "idea"
	ArticleStatusToGenerate     ArticleStatus = "to_generate"
	ArticleStatusQueued         ArticleStatus = "queued"
	ArticleStatusScheduled      ArticleStatus = "scheduled"
	ArticleStatusGenerating     ArticleStatus = "generating"
	ArticleStatusWaitForPublish ArticleStatus = "wait_for_publish"
	ArticleStatusPublished      ArticleStatus = "published"
	ArticleStatusDeleted        ArticleStatus = "deleted"
)

// ArticleStatusFlow is the single authoritative transition table for
// ArticleStatus. All status writes must go through TransitionArticleStatus,
// which consults this table; call sites must not re-implement it.
// published and deleted are sink states.
var ArticleStatusFlow = map[ArticleStatus][]ArticleStatus{
	ArticleStatusIdea:           {ArticleStatusToGenerate, ArticleStatusQueued, ArticleStatusScheduled, ArticleStatusDeleted},
	ArticleStatusToGenerate:     {ArticleStatusGenerating, ArticleStatusQueued, ArticleStatusScheduled, ArticleStatusIdea, ArticleStatusDeleted},
	ArticleStatusQueued:         {ArticleStatusGenerating, ArticleStatusToGenerate, ArticleStatusDeleted},
	ArticleStatusScheduled:      {ArticleStatusGenerating, ArticleStatusToGenerate, ArticleStatusPublished, ArticleStatusDeleted},
	ArticleStatusGenerating:     {ArticleStatusWaitForPublish, ArticleStatusToGenerate, ArticleStatusDeleted},
	ArticleStatusWaitForPublish: {ArticleStatusPublished, ArticleStatusScheduled, ArticleStatusDeleted},
	ArticleStatusPublished:      {},
	ArticleStatusDeleted:        {},
}

// CanTransitionArticleStatus reports whether from -> to is an allowed edge.
func CanTransitionArticleStatus(from, to ArticleStatus) bool {
	for _, next := range ArticleStatusFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ArticleStatusPredecessors returns every status with an edge into to.
func ArticleStatusPredecessors(to ArticleStatus) []ArticleStatus {
	var froms []ArticleStatus
	for from, nexts := range ArticleStatusFlow {
		for _, next := range nexts {
			if next == to {
				froms = append(froms, from)
				break
			}
		}
	}
	return froms
}

// GenerationStatus is the pipeline status of a GenerationRecord.
// Not a strict total order: research_failed branches off researching, and any
// active status may fall to failed.
type GenerationStatus string

const (
	GenerationStatusPending        GenerationStatus = "pending"
	GenerationStatusResearching    GenerationStatus = "researching"
	GenerationStatusOutline        GenerationStatus = "outline"
	GenerationStatusWriting        GenerationStatus = "writing"
	GenerationStatusQualityControl GenerationStatus = "quality_control"
	GenerationStatusValidating     GenerationStatus = "validating"
	GenerationStatusUpdating       GenerationStatus = "updating"
	GenerationStatusCompleted      GenerationStatus = "completed"
	GenerationStatusFailed         GenerationStatus = "failed"
	GenerationStatusResearchFailed GenerationStatus = "research_failed"
)

// IsTerminal reports whether the generation can no longer advance.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed || s == GenerationStatusResearchFailed
}

// IsActive reports whether the record still owns its article's generation slot.
func (s GenerationStatus) IsActive() bool {
	return !s.IsTerminal()
}

// QueueItemStatus is the lifecycle of a GenerationQueueItem. Claimed items are
// deleted, so there is no "done" status; failed rows stay for operators.
type QueueItemStatus string

const (
	QueueItemStatusQueued QueueItemStatus = "queued"
	QueueItemStatusFailed QueueItemStatus = "failed"
)

// PublishChannel identifies a delivery target for a published article.
type PublishChannel string

const (
	PublishChannelBlog   PublishChannel = "blog"
	PublishChannelReddit PublishChannel = "reddit"
	PublishChannelX      PublishChannel = "x"
)

// PublicationStatus is the per-channel delivery status of a Publication row.
type PublicationStatus string

const (
	PublicationStatusPending PublicationStatus = "pending"
	PublicationStatusSent    PublicationStatus = "sent"
	PublicationStatusFailed  PublicationStatus = "failed"
	PublicationStatusDead    PublicationStatus = "dead"
)

// Outbox publish statuses for ContentEventRecord.PublishStatus.
// Keep these as strings (DB values).
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// ReplayableOutboxStatuses lists the publish statuses an operator may reset
// back in front of the dispatcher. SENT and in-flight rows are excluded so a
// replay can never republish a delivered event.
func ReplayableOutboxStatuses() []string {
	return []string{OutboxPublishStatusFailed, OutboxPublishStatusDead}
}

// Domain event types carried by ContentEventRecord.
const (
	EventTypeGenerationCompleted = "generation.completed"
	EventTypeGenerationFailed    = "generation.failed"
	EventTypeArticlePublished    = "article.published"
)

// Reference types for events and comments.
const (
	ReferenceTypeArticle    = "article"
	ReferenceTypeGeneration = "generation"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

type UserRole string

const (
	UserRoleAdmin  UserRole = "A"
	UserRoleOwner  UserRole = "O"
	UserRoleMember UserRole = "M"
)
