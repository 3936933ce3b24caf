package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/utils"
	"gorm.io/gorm"
)

// ArtifactBag accumulates phase outputs keyed by phase name. Merge-only:
// phases add or overwrite their own key, nothing ever removes one.
type ArtifactBag map[string]json.RawMessage

func (b ArtifactBag) Value() (driver.Value, error) {
	if b == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (b *ArtifactBag) Scan(value interface{}) error {
	if value == nil {
		*b = ArtifactBag{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ArtifactBag", value)
	}
	if len(raw) == 0 {
		*b = ArtifactBag{}
		return nil
	}
	return json.Unmarshal(raw, b)
}

// GenerationRecord tracks one generation attempt of an article. At most one
// record per article may be in a non-terminal status at a time; the claim
// step on the article row enforces that.
type GenerationRecord struct {
	ID            int              `gorm:"primary_key" json:"id"`
	ArticleId     int              `gorm:"not null;index" json:"article_id"`
	WorkspaceId   string           `gorm:"size:36;not null;index" json:"workspace_id"`
	UserId        int              `gorm:"not null" json:"user_id"`
	Status        GenerationStatus `gorm:"size:20;not null;index;default:pending" json:"status"`
	Progress      int              `gorm:"not null;default:0" json:"progress"`
	CurrentPhase  string           `gorm:"size:50" json:"current_phase"`
	Artifacts     ArtifactBag      `gorm:"type:json" json:"artifacts"`
	ResearchRunId *string          `gorm:"size:64;index" json:"research_run_id"`
	Error         string           `gorm:"size:1000" json:"error"`
	ScheduledAt   *time.Time       `json:"scheduled_at"`
	StartedAt     *time.Time       `json:"started_at"`
	CompletedAt   *time.Time       `json:"completed_at"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func workerDB(ctx context.Context) *gorm.DB {
	return config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true))
}

func GetGenerationRecord(ctx context.Context, id int) (*GenerationRecord, error) {
	var result GenerationRecord
	err := workerDB(ctx).Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// GetGenerationForArticle returns the latest record for an article within
// the caller's workspace; used by the polling endpoint.
func GetGenerationForArticle(ctx context.Context, articleId int) (*GenerationRecord, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok {
		return nil, errors.New("workspace id is required")
	}
	db := config.GetDB()
	var result GenerationRecord
	err := db.WithContext(ctx).
		Where("article_id = ? AND workspace_id = ?", articleId, workspaceId).
		Order("created_at desc").
		First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func GetActiveGenerationForArticle(ctx context.Context, tx *gorm.DB, articleId int) (*GenerationRecord, error) {
	if tx == nil {
		tx = workerDB(ctx)
	}
	var result GenerationRecord
	err := tx.
		Where("article_id = ? AND status NOT IN ?", articleId, terminalGenerationStatuses()).
		Order("created_at desc").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

func terminalGenerationStatuses() []GenerationStatus {
	return []GenerationStatus{GenerationStatusCompleted, GenerationStatusFailed, GenerationStatusResearchFailed}
}

// CreateOrResetGeneration makes repeated generation requests converge on a
// single record: an existing non-terminal record is reset in place, otherwise
// a fresh pending record is inserted.
func CreateOrResetGeneration(ctx context.Context, tx *gorm.DB, articleId int, workspaceId string, userId int, scheduledAt *time.Time) (*GenerationRecord, error) {
	if tx == nil {
		tx = workerDB(ctx)
	}
	existing, err := GetActiveGenerationForArticle(ctx, tx, articleId)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		err = tx.Model(&GenerationRecord{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"status":          GenerationStatusPending,
			"progress":        0,
			"current_phase":   "",
			"artifacts":       ArtifactBag{},
			"research_run_id": nil,
			"error":           "",
			"scheduled_at":    scheduledAt,
			"started_at":      nil,
			"completed_at":    nil,
		}).Error
		if err != nil {
			return nil, err
		}
		return GetGenerationRecord(ctx, existing.ID)
	}
	record := GenerationRecord{
		ArticleId:   articleId,
		WorkspaceId: workspaceId,
		UserId:      userId,
		Status:      GenerationStatusPending,
		Progress:    0,
		Artifacts:   ArtifactBag{},
		ScheduledAt: scheduledAt,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// AdvanceGenerationPhase moves a record to the given status and phase label.
// Progress only ever goes up (GREATEST guard) and terminal records are never
// touched, which makes stale resumption attempts harmless.
func AdvanceGenerationPhase(ctx context.Context, id int, status GenerationStatus, phase string, progress int) (bool, error) {
	updates := map[string]interface{}{
		"status":        status,
		"current_phase": phase,
		"progress":      gorm.Expr("GREATEST(progress, ?)", progress),
	}
	result := workerDB(ctx).Model(&GenerationRecord{}).
		Where("id = ? AND status NOT IN ?", id, terminalGenerationStatuses()).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MergeGenerationArtifact adds or replaces one phase's payload in the
// artifact bag under row lock. Other phases' entries are preserved.
func MergeGenerationArtifact(ctx context.Context, id int, phase string, payload json.RawMessage) error {
	db := workerDB(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		var record GenerationRecord
		if err := tx.Clauses(clauseForUpdate()).Where("id = ?", id).First(&record).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if record.Artifacts == nil {
			record.Artifacts = ArtifactBag{}
		}
		record.Artifacts[phase] = payload
		return tx.Model(&GenerationRecord{}).Where("id = ?", id).Update("artifacts", record.Artifacts).Error
	})
}

func MarkGenerationStarted(ctx context.Context, id int) error {
	now := time.Now().UTC()
	return workerDB(ctx).Model(&GenerationRecord{}).
		Where("id = ? AND started_at IS NULL", id).
		Update("started_at", now).Error
}

func MarkGenerationCompleted(ctx context.Context, tx *gorm.DB, id int) (bool, error) {
	if tx == nil {
		tx = workerDB(ctx)
	}
	now := time.Now().UTC()
	result := tx.Model(&GenerationRecord{}).
		Where("id = ? AND status NOT IN ?", id, terminalGenerationStatuses()).
		Updates(map[string]interface{}{
			"status":        GenerationStatusCompleted,
			"current_phase": "completed",
			"progress":      100,
			"completed_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkGenerationFailed records the terminal failure status, preserving the
// progress reached so far for diagnosis. Reports whether this call moved
// the record; an already terminal record stays untouched.
func MarkGenerationFailed(ctx context.Context, id int, status GenerationStatus, errMsg string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("status %s is not terminal", status)
	}
	now := time.Now().UTC()
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	result := workerDB(ctx).Model(&GenerationRecord{}).
		Where("id = ? AND status NOT IN ?", id, terminalGenerationStatuses()).
		Updates(map[string]interface{}{
			"status":       status,
			"error":        errMsg,
			"completed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetGenerationResearchRun stores the async research service run id so the
// webhook can find this record later.
func SetGenerationResearchRun(ctx context.Context, id int, runId string) error {
	return workerDB(ctx).Model(&GenerationRecord{}).
		Where("id = ?", id).
		Update("research_run_id", runId).Error
}

// FindGenerationByResearchRun locates the record awaiting a research result.
// The status filter makes duplicate or stale webhook deliveries miss cleanly.
func FindGenerationByResearchRun(ctx context.Context, runId string) (*GenerationRecord, error) {
	var result GenerationRecord
	err := workerDB(ctx).
		Where("research_run_id = ? AND status = ?", runId, GenerationStatusResearching).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
