package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/utils"
	"gorm.io/gorm"
)

var ErrInvalidStatusTransition = errors.New("invalid article status transition")

type Article struct {
	ID              int           `gorm:"primary_key" json:"id"`
	WorkspaceId     string        `gorm:"size:36;not null;index" json:"workspace_id"`
	ProjectId       int           `gorm:"not null;index" json:"project_id"`
	Project         *Project      `json:"project,omitempty"`
	Title           string        `gorm:"size:255;not null" json:"title"`
	Slug            string        `gorm:"size:255;index" json:"slug"`
	Keyword         string        `gorm:"size:255" json:"keyword"`
	Status          ArticleStatus `gorm:"size:20;not null;index;default:idea" json:"status"`
	PublishAt       *time.Time    `gorm:"index" json:"publish_at"`
	PublishedAt     *time.Time    `json:"published_at"`
	ContentMarkdown string        `gorm:"type:longtext" json:"content_markdown"`
	MetaDescription string        `gorm:"size:320" json:"meta_description"`
	CoverImageURL   string        `gorm:"size:500" json:"cover_image_url"`
	WordCount       int           `json:"word_count"`
	SeoScore        *int          `json:"seo_score"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewArticle struct {
	ProjectId int        `json:"project_id" validate:"required,gt=0"`
	Title     string     `json:"title" validate:"required,max=255"`
	Keyword   string     `json:"keyword" validate:"max=255"`
	PublishAt *time.Time `json:"publish_at"`
}

type UpdateArticleInput struct {
	Title     *string    `json:"title" validate:"omitempty,max=255"`
	Keyword   *string    `json:"keyword" validate:"omitempty,max=255"`
	PublishAt *time.Time `json:"publish_at"`
}

func CreateArticle(ctx context.Context, input *NewArticle) (*Article, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok {
		return nil, errors.New("workspace id is required")
	}
	// project must belong to the caller's workspace
	if _, err := GetProject(ctx, input.ProjectId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	article := Article{
		WorkspaceId: workspaceId,
		ProjectId:   input.ProjectId,
		Title:       input.Title,
		Slug:        utils.Slugify(input.Title),
		Keyword:     input.Keyword,
		Status:      ArticleStatusIdea,
		PublishAt:   input.PublishAt,
	}
	if err := db.WithContext(ctx).Create(&article).Error; err != nil {
		return nil, err
	}
	return &article, nil
}

func GetArticle(ctx context.Context, id int, associations ...string) (*Article, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok {
		return nil, errors.New("workspace id is required")
	}
	return utils.FetchModel[Article](ctx, workspaceId, id, associations...)
}

// GetArticleByID skips the tenant scope; for background workers that
// operate across workspaces (drainer, sweeps, webhook resumption).
func GetArticleByID(ctx context.Context, id int) (*Article, error) {
	db := config.GetDB()
	var result Article
	err := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

type ArticleFilter struct {
	ProjectId int
	Status    ArticleStatus
	Limit     int
	Offset    int
}

func GetArticles(ctx context.Context, filter ArticleFilter) ([]*Article, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok {
		return nil, errors.New("workspace id is required")
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("workspace_id = ?", workspaceId)
	if filter.ProjectId > 0 {
		dbCtx = dbCtx.Where("project_id = ?", filter.ProjectId)
	}
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	} else {
		dbCtx = dbCtx.Where("status <> ?", ArticleStatusDeleted)
	}
	if filter.Limit > 0 {
		dbCtx = dbCtx.Limit(filter.Limit).Offset(filter.Offset)
	}
	var results []*Article
	err := dbCtx.Order("updated_at desc").Find(&results).Error
	return results, err
}

func UpdateArticle(ctx context.Context, id int, input *UpdateArticleInput) (*Article, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	article, err := GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
		updates["slug"] = utils.Slugify(*input.Title)
	}
	if input.Keyword != nil {
		updates["keyword"] = *input.Keyword
	}
	if input.PublishAt != nil {
		updates["publish_at"] = *input.PublishAt
	}
	if len(updates) == 0 {
		return article, nil
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Article{}).Where("id = ?", article.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetArticle(ctx, id)
}

func DeleteArticle(ctx context.Context, id int) (bool, error) {
	article, err := GetArticle(ctx, id)
	if err != nil {
		return false, err
	}
	changed, err := TransitionArticleStatus(ctx, nil, article.ID, ArticleStatusDeleted)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, article.Status, ArticleStatusDeleted)
	}
	return true, nil
}

// TransitionArticleStatus is the single write path for article status.
// It issues one conditional UPDATE guarded by the allowed predecessor
// statuses, so a concurrent mover loses cleanly: RowsAffected==0 means
// the article was not in any state that permits the move.
func TransitionArticleStatus(ctx context.Context, tx *gorm.DB, articleId int, to ArticleStatus) (bool, error) {
	preds := ArticleStatusPredecessors(to)
	if len(preds) == 0 {
		return false, fmt.Errorf("%w: no path to %s", ErrInvalidStatusTransition, to)
	}
	if tx == nil {
		tx = config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true))
	}
	updates := map[string]interface{}{"status": to}
	if to == ArticleStatusPublished {
		updates["published_at"] = time.Now().UTC()
	}
	result := tx.Model(&Article{}).
		Where("id = ? AND status IN ?", articleId, preds).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetArticleContent writes the denormalized generation output onto the
// article row at completion time.
func SetArticleContent(ctx context.Context, tx *gorm.DB, articleId int, markdown string, metaDescription string, coverImageURL string, wordCount int, seoScore int) error {
	if tx == nil {
		tx = config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true))
	}
	return tx.Model(&Article{}).Where("id = ?", articleId).Updates(map[string]interface{}{
		"content_markdown": markdown,
		"meta_description": metaDescription,
		"cover_image_url":  coverImageURL,
		"word_count":       wordCount,
		"seo_score":        seoScore,
	}).Error
}

// GetArticlesDueForPublish returns articles whose publish time has passed,
// across all workspaces, for the publishing sweep.
func GetArticlesDueForPublish(ctx context.Context, now time.Time, limit int) ([]*Article, error) {
	db := config.GetDB()
	var results []*Article
	err := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Where("status IN ? AND publish_at IS NOT NULL AND publish_at <= ?",
			[]ArticleStatus{ArticleStatusScheduled, ArticleStatusWaitForPublish}, now).
		Order("publish_at asc").
		Limit(limit).
		Find(&results).Error
	return results, err
}
