package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/utils"
)

// Project is a content site inside a workspace. Generation settings
// (tone, word count, keywords, channels) live here.
type Project struct {
	ID              int       `gorm:"primary_key" json:"id"`
	WorkspaceId     string    `gorm:"size:64;index;not null" json:"workspace_id"`
	Name            string    `gorm:"size:100;not null" json:"name" binding:"required"`
	BaseURL         string    `gorm:"size:255" json:"base_url"`
	Tone            string    `gorm:"size:50" json:"tone"`
	TargetWordCount int       `gorm:"not null;default:1500" json:"target_word_count"`
	PrimaryKeywords string    `gorm:"type:text" json:"primary_keywords"`
	PublishChannels string    `gorm:"size:255" json:"publish_channels"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	Name            string `json:"name" binding:"required" validate:"required,min=1,max=100"`
	BaseURL         string `json:"base_url" validate:"omitempty,url"`
	Tone            string `json:"tone"`
	TargetWordCount int    `json:"target_word_count" validate:"omitempty,gte=300,lte=10000"`
	PrimaryKeywords string `json:"primary_keywords"`
	PublishChannels string `json:"publish_channels"`
}

// EnabledChannels parses the comma-separated channel list.
func (p *Project) EnabledChannels() []PublishChannel {
	var channels []PublishChannel
	for _, part := range strings.Split(p.PublishChannels, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch PublishChannel(part) {
		case PublishChannelBlog, PublishChannelReddit, PublishChannelX:
			channels = append(channels, PublishChannel(part))
		}
	}
	return channels
}

// Keywords parses the comma-separated keyword list.
func (p *Project) Keywords() []string {
	var out []string
	for _, part := range strings.Split(p.PrimaryKeywords, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	db := config.GetDB()
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	targetWordCount := input.TargetWordCount
	if targetWordCount == 0 {
		targetWordCount = 1500
	}

	project := Project{
		WorkspaceId:     workspaceId,
		Name:            input.Name,
		BaseURL:         input.BaseURL,
		Tone:            input.Tone,
		TargetWordCount: targetWordCount,
		PrimaryKeywords: input.PrimaryKeywords,
		PublishChannels: input.PublishChannels,
		IsActive:        utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func GetProject(ctx context.Context, id int) (*Project, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}
	return utils.FetchModel[Project](ctx, workspaceId, id)
}

// GetProjectByID skips the tenant scope; for background workers.
func GetProjectByID(ctx context.Context, id int) (*Project, error) {
	db := config.GetDB()
	var result Project
	err := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func GetProjects(ctx context.Context) ([]*Project, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}
	return utils.FetchAllModels[Project](ctx, workspaceId)
}

func UpdateProject(ctx context.Context, id int, input *NewProject) (*Project, error) {
	db := config.GetDB()
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	project, err := utils.FetchModel[Project](ctx, workspaceId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":             input.Name,
		"base_url":         input.BaseURL,
		"tone":             input.Tone,
		"primary_keywords": input.PrimaryKeywords,
		"publish_channels": input.PublishChannels,
	}
	if input.TargetWordCount > 0 {
		updates["target_word_count"] = input.TargetWordCount
	}
	err = db.WithContext(ctx).Model(&Project{}).
		Where("id = ? AND workspace_id = ?", id, workspaceId).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Project](ctx, workspaceId, project.ID)
}
