package models

import (
	"context"
	"errors"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Workspace is the tenant root. Every tenant-scoped table carries workspace_id
// and is guarded by the tenant-guard plugin.
type Workspace struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Website     string    `gorm:"size:255" json:"website"`
	Timezone    string    `gorm:"size:50" json:"timezone"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWorkspace struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" binding:"required"`
	Website     string `json:"website"`
	Timezone    string `json:"timezone"`
}

// Credits granted to a fresh workspace (trial allowance).
var initialWorkspaceCredits = decimal.NewFromInt(50)

// CreateWorkspace inserts the workspace plus its starter records
// (default project, credit balance) in one transaction.
func CreateWorkspace(ctx context.Context, input *NewWorkspace) (*Workspace, error) {
	db := config.GetDB()

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	workspace := Workspace{
		ID:          uuid.New(),
		Name:        input.Name,
		ContactName: input.ContactName,
		Email:       input.Email,
		Website:     input.Website,
		Timezone:    input.Timezone,
		IsActive:    utils.NewTrue(),
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workspace).Error; err != nil {
			return err
		}
		project := Project{
			WorkspaceId:     workspace.ID.String(),
			Name:            "Default Project",
			BaseURL:         input.Website,
			Tone:            "informative",
			TargetWordCount: 1500,
			IsActive:        utils.NewTrue(),
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		balance := CreditBalance{
			WorkspaceId: workspace.ID.String(),
			Balance:     initialWorkspaceCredits,
		}
		if err := tx.Create(&balance).Error; err != nil {
			return err
		}
		entry := CreditEntry{
			WorkspaceId: workspace.ID.String(),
			Amount:      initialWorkspaceCredits,
			Kind:        CreditEntryKindGrant,
			Description: "initial trial credits",
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &workspace, nil
}

func GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	db := config.GetDB()
	var result Workspace
	err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}
