// seed-admin creates or updates the ops console user (username: contentflowAdmin).
// Admin users may call the /internal/ops endpoints for any workspace.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "contentflowAdmin"
	adminName     = "ContentFlow Admin"
)

func main() {
	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	// Admin needs a home workspace; attach the first one in the DB.
	var workspace models.Workspace
	if err := db.WithContext(ctx).Model(&models.Workspace{}).Select("id").First(&workspace).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			fmt.Fprintln(os.Stderr, "no workspaces found in DB. Sign up a workspace first, then rerun seed-admin.")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "failed to lookup workspace: %v\n", err)
		os.Exit(1)
	}

	workspaceID := workspace.ID.String()
	ctx = utils.SetWorkspaceIdInContext(ctx, workspaceID)
	ctx = utils.SetUsernameInContext(ctx, adminUsername)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username:    adminUsername,
			Name:        adminName,
			Password:    hashedStr,
			IsActive:    utils.NewTrue(),
			Role:        models.UserRoleAdmin,
			WorkspaceId: workspaceID,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q\n", adminUsername)
		return
	}

	// Update existing user: ensure password and admin role
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password":     hashedStr,
		"name":         adminName,
		"is_active":    utils.NewTrue(),
		"workspace_id": workspaceID,
		"role":         models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("Updated admin user: username=%q\n", adminUsername)
}
