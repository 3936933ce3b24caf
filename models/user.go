package models

import (
	"context"
	"errors"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/utils"
)

type User struct {
	ID          int       `gorm:"primary_key" json:"id"`
	WorkspaceId string    `gorm:"index" json:"workspace_id"`
	Username    string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name        string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email       *string   `gorm:"size:100;unique" json:"email"`
	Password    string    `gorm:"size:255;not null" json:"password"`
	IsActive    *bool     `gorm:"not null" json:"is_active"`
	Role        UserRole  `gorm:"type:enum('A', 'O', 'M');default:M" json:"role"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	WorkspaceId string   `json:"workspace_id"`
	Username    string   `json:"username" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Email       string   `json:"email"`
	Password    string   `json:"password" binding:"required"`
	Role        UserRole `json:"role"`
}

/*
caches:
	User:$username
	Token:$token -> username
	Tokens:$username -> set of live tokens
*/

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

type LoginInfo struct {
	Token         string `json:"token"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	WorkspaceId   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	Timezone      string `json:"timezone"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB()

	workspaceId := input.WorkspaceId
	if workspaceId == "" {
		if ctxWorkspace, ok := utils.GetWorkspaceIdFromContext(ctx); ok {
			workspaceId = ctxWorkspace
		}
	}
	if workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = UserRoleMember
	}

	user := User{
		WorkspaceId: workspaceId,
		Username:    input.Username,
		Name:        input.Name,
		Email:       utils.NilIfEmpty(input.Email),
		Password:    string(hashed),
		IsActive:    utils.NewTrue(),
		Role:        role,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()
	var result LoginInfo

	user := User{}

	// get User info (redis first, then db)
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return &result, err
	}
	if !exists {
		err = db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
		if err != nil {
			return nil, errors.New("invalid username or password")
		}
	}

	if user.IsActive == nil || !*user.IsActive {
		return nil, errors.New("user is deactivated")
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, errors.New("invalid username or password")
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}

	// session: token -> username lookup for SessionMiddleware
	if err := config.SetRedisValue("Token:"+token, username, utils.GetCacheLifespan()); err != nil {
		return nil, err
	}
	if err := config.AddRedisSet("Tokens:"+username, token); err != nil {
		return nil, err
	}
	if err := config.SetRedisObject("User:"+username, &user, utils.GetCacheLifespan()); err != nil {
		return nil, err
	}

	result.Token = token
	result.Name = user.Name
	result.Role = string(user.Role)
	result.WorkspaceId = user.WorkspaceId

	workspace, err := GetWorkspace(ctx, user.WorkspaceId)
	if err == nil {
		result.WorkspaceName = workspace.Name
		result.Timezone = workspace.Timezone
	}
	return &result, nil
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	err := config.RemoveRedisKey("Token:" + token)
	if err != nil {
		return false, nil
	}
	// remove current token from tokens list
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, errors.New("user not found")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
		return false, err
	}
	return true, nil
}

// GetUserByUsername resolves a user, redis first.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &user, nil
	}
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}
