package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
)

func registerAuthRoutes(r *gin.Engine) {
	r.POST("/auth/signup", signupHandler())
	r.POST("/auth/login", loginHandler())
	r.POST("/auth/logout", logoutHandler())
	r.GET("/auth/me", meHandler())
}

type signupRequest struct {
	Workspace models.NewWorkspace `json:"workspace" binding:"required"`
	Username  string              `json:"username" binding:"required"`
	Name      string              `json:"name" binding:"required"`
	Password  string              `json:"password" binding:"required,min=8"`
}

// signupHandler creates a workspace plus its owner account.
func signupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		workspace, err := models.CreateWorkspace(c.Request.Context(), &req.Workspace)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &models.NewUser{
			WorkspaceId: workspace.ID.String(),
			Username:    req.Username,
			Name:        req.Name,
			Email:       req.Workspace.Email,
			Password:    req.Password,
			Role:        models.UserRoleOwner,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"workspace_id": workspace.ID.String(),
			"user_id":      user.ID,
		})
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil || !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logged_out": true})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := utils.GetUsernameFromContext(c.Request.Context())
		if !ok || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user, err := models.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user.PrepareGive()
		c.JSON(http.StatusOK, user)
	}
}

// requireSession rejects anonymous requests; SessionMiddleware has already
// populated the context for authenticated ones.
func requireSession(c *gin.Context) bool {
	if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}

func authorizeAdminOnly(ctx context.Context) error {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return errors.New("unauthorized")
	}

	var user models.User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return err
	}
	if !exists {
		db := config.GetDB()
		if db == nil {
			return errors.New("db is nil")
		}
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return errors.New("unauthorized")
		}
	}
	if user.Role != models.UserRoleAdmin {
		return errors.New("unauthorized")
	}
	return nil
}
