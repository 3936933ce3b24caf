package middlewares

import (
	"context"
	"net/http"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the token header into a session and puts the
// user's identity and workspace into the request context. Requests without a
// token pass through anonymous; protected handlers check for the username.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyToken, token)
		ctx = context.WithValue(ctx, utils.ContextKeyUsername, username)

		// Tenant scoping needs the workspace id; resolve the user from the
		// redis cache, falling back to the DB.
		var user models.User
		found, err := config.GetRedisObject("User:"+username, &user)
		if err == nil && !found {
			if db := config.GetDB(); db != nil {
				err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Take(&user).Error
				found = err == nil
			}
		}
		if !found {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx = context.WithValue(ctx, utils.ContextKeyUserId, user.ID)
		ctx = utils.SetWorkspaceIdInContext(ctx, user.WorkspaceId)
		if user.Role == models.UserRoleAdmin {
			ctx = context.WithValue(ctx, utils.ContextKeyIsAdmin, true)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
