package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-core/models"
	"civicsync-core/store"
	authUtils "civicsync-core/utils"
)

// Context keys set by the auth middlewares.
const (
	ContextUserIDKey = "user_id"
	ContextUserKey   = "user"
)

func extractToken(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return authHeader[7:]
		}
		return authHeader
	}
	if cookie, err := c.Cookie("auth_token"); err == nil {
		return cookie
	}
	return ""
}

func resolveUser(c *gin.Context, users store.UserStore) (*models.User, bool) {
	tokenString := extractToken(c)
	if tokenString == "" {
		return nil, false
	}

	userID, err := authUtils.ParseToken(tokenString)
	if err != nil {
		return nil, false
	}

	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, false
	}

	user, err := users.GetByID(c.Request.Context(), objectID)
	if err != nil {
		return nil, false
	}
	return user, true
}

// AuthMiddleware rejects requests without a valid credential and attaches the
// resolved user to the context.
func AuthMiddleware(users store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := resolveUser(c, users)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid or missing authorization token",
				"kind":    "unauthenticated",
			})
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, user.ID.Hex())
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the user when a valid credential is present
// and continues anonymously otherwise.
func OptionalAuthMiddleware(users store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, ok := resolveUser(c, users); ok {
			c.Set(ContextUserIDKey, user.ID.Hex())
			c.Set(ContextUserKey, user)
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user attached by the middlewares.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
