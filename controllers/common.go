package controllers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-core/apperrors"
	"civicsync-core/models"
	"civicsync-core/store"
)

// respondError renders the stable failure envelope. Validation failures also
// enumerate every violated field. Unrecognized errors are logged and mapped
// to an internal error.
func respondError(c *gin.Context, err error) {
	if appErr := apperrors.As(err); appErr != nil {
		body := gin.H{
			"success": false,
			"message": appErr.Message,
			"kind":    appErr.Kind,
		}
		if len(appErr.Fields) > 0 {
			body["errors"] = appErr.Fields
		}
		c.JSON(appErr.Code, body)
		return
	}

	slog.Error("unhandled error", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": "Internal server error",
		"kind":    apperrors.KindInternal,
	})
}

// userRef is the resolved reference shape embedded in issue responses.
type userRef struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name,omitempty"`
	Email string             `json:"email,omitempty"`
}

// resolveUserRef looks up reference details best-effort; a missing user
// still yields the bare id.
func resolveUserRef(ctx context.Context, users store.UserStore, id primitive.ObjectID) userRef {
	ref := userRef{ID: id}
	if users == nil {
		return ref
	}
	if user, err := users.GetByID(ctx, id); err == nil {
		ref.Name = user.Name
		ref.Email = user.Email
	}
	return ref
}

// issueView renders an issue with its reporter reference resolved.
func issueView(ctx context.Context, users store.UserStore, issue *models.Issue) gin.H {
	return gin.H{
		"id":         issue.ID,
		"text":       issue.Text,
		"imageLink":  issue.ImageLink,
		"location":   issue.Location,
		"category":   issue.Category,
		"region":     issue.Region,
		"status":     issue.Status,
		"priority":   issue.Priority,
		"upvotes":    issue.Upvotes,
		"comments":   issue.Comments,
		"reportedBy": resolveUserRef(ctx, users, issue.ReportedBy),
		"createdAt":  issue.CreatedAt,
		"updatedAt":  issue.UpdatedAt,
	}
}

func issueViews(ctx context.Context, users store.UserStore, issues []models.Issue) []gin.H {
	views := make([]gin.H, 0, len(issues))
	for i := range issues {
		views = append(views, issueView(ctx, users, &issues[i]))
	}
	return views
}
