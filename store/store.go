// Package store provides durable keyed storage for issues and users with
// atomic mutation primitives and spatial queries. Two implementations exist:
// a MongoDB-backed store for production and an in-memory store for tests and
// local development.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-core/models"
	"civicsync-core/query"
)

// IssueStore is the authoritative owner of issue records.
type IssueStore interface {
	// Create validates and persists a new issue. Validation failures report
	// every violated field at once.
	Create(ctx context.Context, issue *models.Issue) (*models.Issue, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	// List applies the spec's filters, sort, and pagination window. The
	// returned total counts matches before pagination.
	List(ctx context.Context, spec query.Spec) ([]models.Issue, int64, error)
	// Nearby returns issues within maxMeters of the point, nearest first,
	// by great-circle distance.
	Nearby(ctx context.Context, lng, lat, maxMeters float64) ([]models.Issue, error)
	// Upvote atomically increments the upvote counter by exactly one.
	Upvote(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	// AddComment atomically appends a comment, preserving arrival order.
	AddComment(ctx context.Context, id primitive.ObjectID, userID *primitive.ObjectID, text string) (*models.Issue, error)
	// UpdateStatus replaces the status. Only officers and admins may call it.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IssueStatus, callerRole models.Role) (*models.Issue, error)
	Analytics(ctx context.Context) (*Analytics, error)
}

// UserStore is the authoritative owner of user records.
type UserStore interface {
	// Create persists a new user; a duplicate email yields a conflict error.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// CategoryCount is one slice of the issues-by-category breakdown.
type CategoryCount struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// DayCount is the number of issues created on one calendar day.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// TopIssue is a most-upvoted issue summary.
type TopIssue struct {
	ID       primitive.ObjectID `json:"id"`
	Text     string             `json:"text"`
	Category string             `json:"category"`
	Upvotes  int64              `json:"upvotes"`
}

// Analytics aggregates issue counts for the dashboard.
type Analytics struct {
	IssuesByCategory []CategoryCount `json:"issuesByCategory"`
	Last7Days        []DayCount      `json:"last7Days"`
	TopIssues        []TopIssue      `json:"topIssues"`
	TotalIssues      int64           `json:"totalIssues"`
	TotalUpvotes     int64           `json:"totalUpvotes"`
	OpenIssues       int64           `json:"openIssues"`
}

// prepareIssue applies defaults, validates the record, and stamps identity
// and timestamps. Validation runs before any write so a failed create leaves
// no partial state.
func prepareIssue(issue *models.Issue) error {
	if issue.Status == "" {
		issue.Status = models.StatusOpen
	}
	if issue.Priority == "" {
		issue.Priority = models.PriorityMedium
	}
	if issue.Location.Type == "" {
		issue.Location.Type = "Point"
	}
	if issue.Comments == nil {
		issue.Comments = []models.Comment{}
	}
	if err := issue.Validate(); err != nil {
		return err
	}
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	return nil
}

func roleMayUpdateStatus(r models.Role) bool {
	return r == models.RoleOfficer || r == models.RoleAdmin
}
