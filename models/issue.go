package models

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-core/apperrors"
)

// IssueStatus enum
type IssueStatus string

const (
	StatusOpen       IssueStatus = "open"
	StatusInProgress IssueStatus = "in-progress"
	StatusResolved   IssueStatus = "resolved"
	StatusClosed     IssueStatus = "closed"
)

// ValidStatus reports whether s is one of the four issue statuses.
func ValidStatus(s IssueStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// IssuePriority enum
type IssuePriority string

const (
	PriorityLow      IssuePriority = "low"
	PriorityMedium   IssuePriority = "medium"
	PriorityHigh     IssuePriority = "high"
	PriorityCritical IssuePriority = "critical"
)

// ValidPriority reports whether p is one of the four priority levels.
func ValidPriority(p IssuePriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
}

// Longitude returns the first coordinate, or 0 if absent.
func (p GeoPoint) Longitude() float64 {
	if len(p.Coordinates) > 0 {
		return p.Coordinates[0]
	}
	return 0
}

// Latitude returns the second coordinate, or 0 if absent.
func (p GeoPoint) Latitude() float64 {
	if len(p.Coordinates) > 1 {
		return p.Coordinates[1]
	}
	return 0
}

// Comment is an embedded issue comment. Comments are append-only and kept in
// insertion order.
type Comment struct {
	User      *primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	Text      string              `bson:"text" json:"text"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}

// Issue represents a civic issue reported by a citizen.
type Issue struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Text       string             `bson:"text" json:"text"`
	ImageLink  string             `bson:"imageLink,omitempty" json:"imageLink,omitempty"`
	Location   GeoPoint           `bson:"location" json:"location"`
	Category   string             `bson:"category" json:"category"`
	Region     string             `bson:"region" json:"region"`
	Status     IssueStatus        `bson:"status" json:"status"`
	Priority   IssuePriority      `bson:"priority" json:"priority"`
	Upvotes    int64              `bson:"upvotes" json:"upvotes"`
	Comments   []Comment          `bson:"comments" json:"comments"`
	ReportedBy primitive.ObjectID `bson:"reportedBy" json:"reportedBy"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

const (
	MinTextLength = 10
	MaxTextLength = 1000
)

var imageLinkPattern = regexp.MustCompile(`^(https?://.+|data:image/.+;base64,.+)$`)

// Validate checks the whole record and returns a single validation error
// listing every violated field, or nil when the issue is well formed.
func (i *Issue) Validate() error {
	var fields []string

	if n := len(i.Text); n < MinTextLength || n > MaxTextLength {
		fields = append(fields, "text")
	}
	if len(i.Location.Coordinates) != 2 ||
		i.Location.Coordinates[0] < -180 || i.Location.Coordinates[0] > 180 ||
		i.Location.Coordinates[1] < -90 || i.Location.Coordinates[1] > 90 {
		fields = append(fields, "location.coordinates")
	}
	if i.Category == "" {
		fields = append(fields, "category")
	}
	if i.Region == "" {
		fields = append(fields, "region")
	}
	if i.ImageLink != "" && !imageLinkPattern.MatchString(i.ImageLink) {
		fields = append(fields, "imageLink")
	}
	if i.Status != "" && !ValidStatus(i.Status) {
		fields = append(fields, "status")
	}
	if i.Priority != "" && !ValidPriority(i.Priority) {
		fields = append(fields, "priority")
	}
	if i.ReportedBy.IsZero() {
		fields = append(fields, "reportedBy")
	}

	if len(fields) > 0 {
		return apperrors.NewValidation("issue validation failed", fields...)
	}
	return nil
}
