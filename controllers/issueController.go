package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-core/apperrors"
	"civicsync-core/middlewares"
	"civicsync-core/models"
	"civicsync-core/query"
	"civicsync-core/store"
	"civicsync-core/stream"
	"civicsync-core/uploads"
)

// DefaultNearbyMeters is the radius applied when a nearby query omits
// maxDistance.
const DefaultNearbyMeters = 5000.0

// IssueController handles the issue query and mutation endpoints. Successful
// mutations publish a live-update event; publishing is a controller decision,
// not a store side effect.
type IssueController struct {
	Issues   store.IssueStore
	Users    store.UserStore
	Bus      *stream.Bus
	Relay    *stream.Relay
	Uploader uploads.Uploader
}

func NewIssueController(issues store.IssueStore, users store.UserStore, bus *stream.Bus) *IssueController {
	return &IssueController{Issues: issues, Users: users, Bus: bus}
}

func (ic *IssueController) publish(ctx context.Context, event stream.Event) {
	if ic.Bus != nil {
		ic.Bus.Broadcast(event)
	}
	if ic.Relay != nil {
		_ = ic.Relay.Publish(ctx, event)
	}
}

func issueIDParam(c *gin.Context) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return primitive.NilObjectID, apperrors.NewValidation("Invalid issue ID format", "id")
	}
	return id, nil
}

type locationInput struct {
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address"`
}

// CreateIssue handles the creation of a new issue
func (ic *IssueController) CreateIssue(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.NewUnauthenticated("User not authenticated"))
		return
	}

	var input struct {
		Text      string        `json:"text"`
		ImageLink string        `json:"imageLink"`
		Location  locationInput `json:"location"`
		Category  string        `json:"category"`
		Region    string        `json:"region"`
		Priority  string        `json:"priority"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.NewValidation(err.Error()))
		return
	}

	region := input.Region
	if region == "" {
		region = "unknown"
	}

	ctx := c.Request.Context()
	issue := models.Issue{
		Text:      input.Text,
		ImageLink: uploads.Resolve(ctx, ic.Uploader, input.ImageLink),
		Location: models.GeoPoint{
			Type:        "Point",
			Coordinates: input.Location.Coordinates,
			Address:     input.Location.Address,
		},
		Category:   input.Category,
		Region:     region,
		Priority:   models.IssuePriority(input.Priority),
		ReportedBy: user.ID,
	}

	created, err := ic.Issues.Create(ctx, &issue)
	if err != nil {
		respondError(c, err)
		return
	}

	ic.publish(ctx, stream.Event{
		Type:    stream.EventIssueCreated,
		IssueID: created.ID.Hex(),
		Data: map[string]any{
			"category": created.Category,
			"region":   created.Region,
			"status":   created.Status,
		},
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Issue reported successfully",
		"data": gin.H{
			"id":         created.ID,
			"text":       created.Text,
			"imageLink":  created.ImageLink,
			"location":   created.Location,
			"category":   created.Category,
			"status":     created.Status,
			"region":     created.Region,
			"priority":   created.Priority,
			"upvotes":    created.Upvotes,
			"reportedBy": resolveUserRef(ctx, ic.Users, created.ReportedBy),
			"createdAt":  created.CreatedAt,
		},
	})
}

// GetIssue retrieves a single issue with reporter and comment-author
// references resolved.
func (ic *IssueController) GetIssue(c *gin.Context) {
	id, err := issueIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	issue, err := ic.Issues.GetByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	view := issueView(ctx, ic.Users, issue)

	comments := make([]gin.H, 0, len(issue.Comments))
	for _, comment := range issue.Comments {
		entry := gin.H{
			"text":      comment.Text,
			"createdAt": comment.CreatedAt,
		}
		if comment.User != nil {
			ref := resolveUserRef(ctx, ic.Users, *comment.User)
			entry["user"] = gin.H{"id": ref.ID, "name": ref.Name}
		}
		comments = append(comments, entry)
	}
	view["comments"] = comments

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    view,
	})
}

func listParams(c *gin.Context) (query.Params, error) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	params := query.Params{
		Status:   c.Query("status"),
		Region:   c.Query("region"),
		Category: c.Query("category"),
		Priority: c.Query("priority"),
		SortBy:   c.Query("sortBy"),
		Order:    c.Query("order"),
		Page:     page,
		Limit:    limit,
	}

	if reportedBy := c.Query("reportedBy"); reportedBy != "" {
		id, err := primitive.ObjectIDFromHex(reportedBy)
		if err != nil {
			return params, apperrors.NewValidation("Invalid reportedBy ID format", "reportedBy")
		}
		params.ReportedBy = &id
	}
	return params, nil
}

func (ic *IssueController) respondPage(c *gin.Context, spec query.Spec) {
	ctx := c.Request.Context()
	issues, total, err := ic.Issues.List(ctx, spec)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    issueViews(ctx, ic.Users, issues),
		"pagination": gin.H{
			"total":      total,
			"page":       spec.Page,
			"limit":      spec.Limit,
			"totalPages": query.TotalPages(total, spec.Limit),
		},
	})
}

// GetIssues lists issues with equality filters, sorting, and pagination.
func (ic *IssueController) GetIssues(c *gin.Context) {
	params, err := listParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	ic.respondPage(c, query.Build(params))
}

// GetMyIssues lists the caller's own reported issues.
func (ic *IssueController) GetMyIssues(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.NewUnauthenticated("User not authenticated"))
		return
	}

	params, err := listParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	params.ReportedBy = &user.ID
	ic.respondPage(c, query.Build(params))
}

// GetOfficerIssues serves the officer dashboard, constrained by the
// officer's profile region or proximity per the fallback policy.
func (ic *IssueController) GetOfficerIssues(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.NewUnauthenticated("User not authenticated"))
		return
	}
	if !user.IsOfficer() {
		respondError(c, apperrors.NewForbidden("Access denied. Only officers can access this dashboard."))
		return
	}

	params, err := listParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	ic.respondPage(c, query.ForOfficer(query.Build(params), user.Location))
}

// GetNearbyIssues returns issues within maxDistance meters of a point,
// nearest first.
func (ic *IssueController) GetNearbyIssues(c *gin.Context) {
	lngStr := c.Query("longitude")
	latStr := c.Query("latitude")
	if lngStr == "" || latStr == "" {
		respondError(c, apperrors.NewValidation("Longitude and latitude are required", "longitude", "latitude"))
		return
	}

	lng, lngErr := strconv.ParseFloat(lngStr, 64)
	lat, latErr := strconv.ParseFloat(latStr, 64)
	if lngErr != nil || latErr != nil {
		respondError(c, apperrors.NewValidation("Longitude and latitude must be numbers", "longitude", "latitude"))
		return
	}

	maxDistance := DefaultNearbyMeters
	if raw := c.Query("maxDistance"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			respondError(c, apperrors.NewValidation("maxDistance must be a positive number", "maxDistance"))
			return
		}
		maxDistance = parsed
	}

	ctx := c.Request.Context()
	issues, err := ic.Issues.Nearby(ctx, lng, lat, maxDistance)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    issueViews(ctx, ic.Users, issues),
		"count":   len(issues),
	})
}

// UpdateIssueStatus replaces an issue's status. Officer-only.
func (ic *IssueController) UpdateIssueStatus(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.NewUnauthenticated("User not authenticated"))
		return
	}

	id, err := issueIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.NewValidation(err.Error()))
		return
	}
	if input.Status == "" {
		respondError(c, apperrors.NewValidation("Status is required", "status"))
		return
	}

	ctx := c.Request.Context()
	issue, err := ic.Issues.UpdateStatus(ctx, id, models.IssueStatus(input.Status), user.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	ic.publish(ctx, stream.Event{
		Type:    stream.EventStatusChanged,
		IssueID: issue.ID.Hex(),
		Data:    map[string]any{"status": issue.Status},
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Issue status updated successfully",
		"data":    issueView(ctx, ic.Users, issue),
	})
}

// UpvoteIssue increments an issue's upvote counter by one.
func (ic *IssueController) UpvoteIssue(c *gin.Context) {
	id, err := issueIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	issue, err := ic.Issues.Upvote(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	ic.publish(ctx, stream.Event{
		Type:    stream.EventIssueUpvoted,
		IssueID: issue.ID.Hex(),
		Data:    map[string]any{"upvotes": issue.Upvotes},
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Issue upvoted successfully",
		"data": gin.H{
			"id":      issue.ID,
			"upvotes": issue.Upvotes,
		},
	})
}

// AddComment appends a comment to an issue. The author is attached when the
// caller is authenticated.
func (ic *IssueController) AddComment(c *gin.Context) {
	id, err := issueIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.NewValidation(err.Error()))
		return
	}

	var userID *primitive.ObjectID
	if user, ok := middlewares.CurrentUser(c); ok {
		userID = &user.ID
	}

	ctx := c.Request.Context()
	issue, err := ic.Issues.AddComment(ctx, id, userID, input.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	ic.publish(ctx, stream.Event{
		Type:    stream.EventCommentAdded,
		IssueID: issue.ID.Hex(),
		Data:    map[string]any{"comments": len(issue.Comments)},
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Comment added successfully",
		"data":    issueView(ctx, ic.Users, issue),
	})
}

// GetIssueAnalytics returns analytical data about issues
func (ic *IssueController) GetIssueAnalytics(c *gin.Context) {
	analytics, err := ic.Issues.Analytics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    analytics,
	})
}
