package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-core/middlewares"
	"civicsync-core/models"
	"civicsync-core/store"
	"civicsync-core/stream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	issues *store.MemoryIssueStore
	users  *store.MemoryUserStore
	bus    *stream.Bus
}

// asUser short-circuits credential checks and attaches the given user, so
// handler behavior is tested without minting tokens.
func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(middlewares.ContextUserIDKey, user.ID.Hex())
			c.Set(middlewares.ContextUserKey, user)
		}
		c.Next()
	}
}

func newTestEnv(t *testing.T, user *models.User) *testEnv {
	t.Helper()

	env := &testEnv{
		issues: store.NewMemoryIssueStore(),
		users:  store.NewMemoryUserStore(),
		bus:    stream.NewBus(),
	}
	if user != nil {
		_, err := env.users.Create(t.Context(), user)
		require.NoError(t, err)
	}

	ic := NewIssueController(env.issues, env.users, env.bus)

	r := gin.New()
	api := r.Group("/api/issues", asUser(user))
	{
		api.POST("", ic.CreateIssue)
		api.GET("", ic.GetIssues)
		api.GET("/nearby", ic.GetNearbyIssues)
		api.GET("/my-issues", ic.GetMyIssues)
		api.GET("/officer-dashboard", ic.GetOfficerIssues)
		api.GET("/analytics", ic.GetIssueAnalytics)
		api.GET("/:id", ic.GetIssue)
		api.PATCH("/:id/status", ic.UpdateIssueStatus)
		api.POST("/:id/upvote", ic.UpvoteIssue)
		api.POST("/:id/comment", ic.AddComment)
	}
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), "body: %s", w.Body.String())
	return w, decoded
}

func citizen() *models.User {
	return &models.User{Name: "Asha", Email: "asha@example.com", Role: models.RoleCitizen}
}

func officer(location *models.UserLocation) *models.User {
	return &models.User{Name: "Ravi", Email: "ravi@example.com", Role: models.RoleOfficer, Location: location}
}

func newIssueForStore(text string, lng, lat float64) *models.Issue {
	return &models.Issue{
		Text: text,
		Location: models.GeoPoint{
			Type:        "Point",
			Coordinates: []float64{lng, lat},
		},
		Category:   "Road",
		Region:     "Bangalore",
		ReportedBy: primitive.NewObjectID(),
	}
}

func createBody(text string, lng, lat float64, region string) gin.H {
	return gin.H{
		"text":     text,
		"location": gin.H{"coordinates": []float64{lng, lat}, "address": "5th Avenue"},
		"category": "Road",
		"region":   region,
	}
}

func TestCreateIssueSuccess(t *testing.T) {
	env := newTestEnv(t, citizen())
	sub := env.bus.Subscribe()

	w, body := env.do(t, http.MethodPost, "/api/issues",
		createBody("a deep pothole has opened up near the market", 77.5946, 12.9716, "Bangalore"))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "open", data["status"])
	assert.Equal(t, "medium", data["priority"])
	assert.Equal(t, "Bangalore", data["region"])
	assert.Equal(t, float64(0), data["upvotes"])

	reporter := data["reportedBy"].(map[string]any)
	assert.Equal(t, "Asha", reporter["name"])

	select {
	case ev := <-sub.Events():
		assert.Equal(t, stream.EventIssueCreated, ev.Type)
		assert.Equal(t, data["id"], ev.IssueID)
	default:
		t.Fatal("issue_created event not broadcast")
	}
}

func TestCreateIssueDefaultsRegionToUnknown(t *testing.T) {
	env := newTestEnv(t, citizen())

	w, body := env.do(t, http.MethodPost, "/api/issues",
		createBody("streetlight has been flickering for days", 77.59, 12.97, ""))

	require.Equal(t, http.StatusCreated, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "unknown", data["region"])
}

func TestCreateIssueValidationListsEveryViolatedField(t *testing.T) {
	env := newTestEnv(t, citizen())

	w, body := env.do(t, http.MethodPost, "/api/issues", gin.H{
		"text":     "short",
		"location": gin.H{"coordinates": []float64{200, 95}},
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "validation_error", body["kind"])

	fields := body["errors"].([]any)
	assert.Contains(t, fields, "text")
	assert.Contains(t, fields, "location.coordinates")
	assert.Contains(t, fields, "category")
}

func TestCreateIssueRequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	w, body := env.do(t, http.MethodPost, "/api/issues",
		createBody("a perfectly valid issue description", 77.59, 12.97, "Bangalore"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", body["kind"])
}

func TestCreateThenQueryNearby(t *testing.T) {
	env := newTestEnv(t, citizen())

	w, _ := env.do(t, http.MethodPost, "/api/issues",
		createBody("burst pipe flooding the junction road", 77.5946, 12.9716, "Bangalore"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/issues",
		createBody("road works left unfinished near the port", 80.27, 13.08, "Chennai"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := env.do(t, http.MethodGet, "/api/issues/nearby?longitude=77.5946&latitude=12.9716", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(1), body["count"])
	data := body["data"].([]any)
	require.Len(t, data, 1)
	issue := data[0].(map[string]any)
	assert.Equal(t, "burst pipe flooding the junction road", issue["text"])
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	env := newTestEnv(t, nil)

	w, body := env.do(t, http.MethodGet, "/api/issues/nearby?longitude=77.59", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["kind"])

	w, body = env.do(t, http.MethodGet, "/api/issues/nearby?longitude=abc&latitude=12.9", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["kind"])
}

func TestNearbyRejectsNonPositiveMaxDistance(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, raw := range []string{"0", "-100", "abc"} {
		w, body := env.do(t, http.MethodGet,
			"/api/issues/nearby?longitude=77.59&latitude=12.97&maxDistance="+raw, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "maxDistance %q", raw)
		assert.Equal(t, "validation_error", body["kind"])
		assert.Contains(t, body["errors"].([]any), "maxDistance")
	}
}

func TestGetIssuesPaginationEnvelope(t *testing.T) {
	env := newTestEnv(t, citizen())
	for i := 0; i < 5; i++ {
		w, _ := env.do(t, http.MethodPost, "/api/issues",
			createBody(fmt.Sprintf("reported civic issue number %02d", i), 77.59, 12.97, "Bangalore"))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, body := env.do(t, http.MethodGet, "/api/issues?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Len(t, body["data"].([]any), 2)
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(5), pagination["total"])
	assert.Equal(t, float64(2), pagination["page"])
	assert.Equal(t, float64(2), pagination["limit"])
	assert.Equal(t, float64(3), pagination["totalPages"])
}

func TestGetIssuesFilterByRegion(t *testing.T) {
	env := newTestEnv(t, citizen())
	env.do(t, http.MethodPost, "/api/issues", createBody("an issue in the northern ward today", 77.59, 12.97, "North"))
	env.do(t, http.MethodPost, "/api/issues", createBody("an issue in the southern ward today", 77.60, 12.98, "South"))

	w, body := env.do(t, http.MethodGet, "/api/issues?region=North", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "North", data[0].(map[string]any)["region"])
}

func TestGetIssuesRejectsMalformedReportedBy(t *testing.T) {
	env := newTestEnv(t, nil)

	w, body := env.do(t, http.MethodGet, "/api/issues?reportedBy=not-hex", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["kind"])
}

func TestGetMyIssuesScopedToCaller(t *testing.T) {
	me := citizen()
	env := newTestEnv(t, me)
	env.do(t, http.MethodPost, "/api/issues", createBody("an issue that belongs to the caller", 77.59, 12.97, "Bangalore"))

	// An issue from someone else goes straight into the store.
	other := newIssueForStore("an issue reported by somebody else entirely", 77.60, 12.98)
	_, err := env.issues.Create(t.Context(), other)
	require.NoError(t, err)

	w, body := env.do(t, http.MethodGet, "/api/issues/my-issues", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "an issue that belongs to the caller", data[0].(map[string]any)["text"])
}

func TestUpvoteResponseShapeAndEvent(t *testing.T) {
	env := newTestEnv(t, citizen())
	_, created := env.do(t, http.MethodPost, "/api/issues",
		createBody("fallen tree blocking the cycle lane", 77.59, 12.97, "Bangalore"))
	id := created["data"].(map[string]any)["id"].(string)

	sub := env.bus.Subscribe()
	w, body := env.do(t, http.MethodPost, "/api/issues/"+id+"/upvote", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, id, data["id"])
	assert.Equal(t, float64(1), data["upvotes"])

	select {
	case ev := <-sub.Events():
		assert.Equal(t, stream.EventIssueUpvoted, ev.Type)
	default:
		t.Fatal("issue_upvoted event not broadcast")
	}
}

func TestUpvoteUnknownIssue(t *testing.T) {
	env := newTestEnv(t, citizen())

	w, body := env.do(t, http.MethodPost, "/api/issues/ffffffffffffffffffffffff/upvote", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["kind"])
}

func TestIssueIDFormatValidated(t *testing.T) {
	env := newTestEnv(t, citizen())

	w, body := env.do(t, http.MethodGet, "/api/issues/not-an-object-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["kind"])
}

func TestCitizenCannotUpdateStatus(t *testing.T) {
	env := newTestEnv(t, citizen())
	_, created := env.do(t, http.MethodPost, "/api/issues",
		createBody("collapsed drain cover on the high street", 77.59, 12.97, "Bangalore"))
	id := created["data"].(map[string]any)["id"].(string)

	w, body := env.do(t, http.MethodPatch, "/api/issues/"+id+"/status", gin.H{"status": "resolved"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body["kind"])

	w, body = env.do(t, http.MethodGet, "/api/issues/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "open", body["data"].(map[string]any)["status"])
}

func TestOfficerUpdatesStatus(t *testing.T) {
	env := newTestEnv(t, officer(nil))
	_, created := env.do(t, http.MethodPost, "/api/issues",
		createBody("water pipe leaking onto the footpath", 77.59, 12.97, "Bangalore"))
	id := created["data"].(map[string]any)["id"].(string)

	sub := env.bus.Subscribe()
	w, body := env.do(t, http.MethodPatch, "/api/issues/"+id+"/status", gin.H{"status": "in-progress"})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "in-progress", body["data"].(map[string]any)["status"])

	select {
	case ev := <-sub.Events():
		assert.Equal(t, stream.EventStatusChanged, ev.Type)
		assert.Equal(t, models.StatusInProgress, ev.Data["status"])
	default:
		t.Fatal("status_changed event not broadcast")
	}
}

func TestUpdateStatusRequiresStatusField(t *testing.T) {
	env := newTestEnv(t, officer(nil))
	_, created := env.do(t, http.MethodPost, "/api/issues",
		createBody("graffiti on the community center wall", 77.59, 12.97, "Bangalore"))
	id := created["data"].(map[string]any)["id"].(string)

	w, body := env.do(t, http.MethodPatch, "/api/issues/"+id+"/status", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["kind"])
}

func TestAddCommentAttachesAuthorAndBroadcasts(t *testing.T) {
	env := newTestEnv(t, citizen())
	_, created := env.do(t, http.MethodPost, "/api/issues",
		createBody("abandoned vehicle outside the school", 77.59, 12.97, "Bangalore"))
	id := created["data"].(map[string]any)["id"].(string)

	sub := env.bus.Subscribe()
	w, body := env.do(t, http.MethodPost, "/api/issues/"+id+"/comment", gin.H{"text": "seen it too"})
	require.Equal(t, http.StatusCreated, w.Code)

	comments := body["data"].(map[string]any)["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "seen it too", comments[0].(map[string]any)["text"])

	select {
	case ev := <-sub.Events():
		assert.Equal(t, stream.EventCommentAdded, ev.Type)
	default:
		t.Fatal("comment_added event not broadcast")
	}
}

func TestAddCommentRejectsEmptyText(t *testing.T) {
	env := newTestEnv(t, citizen())
	_, created := env.do(t, http.MethodPost, "/api/issues",
		createBody("broken bench in the children's park", 77.59, 12.97, "Bangalore"))
	id := created["data"].(map[string]any)["id"].(string)

	w, body := env.do(t, http.MethodPost, "/api/issues/"+id+"/comment", gin.H{"text": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["kind"])
}

func TestOfficerDashboardForbiddenForCitizens(t *testing.T) {
	env := newTestEnv(t, citizen())

	w, body := env.do(t, http.MethodGet, "/api/issues/officer-dashboard", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body["kind"])
}

func TestOfficerDashboardRegionScope(t *testing.T) {
	env := newTestEnv(t, officer(&models.UserLocation{Region: "North"}))
	env.do(t, http.MethodPost, "/api/issues", createBody("an issue in the officer's own region", 77.59, 12.97, "North"))
	env.do(t, http.MethodPost, "/api/issues", createBody("an issue far outside their jurisdiction", 77.60, 12.98, "South"))

	w, body := env.do(t, http.MethodGet, "/api/issues/officer-dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "North", data[0].(map[string]any)["region"])
}

func TestOfficerDashboardProximityFallback(t *testing.T) {
	env := newTestEnv(t, officer(&models.UserLocation{Coordinates: []float64{77.5946, 12.9716}}))
	env.do(t, http.MethodPost, "/api/issues", createBody("an issue a few blocks from the officer", 77.60, 12.975, "Anywhere"))
	env.do(t, http.MethodPost, "/api/issues", createBody("an issue in a city hours away by train", 80.27, 13.08, "Anywhere"))

	w, body := env.do(t, http.MethodGet, "/api/issues/officer-dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "an issue a few blocks from the officer", data[0].(map[string]any)["text"])
}

func TestOfficerDashboardUnconstrainedWithoutProfileLocation(t *testing.T) {
	env := newTestEnv(t, officer(nil))
	env.do(t, http.MethodPost, "/api/issues", createBody("an issue reported in one corner of town", 77.59, 12.97, "North"))
	env.do(t, http.MethodPost, "/api/issues", createBody("an issue reported in the opposite corner", 80.27, 13.08, "South"))

	w, body := env.do(t, http.MethodGet, "/api/issues/officer-dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"].([]any), 2)
}

func TestAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t, citizen())
	env.do(t, http.MethodPost, "/api/issues", createBody("deep pothole right before the flyover", 77.59, 12.97, "Bangalore"))

	w, body := env.do(t, http.MethodGet, "/api/issues/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["totalIssues"])
	assert.Len(t, data["last7Days"].([]any), 7)
}
