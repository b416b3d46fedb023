package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-core/apperrors"
	"civicsync-core/geo"
	"civicsync-core/models"
	"civicsync-core/query"
)

// MemoryIssueStore keeps issues in process memory, backed by a grid spatial
// index. Mutations on the same issue serialize on a per-issue mutex;
// different issues never contend. It powers tests and running without a
// MongoDB instance.
type MemoryIssueStore struct {
	mu     sync.RWMutex
	issues map[primitive.ObjectID]*issueEntry
	index  *geo.Index
}

type issueEntry struct {
	mu    sync.Mutex
	issue models.Issue
}

func NewMemoryIssueStore() *MemoryIssueStore {
	return &MemoryIssueStore{
		issues: make(map[primitive.ObjectID]*issueEntry),
		index:  geo.NewIndex(),
	}
}

func cloneIssue(src *models.Issue) *models.Issue {
	dst := *src
	dst.Location.Coordinates = append([]float64(nil), src.Location.Coordinates...)
	dst.Comments = append([]models.Comment(nil), src.Comments...)
	return &dst
}

func (s *MemoryIssueStore) Create(_ context.Context, issue *models.Issue) (*models.Issue, error) {
	if err := prepareIssue(issue); err != nil {
		return nil, err
	}

	entry := &issueEntry{issue: *cloneIssue(issue)}

	s.mu.Lock()
	s.issues[issue.ID] = entry
	s.mu.Unlock()

	s.index.Insert(issue.ID.Hex(), issue.Location.Longitude(), issue.Location.Latitude())
	return issue, nil
}

func (s *MemoryIssueStore) entry(id primitive.ObjectID) (*issueEntry, error) {
	s.mu.RLock()
	entry, ok := s.issues[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFound("issue not found")
	}
	return entry, nil
}

func (s *MemoryIssueStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneIssue(&entry.issue), nil
}

func matchesSpec(issue *models.Issue, spec query.Spec) bool {
	if spec.Status != "" && string(issue.Status) != spec.Status {
		return false
	}
	if spec.Region != "" && issue.Region != spec.Region {
		return false
	}
	if spec.Category != "" && issue.Category != spec.Category {
		return false
	}
	if spec.Priority != "" && string(issue.Priority) != spec.Priority {
		return false
	}
	if spec.ReportedBy != nil && issue.ReportedBy != *spec.ReportedBy {
		return false
	}
	if spec.Location.Kind == query.LocationRegion && issue.Region != spec.Location.Region {
		return false
	}
	return true
}

func (s *MemoryIssueStore) snapshot() []models.Issue {
	s.mu.RLock()
	entries := make([]*issueEntry, 0, len(s.issues))
	for _, entry := range s.issues {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	issues := make([]models.Issue, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		issues = append(issues, *cloneIssue(&entry.issue))
		entry.mu.Unlock()
	}
	return issues
}

func (s *MemoryIssueStore) List(_ context.Context, spec query.Spec) ([]models.Issue, int64, error) {
	matched := []models.Issue{}
	distances := map[primitive.ObjectID]float64{}

	proximity := spec.Location.Kind == query.LocationProximity
	for _, issue := range s.snapshot() {
		if !matchesSpec(&issue, spec) {
			continue
		}
		if proximity {
			d := geo.Distance(
				spec.Location.Longitude, spec.Location.Latitude,
				issue.Location.Longitude(), issue.Location.Latitude(),
			)
			if d > spec.Location.RadiusMeters {
				continue
			}
			distances[issue.ID] = d
		}
		matched = append(matched, issue)
	}

	if proximity {
		sort.Slice(matched, func(i, j int) bool {
			return distances[matched[i].ID] < distances[matched[j].ID]
		})
	} else {
		sortIssues(matched, spec.SortBy, spec.Descending())
	}

	total := int64(len(matched))
	start := spec.Skip()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + spec.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func sortIssues(issues []models.Issue, field string, desc bool) {
	less := func(a, b *models.Issue) bool {
		switch field {
		case "updatedAt":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "upvotes":
			return a.Upvotes < b.Upvotes
		case "priority":
			return a.Priority < b.Priority
		case "category":
			return strings.Compare(a.Category, b.Category) < 0
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if desc {
			return less(&issues[j], &issues[i])
		}
		return less(&issues[i], &issues[j])
	})
}

func (s *MemoryIssueStore) Nearby(_ context.Context, lng, lat, maxMeters float64) ([]models.Issue, error) {
	matches := s.index.Within(lng, lat, maxMeters)

	issues := []models.Issue{}
	for _, match := range matches {
		id, err := primitive.ObjectIDFromHex(match.ID)
		if err != nil {
			continue
		}
		entry, err := s.entry(id)
		if err != nil {
			continue
		}
		entry.mu.Lock()
		issues = append(issues, *cloneIssue(&entry.issue))
		entry.mu.Unlock()
	}
	return issues, nil
}

func (s *MemoryIssueStore) Upvote(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.issue.Upvotes++
	entry.issue.UpdatedAt = time.Now().UTC()
	return cloneIssue(&entry.issue), nil
}

func (s *MemoryIssueStore) AddComment(_ context.Context, id primitive.ObjectID, userID *primitive.ObjectID, text string) (*models.Issue, error) {
	if text == "" {
		return nil, apperrors.NewValidation("comment text is required", "text")
	}

	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.issue.Comments = append(entry.issue.Comments, models.Comment{
		User:      userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	entry.issue.UpdatedAt = time.Now().UTC()
	return cloneIssue(&entry.issue), nil
}

func (s *MemoryIssueStore) UpdateStatus(_ context.Context, id primitive.ObjectID, status models.IssueStatus, callerRole models.Role) (*models.Issue, error) {
	if !roleMayUpdateStatus(callerRole) {
		return nil, apperrors.NewForbidden("only officers can update issue status")
	}
	if !models.ValidStatus(status) {
		return nil, apperrors.NewValidation("status must be one of: open, in-progress, resolved, closed", "status")
	}

	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.issue.Status = status
	entry.issue.UpdatedAt = time.Now().UTC()
	return cloneIssue(&entry.issue), nil
}

func (s *MemoryIssueStore) Analytics(_ context.Context) (*Analytics, error) {
	result := &Analytics{
		IssuesByCategory: []CategoryCount{},
		TopIssues:        []TopIssue{},
	}

	byCategory := map[string]int64{}
	byDay := map[string]int64{}
	all := s.snapshot()

	for _, issue := range all {
		byCategory[issue.Category]++
		byDay[issue.CreatedAt.UTC().Format("2006-01-02")]++
		result.TotalUpvotes += issue.Upvotes
		if issue.Status == models.StatusOpen || issue.Status == models.StatusInProgress {
			result.OpenIssues++
		}
	}
	result.TotalIssues = int64(len(all))

	for name, value := range byCategory {
		result.IssuesByCategory = append(result.IssuesByCategory, CategoryCount{Name: name, Value: value})
	}
	sort.Slice(result.IssuesByCategory, func(i, j int) bool {
		return result.IssuesByCategory[i].Name < result.IssuesByCategory[j].Name
	})

	for i := 6; i >= 0; i-- {
		day := time.Now().UTC().AddDate(0, 0, -i)
		date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		result.Last7Days = append(result.Last7Days, DayCount{Date: date, Count: byDay[date]})
	}

	sortIssues(all, "upvotes", true)
	for i := 0; i < len(all) && i < 5; i++ {
		result.TopIssues = append(result.TopIssues, TopIssue{
			ID:       all[i].ID,
			Text:     all[i].Text,
			Category: all[i].Category,
			Upvotes:  all[i].Upvotes,
		})
	}

	return result, nil
}

// MemoryUserStore keeps users in process memory.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[primitive.ObjectID]models.User
	byEmail map[string]primitive.ObjectID
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[primitive.ObjectID]models.User),
		byEmail: make(map[string]primitive.ObjectID),
	}
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return nil, apperrors.NewConflict("user with this email already exists")
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	s.byID[user.ID] = *user
	s.byEmail[user.Email] = user.ID
	return user, nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFound("user not found")
	}
	return &user, nil
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, apperrors.NewNotFound("user not found")
	}
	user := s.byID[id]
	return &user, nil
}
