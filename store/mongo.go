package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"civicsync-core/apperrors"
	"civicsync-core/geo"
	"civicsync-core/models"
	"civicsync-core/query"
)

// MongoIssueStore stores issues in a MongoDB collection. Counter increments
// and comment appends use atomic update operators so concurrent mutations on
// the same issue never lose updates, and proximity queries ride the 2dsphere
// index.
type MongoIssueStore struct {
	col *mongo.Collection
}

func NewMongoIssueStore(db *mongo.Database) *MongoIssueStore {
	return &MongoIssueStore{col: db.Collection("issues")}
}

func (s *MongoIssueStore) Create(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	if err := prepareIssue(issue); err != nil {
		return nil, err
	}

	if _, err := s.col.InsertOne(ctx, issue); err != nil {
		slog.Error("failed to insert issue", "error", err)
		return nil, apperrors.NewInternal("failed to create issue")
	}
	return issue, nil
}

func (s *MongoIssueStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFound("issue not found")
		}
		slog.Error("failed to fetch issue", "id", id.Hex(), "error", err)
		return nil, apperrors.NewInternal("failed to retrieve issue")
	}
	return &issue, nil
}

// equalityFilter builds the conjunctive equality filter set. Absent
// parameters are omitted entirely.
func equalityFilter(spec query.Spec) bson.M {
	filter := bson.M{}
	if spec.Status != "" {
		filter["status"] = spec.Status
	}
	if spec.Region != "" {
		filter["region"] = spec.Region
	}
	if spec.Category != "" {
		filter["category"] = spec.Category
	}
	if spec.Priority != "" {
		filter["priority"] = spec.Priority
	}
	if spec.ReportedBy != nil {
		filter["reportedBy"] = *spec.ReportedBy
	}
	if spec.Location.Kind == query.LocationRegion {
		filter["region"] = spec.Location.Region
	}
	return filter
}

func nearFilter(lng, lat, maxMeters float64) bson.M {
	return bson.M{
		"$near": bson.M{
			"$geometry": bson.M{
				"type":        "Point",
				"coordinates": []float64{lng, lat},
			},
			"$maxDistance": maxMeters,
		},
	}
}

func (s *MongoIssueStore) List(ctx context.Context, spec query.Spec) ([]models.Issue, int64, error) {
	filter := equalityFilter(spec)
	proximity := spec.Location.Kind == query.LocationProximity

	// CountDocuments rejects $near, so proximity counts use the equivalent
	// $centerSphere bound instead.
	countFilter := filter
	if proximity {
		countFilter = equalityFilter(spec)
		countFilter["location"] = bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": []interface{}{
					[]float64{spec.Location.Longitude, spec.Location.Latitude},
					spec.Location.RadiusMeters / geo.EarthRadiusMeters,
				},
			},
		}
	}

	total, err := s.col.CountDocuments(ctx, countFilter)
	if err != nil {
		slog.Error("failed to count issues", "error", err)
		return nil, 0, apperrors.NewInternal("failed to count issues")
	}

	findOptions := options.Find().
		SetSkip(int64(spec.Skip())).
		SetLimit(int64(spec.Limit))

	if proximity {
		// $near already orders results nearest first.
		filter["location"] = nearFilter(spec.Location.Longitude, spec.Location.Latitude, spec.Location.RadiusMeters)
	} else {
		direction := -1
		if !spec.Descending() {
			direction = 1
		}
		findOptions.SetSort(bson.D{{Key: spec.SortBy, Value: direction}})
	}

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		slog.Error("failed to list issues", "error", err)
		return nil, 0, apperrors.NewInternal("failed to retrieve issues")
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		slog.Error("failed to decode issues", "error", err)
		return nil, 0, apperrors.NewInternal("failed to decode issues")
	}
	return issues, total, nil
}

func (s *MongoIssueStore) Nearby(ctx context.Context, lng, lat, maxMeters float64) ([]models.Issue, error) {
	filter := bson.M{"location": nearFilter(lng, lat, maxMeters)}

	cursor, err := s.col.Find(ctx, filter)
	if err != nil {
		slog.Error("failed to run nearby query", "error", err)
		return nil, apperrors.NewInternal("failed to retrieve nearby issues")
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		slog.Error("failed to decode nearby issues", "error", err)
		return nil, apperrors.NewInternal("failed to decode nearby issues")
	}
	return issues, nil
}

func (s *MongoIssueStore) Upvote(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	update := bson.M{
		"$inc": bson.M{"upvotes": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.findOneAndUpdate(ctx, id, update, "failed to upvote issue")
}

func (s *MongoIssueStore) AddComment(ctx context.Context, id primitive.ObjectID, userID *primitive.ObjectID, text string) (*models.Issue, error) {
	if text == "" {
		return nil, apperrors.NewValidation("comment text is required", "text")
	}

	comment := models.Comment{
		User:      userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.findOneAndUpdate(ctx, id, update, "failed to add comment")
}

func (s *MongoIssueStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IssueStatus, callerRole models.Role) (*models.Issue, error) {
	if !roleMayUpdateStatus(callerRole) {
		return nil, apperrors.NewForbidden("only officers can update issue status")
	}
	if !models.ValidStatus(status) {
		return nil, apperrors.NewValidation("status must be one of: open, in-progress, resolved, closed", "status")
	}

	update := bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()},
	}
	return s.findOneAndUpdate(ctx, id, update, "failed to update issue status")
}

func (s *MongoIssueStore) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M, failMsg string) (*models.Issue, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var issue models.Issue
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFound("issue not found")
		}
		slog.Error(failMsg, "id", id.Hex(), "error", err)
		return nil, apperrors.NewInternal(failMsg)
	}
	return &issue, nil
}

func (s *MongoIssueStore) Analytics(ctx context.Context) (*Analytics, error) {
	result := &Analytics{
		IssuesByCategory: []CategoryCount{},
		TopIssues:        []TopIssue{},
	}

	categoryPipeline := []bson.M{
		{"$group": bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}},
		{"$project": bson.M{"name": "$_id", "value": "$count", "_id": 0}},
	}
	cursor, err := s.col.Aggregate(ctx, categoryPipeline)
	if err != nil {
		slog.Error("failed to aggregate categories", "error", err)
		return nil, apperrors.NewInternal("failed to compute analytics")
	}
	if err := cursor.All(ctx, &result.IssuesByCategory); err != nil {
		return nil, apperrors.NewInternal("failed to decode analytics")
	}

	for i := 6; i >= 0; i-- {
		day := time.Now().UTC().AddDate(0, 0, -i)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

		count, err := s.col.CountDocuments(ctx, bson.M{
			"createdAt": bson.M{"$gte": day, "$lt": day.AddDate(0, 0, 1)},
		})
		if err != nil {
			count = 0
		}
		result.Last7Days = append(result.Last7Days, DayCount{Date: day.Format("2006-01-02"), Count: count})
	}

	topOptions := options.Find().
		SetSort(bson.D{{Key: "upvotes", Value: -1}}).
		SetLimit(5)
	topCursor, err := s.col.Find(ctx, bson.M{}, topOptions)
	if err == nil {
		var top []models.Issue
		if err := topCursor.All(ctx, &top); err == nil {
			for _, issue := range top {
				result.TopIssues = append(result.TopIssues, TopIssue{
					ID:       issue.ID,
					Text:     issue.Text,
					Category: issue.Category,
					Upvotes:  issue.Upvotes,
				})
			}
		}
	}

	if result.TotalIssues, err = s.col.CountDocuments(ctx, bson.M{}); err != nil {
		result.TotalIssues = 0
	}

	upvotePipeline := []bson.M{
		{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$upvotes"}}},
	}
	if upCursor, err := s.col.Aggregate(ctx, upvotePipeline); err == nil {
		var sums []struct {
			Total int64 `bson:"total"`
		}
		if err := upCursor.All(ctx, &sums); err == nil && len(sums) > 0 {
			result.TotalUpvotes = sums[0].Total
		}
	}

	openCount, err := s.col.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []models.IssueStatus{models.StatusOpen, models.StatusInProgress}},
	})
	if err == nil {
		result.OpenIssues = openCount
	}

	return result, nil
}

// MongoUserStore stores users in a MongoDB collection. Email uniqueness is
// enforced by the unique index created at startup.
type MongoUserStore struct {
	col *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{col: db.Collection("users")}
}

func (s *MongoUserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.NewConflict("user with this email already exists")
		}
		slog.Error("failed to insert user", "error", err)
		return nil, apperrors.NewInternal("failed to create user")
	}
	return user, nil
}

func (s *MongoUserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFound("user not found")
		}
		slog.Error("failed to fetch user", "id", id.Hex(), "error", err)
		return nil, apperrors.NewInternal("failed to retrieve user")
	}
	return &user, nil
}

func (s *MongoUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFound("user not found")
		}
		slog.Error("failed to fetch user", "email", email, "error", err)
		return nil, apperrors.NewInternal("failed to retrieve user")
	}
	return &user, nil
}
