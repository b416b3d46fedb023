package config

import (
	"context"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectDB connects to MongoDB using MONGODB_URI and returns the database
// named by MONGODB_DB (default "civicsync").
func ConnectDB(ctx context.Context) (*mongo.Database, error) {
	mongoURI := os.Getenv("MONGODB_URI")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	dbName := os.Getenv("MONGODB_DB")
	if dbName == "" {
		dbName = "civicsync"
	}
	return client.Database(dbName), nil
}

// EnsureIndexes creates the indexes the query paths rely on: the 2dsphere
// index backing spherical-distance queries, compound indexes for the common
// filter combinations, and the unique email index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	issueIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "region", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "reportedBy", Value: 1}}},
	}
	if _, err := db.Collection("issues").Indexes().CreateMany(ctx, issueIndexes); err != nil {
		return err
	}

	emailIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := db.Collection("users").Indexes().CreateOne(ctx, emailIndex)
	return err
}
