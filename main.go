package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"civicsync-core/config"
	"civicsync-core/controllers"
	"civicsync-core/logger"
	"civicsync-core/routes"
	"civicsync-core/store"
	"civicsync-core/stream"
	"civicsync-core/uploads"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}
	logger.Init(os.Getenv("LOG_LEVEL"))

	ctx := context.Background()

	var issueStore store.IssueStore
	var userStore store.UserStore

	if os.Getenv("MONGODB_URI") != "" {
		db, err := config.ConnectDB(ctx)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		if err := config.EnsureIndexes(ctx, db); err != nil {
			slog.Error("Failed to create indexes", "error", err)
			os.Exit(1)
		}
		slog.Info("MongoDB connection established successfully")

		issueStore = store.NewMongoIssueStore(db)
		userStore = store.NewMongoUserStore(db)
	} else {
		slog.Warn("MONGODB_URI not set, using in-memory stores")
		issueStore = store.NewMemoryIssueStore()
		userStore = store.NewMemoryUserStore()
	}

	redisClient, err := config.ConnectRedis(ctx)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	bus := stream.NewBus()

	issueController := controllers.NewIssueController(issueStore, userStore, bus)
	if redisClient != nil {
		relay := stream.NewRelay(redisClient, bus, os.Getenv("STREAM_RELAY_CHANNEL"))
		issueController.Relay = relay
		go relay.Run(ctx)
	}

	if bucket := os.Getenv("ISSUE_IMAGES_BUCKET"); bucket != "" {
		uploader, err := uploads.NewGCSUploader(ctx, bucket)
		if err != nil {
			slog.Error("Failed to initialize image uploader", "error", err)
			os.Exit(1)
		}
		defer uploader.Close()
		issueController.Uploader = uploader
	}

	authController := controllers.NewAuthController(userStore)
	streamController := controllers.NewStreamController(bus)
	if raw := os.Getenv("STREAM_IDLE_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			streamController.IdleTimeout = d
		}
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:8000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	routes.AuthRoutes(r, authController, userStore)
	routes.IssueRoutes(r, issueController, userStore, redisClient)
	routes.StreamRoutes(r, streamController)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Server is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
