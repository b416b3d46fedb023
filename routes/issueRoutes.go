package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"civicsync-core/controllers"
	"civicsync-core/middlewares"
	"civicsync-core/store"
)

// dailyIssueLimit caps how many issues a single user may create per day.
const dailyIssueLimit = 20

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, issues *controllers.IssueController, users store.UserStore, redisClient *redis.Client) {
	group := r.Group("/api/issues")
	{
		group.POST("/create",
			middlewares.AuthMiddleware(users),
			middlewares.IssueRateLimiter(redisClient, dailyIssueLimit),
			issues.CreateIssue)

		group.GET("", middlewares.OptionalAuthMiddleware(users), issues.GetIssues)
		group.GET("/nearby", issues.GetNearbyIssues)
		group.GET("/my-issues", middlewares.AuthMiddleware(users), issues.GetMyIssues)
		group.GET("/officer-dashboard", middlewares.AuthMiddleware(users), issues.GetOfficerIssues)
		group.GET("/analytics", issues.GetIssueAnalytics)
		group.GET("/:id", issues.GetIssue)

		group.PATCH("/:id/status", middlewares.AuthMiddleware(users), issues.UpdateIssueStatus)
		group.POST("/:id/upvote", issues.UpvoteIssue)
		group.POST("/:id/comment", middlewares.OptionalAuthMiddleware(users), issues.AddComment)
	}
}
