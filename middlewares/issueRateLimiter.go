package middlewares

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const defaultIssueLimitPrefix = "civicsync:issue:limit"

// IssueRateLimiter caps how many issues a user may create per day using a
// redis counter with a 24h TTL. A nil client disables the limiter.
func IssueRateLimiter(client *redis.Client, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		userIDVal, _ := c.Get(ContextUserIDKey)
		userID, ok := userIDVal.(string)
		if !ok || userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "User not authenticated",
				"kind":    "unauthenticated",
			})
			c.Abort()
			return
		}

		prefix := os.Getenv("REDIS_QUEUE_FOR_ISSUE_LIMIT")
		if prefix == "" {
			prefix = defaultIssueLimitPrefix
		}
		userKey := prefix + ":" + userID

		ctx := c.Request.Context()
		count, err := client.Incr(ctx, userKey).Result()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "redis error incrementing count",
				"kind":    "internal_error",
			})
			c.Abort()
			return
		}

		// Set TTL only for the first increment (when count = 1)
		if count == 1 {
			if err := client.Expire(ctx, userKey, 24*time.Hour).Err(); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"message": "redis error setting TTL",
					"kind":    "internal_error",
				})
				c.Abort()
				return
			}
		}

		if count > int64(limit) {
			retryAfter, _ := client.TTL(ctx, userKey).Result()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"message":     "rate limit exceeded",
				"kind":        "rate_limited",
				"retry_after": retryAfter.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
