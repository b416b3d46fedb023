package routes

import (
	"github.com/gin-gonic/gin"

	"civicsync-core/controllers"
)

// StreamRoutes sets up the live-update stream route
func StreamRoutes(r *gin.Engine, sc *controllers.StreamController) {
	group := r.Group("/api/sse")
	{
		group.GET("/stream", sc.Stream)
	}
}
