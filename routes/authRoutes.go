package routes

import (
	"github.com/gin-gonic/gin"

	"civicsync-core/controllers"
	"civicsync-core/middlewares"
	"civicsync-core/store"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(r *gin.Engine, auth *controllers.AuthController, users store.UserStore) {
	group := r.Group("/api/auth")
	{
		group.POST("/register", auth.RegisterUser)
		group.POST("/login", auth.LoginUser)
		group.GET("/me", middlewares.AuthMiddleware(users), auth.GetMe)
		group.POST("/logout", auth.LogoutUser)
	}
}
