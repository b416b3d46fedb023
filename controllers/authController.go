package controllers

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"civicsync-core/apperrors"
	"civicsync-core/middlewares"
	"civicsync-core/models"
	"civicsync-core/store"
	authUtils "civicsync-core/utils"
)

// AuthController handles registration, login, and session endpoints.
type AuthController struct {
	Users store.UserStore
}

func NewAuthController(users store.UserStore) *AuthController {
	return &AuthController{Users: users}
}

type registerLocationInput struct {
	Coordinates []float64 `json:"coordinates"`
	Region      string    `json:"region"`
	Address     string    `json:"address"`
}

// RegisterUser handles user registration
func (ac *AuthController) RegisterUser(c *gin.Context) {
	var input struct {
		Name     string                 `json:"name" binding:"required,min=2,max=50"`
		Email    string                 `json:"email" binding:"required,email"`
		Password string                 `json:"password" binding:"required,min=6"`
		Role     string                 `json:"role"`
		Location *registerLocationInput `json:"location"`
		Phone    string                 `json:"phone"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.NewValidation(err.Error()))
		return
	}

	role := models.NormalizeRole(input.Role)
	if role == models.RoleOfficer && input.Location == nil {
		respondError(c, apperrors.NewValidation("location is required for officers", "location"))
		return
	}

	user := models.User{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		Role:     role,
		Phone:    input.Phone,
	}
	if input.Location != nil {
		user.Location = &models.UserLocation{
			Type:        "Point",
			Coordinates: input.Location.Coordinates,
			Region:      input.Location.Region,
			Address:     input.Location.Address,
		}
	}

	if err := user.HashPassword(); err != nil {
		respondError(c, apperrors.NewInternal("failed to hash password"))
		return
	}

	created, err := ac.Users.Create(c.Request.Context(), &user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"data": gin.H{
			"id":        created.ID,
			"name":      created.Name,
			"email":     created.Email,
			"role":      created.Role,
			"createdAt": created.CreatedAt,
		},
	})
}

// LoginUser handles user login
func (ac *AuthController) LoginUser(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.NewValidation(err.Error()))
		return
	}

	user, err := ac.Users.GetByEmail(c.Request.Context(), input.Email)
	if err != nil {
		// An unknown email is invalid credentials; anything else is a real
		// storage failure and must surface as such.
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			respondError(c, apperrors.NewUnauthenticated("Invalid credentials"))
			return
		}
		respondError(c, err)
		return
	}
	if !user.ComparePassword(input.Password) {
		respondError(c, apperrors.NewUnauthenticated("Invalid credentials"))
		return
	}

	token, err := authUtils.GenerateToken(user.ID.Hex())
	if err != nil {
		respondError(c, apperrors.NewInternal("failed to generate token"))
		return
	}

	environment := os.Getenv("GO_ENV")
	domain := os.Getenv("DOMAIN")

	// For production, don't set domain to allow cross-origin cookies
	if environment == "production" {
		domain = ""
	}

	cookie := &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		MaxAge:   int((72 * time.Hour).Seconds()),
		Path:     "/",
		Domain:   domain,
		Secure:   environment == "production",
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	}
	http.SetCookie(c.Writer, cookie)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"data": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// GetMe retrieves the authenticated user's information
func (ac *AuthController) GetMe(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.NewUnauthenticated("User not authenticated"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// LogoutUser handles user logout by clearing the auth_token cookie
func (ac *AuthController) LogoutUser(c *gin.Context) {
	environment := os.Getenv("GO_ENV")
	domain := os.Getenv("DOMAIN")

	c.SetCookie("auth_token", "", -1, "/", domain, environment == "production", true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out successfully",
	})
}
