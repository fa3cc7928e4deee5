package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/MOULOUNDOU/digicode-immo/internal/api/middleware"
	"github.com/MOULOUNDOU/digicode-immo/internal/auth"
	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
	"github.com/MOULOUNDOU/digicode-immo/internal/tasks"
)

// AuthHandler serves registration, login and the current-session probe.
type AuthHandler struct {
	cfg        *config.Config
	users      services.IUserService
	profiles   services.IProfileService
	taskClient IAsynqClient
}

func NewAuthHandler(cfg *config.Config, users services.IUserService, profiles services.IProfileService, taskClient IAsynqClient) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, profiles: profiles, taskClient: taskClient}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account, seeds its client profile and returns a
// session token. A welcome email goes out through the task queue so the
// response does not wait on SMTP.
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Register(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Un compte existe déjà avec cet email"})
			return
		}
		if services.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:      user.Email,
		Subject: "Bienvenue sur Digicode Immo",
		Body:    "Votre compte a bien été créé. Connectez-vous pour publier ou rechercher des annonces.",
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)
	if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task, asynq.Queue("critical")); enqueueErr != nil {
		log.Printf("ERROR enqueuing welcome email for user %s: %v", user.ID.String(), enqueueErr)
	}

	token, err := auth.GenerateJWT(user.ID, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration succeeded but session creation failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

// Login authenticates credentials and returns a session token. The
// token carries only the user id: role is resolved from the profile on
// every request, so a role change takes effect without re-login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Email ou mot de passe incorrect"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session creation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me returns the calling user's account, profile and resolved role.
// The front-end uses the role to pick which dashboard to render.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.FindUserByID(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load account"})
		return
	}

	role, err := h.profiles.ResolveRole(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to resolve account role"})
		return
	}

	// Missing profile is normal for a fresh account: the role default
	// applies and the profile renders empty.
	profile, err := h.profiles.FindByID(ctx, userID)
	if err != nil {
		profile = &models.Profile{ID: userID, Role: role}
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "profile": profile, "role": role})
}

// RegisterAuthRoutes wires the auth endpoints onto the public v1 group.
func RegisterAuthRoutes(v1 *gin.RouterGroup, authed *gin.RouterGroup, h *AuthHandler) {
	v1.POST("/auth/register", h.Register)
	v1.POST("/auth/login", h.Login)
	authed.GET("/auth/session", h.Me)
}
