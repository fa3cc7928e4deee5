package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/MOULOUNDOU/digicode-immo/internal/api/middleware"
	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
	"github.com/MOULOUNDOU/digicode-immo/internal/storage"
	"github.com/MOULOUNDOU/digicode-immo/internal/tasks"
)

// ProfileHandler serves the caller's own profile: contact details and
// the avatar upload flow. Role changes are admin-only and live in the
// admin handler.
type ProfileHandler struct {
	cfg        *config.Config
	profiles   services.IProfileService
	storage    storage.IS3Storage
	taskClient IAsynqClient
}

func NewProfileHandler(cfg *config.Config, profiles services.IProfileService, s3 storage.IS3Storage, taskClient IAsynqClient) *ProfileHandler {
	return &ProfileHandler{cfg: cfg, profiles: profiles, storage: s3, taskClient: taskClient}
}

// GetProfile returns the caller's profile, defaulting an absent record
// to an empty client profile.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	profile, err := h.profiles.FindByID(c.Request.Context(), userID)
	if err != nil {
		profile = &models.Profile{ID: userID, Role: models.RoleClient}
	}

	c.JSON(http.StatusOK, profile)
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Whatsapp    *string `json:"whatsapp"`
	Phone       *string `json:"phone"`
	City        *string `json:"city"`
}

// UpdateProfile patches the caller's contact fields. Role and avatar
// are deliberately not settable here.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.Whatsapp != nil {
		updates["whatsapp"] = strings.TrimSpace(*req.Whatsapp)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.City != nil {
		updates["city"] = strings.TrimSpace(*req.City)
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	if err := h.profiles.UpdateFields(c.Request.Context(), userID, updates); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// PresignAvatar hands the caller an upload URL for their avatar. The
// object key is fixed per user so a new avatar replaces the old one.
func (h *ProfileHandler) PresignAvatar(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	var req presignPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename and content_type are required"})
		return
	}

	uploadURL, objectKey, err := h.storage.PresignAvatarPut(c.Request.Context(), userID.String(), req.Filename, req.ContentType)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload_url": uploadURL, "key": objectKey})
}

// ConfirmAvatar enqueues processing of the uploaded avatar. The worker
// resizes it and writes the public URL onto the profile.
func (h *ProfileHandler) ConfirmAvatar(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	var req confirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	if !strings.HasPrefix(req.Key, userID.String()+"/") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cet objet ne vous appartient pas"})
		return
	}

	payloadBytes, _ := json.Marshal(tasks.ImageTaskPayload{
		S3Key:  req.Key,
		Kind:   tasks.ImageKindAvatar,
		UserID: userID.String(),
	})
	task := asynq.NewTask(tasks.TypeImageProcess, payloadBytes)
	if _, enqueueErr := h.taskClient.EnqueueContext(c.Request.Context(), task, asynq.Queue("images")); enqueueErr != nil {
		log.Printf("ERROR enqueuing avatar task for user %s: %v", userID.String(), enqueueErr)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule avatar processing"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

// RegisterProfileRoutes wires the self-service profile endpoints onto
// the authenticated group.
func RegisterProfileRoutes(authed *gin.RouterGroup, h *ProfileHandler) {
	authed.GET("/profile", h.GetProfile)
	authed.PATCH("/profile", h.UpdateProfile)
	authed.POST("/profile/avatar/presign", h.PresignAvatar)
	authed.POST("/profile/avatar/confirm", h.ConfirmAvatar)
}
