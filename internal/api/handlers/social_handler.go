package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MOULOUNDOU/digicode-immo/internal/api/middleware"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// SocialHandler serves likes and comments. These live in the demo-local
// store, not the backend: they are per-instance and not synced across
// sessions or devices, which the front-end discloses to users.
type SocialHandler struct {
	social services.ISocialService
}

func NewSocialHandler(social services.ISocialService) *SocialHandler {
	return &SocialHandler{social: social}
}

// listingIDParam validates the :id path segment. Social rows key on the
// string form of the id.
func listingIDParam(c *gin.Context) (string, bool) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return "", false
	}
	return id.String(), true
}

// ToggleLike flips the caller's like on a listing and returns the
// resulting state. Toggling twice restores the original state.
func (h *SocialHandler) ToggleLike(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	listingID, ok := listingIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	liked, err := h.social.ToggleLike(ctx, listingID, userID.String())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle like"})
		return
	}

	count, err := h.social.LikeCount(ctx, listingID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count likes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": liked, "likes": count})
}

// GetSocial returns the like count, the caller's like state when
// authenticated, and the comments for a listing, newest first.
func (h *SocialHandler) GetSocial(c *gin.Context) {
	listingID, ok := listingIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	count, err := h.social.LikeCount(ctx, listingID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count likes"})
		return
	}

	comments, err := h.social.CommentsForListing(ctx, listingID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load comments"})
		return
	}

	resp := gin.H{"likes": count, "comments": comments}
	if userID, err := middleware.CurrentUserID(c); err == nil {
		liked, likedErr := h.social.IsLiked(ctx, listingID, userID.String())
		if likedErr == nil {
			resp["liked"] = liked
		}
	}

	c.JSON(http.StatusOK, resp)
}

type addCommentRequest struct {
	Text string `json:"text"`
}

// AddComment appends a comment to a listing. Whitespace-only text is a
// validation failure.
func (h *SocialHandler) AddComment(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	listingID, ok := listingIDParam(c)
	if !ok {
		return
	}

	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	comment, err := h.social.AddComment(c.Request.Context(), listingID, userID.String(), req.Text)
	if err != nil {
		if services.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add comment"})
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// MyLikes returns the ids of listings the caller has liked, for the
// client dashboard's favourites view.
func (h *SocialHandler) MyLikes(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	ids, err := h.social.LikedListingIDs(c.Request.Context(), userID.String())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load likes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing_ids": ids})
}

// RegisterSocialRoutes wires the social endpoints. Reads are public,
// writes require a session.
func RegisterSocialRoutes(v1 *gin.RouterGroup, authed *gin.RouterGroup, h *SocialHandler) {
	v1.GET("/listing/:id/social", h.GetSocial)

	authed.POST("/listing/:id/like", h.ToggleLike)
	authed.POST("/listing/:id/comment", h.AddComment)
	authed.GET("/my/likes", h.MyLikes)
}
