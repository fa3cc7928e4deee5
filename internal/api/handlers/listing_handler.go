package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/MOULOUNDOU/digicode-immo/internal/api/middleware"
	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
	"github.com/MOULOUNDOU/digicode-immo/internal/storage"
	"github.com/MOULOUNDOU/digicode-immo/internal/tasks"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// ListingHandler serves the public catalogue plus the broker's own
// listing management endpoints.
type ListingHandler struct {
	cfg        *config.Config
	listings   services.IListingService
	search     services.ISearchService
	storage    storage.IS3Storage
	taskClient IAsynqClient
}

func NewListingHandler(cfg *config.Config, listings services.IListingService, search services.ISearchService, s3 storage.IS3Storage, taskClient IAsynqClient) *ListingHandler {
	return &ListingHandler{cfg: cfg, listings: listings, search: search, storage: s3, taskClient: taskClient}
}

// SearchListings answers the public catalogue query. Searches go
// through the search service so a broken backend degrades to the
// in-memory snapshot instead of an error page.
func (h *ListingHandler) SearchListings(c *gin.Context) {
	criteria := services.SearchCriteria{
		Query: strings.TrimSpace(c.Query("q")),
		City:  strings.TrimSpace(c.Query("city")),
	}

	if t := strings.TrimSpace(c.Query("type")); t != "" {
		lt := models.ListingType(t)
		if !lt.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing type"})
			return
		}
		criteria.Type = lt
	}

	if raw := c.Query("max_price_xof"); raw != "" {
		maxPrice, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || maxPrice < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid max_price_xof"})
			return
		}
		criteria.MaxPriceXOF = &maxPrice
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
			return
		}
		criteria.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page_size"})
			return
		}
		criteria.PageSize = size
	}

	page, err := h.search.Search(c.Request.Context(), criteria)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search is temporarily unavailable"})
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetListingByID serves the public listing detail page.
func (h *ListingHandler) GetListingByID(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	listing, err := h.listings.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
		return
	}

	c.JSON(http.StatusOK, listing)
}

type createListingRequest struct {
	Title        string   `json:"title"`
	Type         string   `json:"type"`
	PriceXOF     int64    `json:"price_xof"`
	Description  string   `json:"description"`
	City         string   `json:"city"`
	Neighborhood string   `json:"neighborhood"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	PhotoURLs    []string `json:"photo_data_urls"`
}

// CreateListing publishes a new advertisement for the calling broker.
// Validation failures come back verbatim as 400s so the form can show
// them inline; nothing is persisted in that case.
func (h *ListingHandler) CreateListing(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	params := services.CreateListingParams{
		OwnerUserID:  userID,
		Title:        req.Title,
		Type:         models.ListingType(req.Type),
		PriceXOF:     req.PriceXOF,
		Description:  req.Description,
		City:         req.City,
		Neighborhood: req.Neighborhood,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		PhotoURLs:    req.PhotoURLs,
	}

	listing, err := h.listings.CreateListing(c.Request.Context(), params)
	if err != nil {
		if services.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create listing"})
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// ListUserListings serves a user's public listings, newest first, for
// the public broker page.
func (h *ListingHandler) ListUserListings(c *gin.Context) {
	ownerID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	listings, err := h.listings.FindListingsByOwner(c.Request.Context(), ownerID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

// MyListings returns the caller's listings, newest first, for the
// broker dashboard.
func (h *ListingHandler) MyListings(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	listings, err := h.listings.FindListingsByOwner(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

// DeleteListing removes one of the caller's own listings. Ownership is
// enforced here as well as in the delete filter.
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	if err := h.listings.DeleteListing(c.Request.Context(), listingID, userID); err != nil {
		switch {
		case errors.Is(err, services.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "Cette annonce ne vous appartient pas"})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete listing"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type presignPhotoRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// PresignListingPhoto hands the client a short-lived upload URL for one
// listing photo. The photo only becomes part of the listing once the
// upload is confirmed and the image worker has processed it.
func (h *ListingHandler) PresignListingPhoto(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	var req presignPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename and content_type are required"})
		return
	}

	ctx := c.Request.Context()
	owned, err := h.ownsListing(c, listingID, userID)
	if err != nil || !owned {
		return
	}

	if len(currentListing(c).PhotoURLs) >= models.MaxListingPhotos {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nombre maximum de photos atteint"})
		return
	}

	uploadURL, objectKey, err := h.storage.PresignListingPhotoPut(ctx, userID.String(), listingID.String(), req.Filename, req.ContentType)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload_url": uploadURL, "key": objectKey})
}

type confirmUploadRequest struct {
	Key string `json:"key" binding:"required"`
}

// ConfirmListingPhoto enqueues processing of an uploaded photo. The
// worker resizes it, re-uploads and attaches the public URL to the
// listing.
func (h *ListingHandler) ConfirmListingPhoto(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": "/login"})
		return
	}

	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	var req confirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	// Keys are issued per owner and listing; refuse a confirmation for
	// somebody else's object.
	expectedPrefix := "listings/" + userID.String() + "/" + listingID.String() + "/"
	if !strings.HasPrefix(req.Key, expectedPrefix) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cette annonce ne vous appartient pas"})
		return
	}

	payloadBytes, _ := json.Marshal(tasks.ImageTaskPayload{
		S3Key:     req.Key,
		Kind:      tasks.ImageKindListingPhoto,
		UserID:    userID.String(),
		ListingID: listingID.String(),
	})
	task := asynq.NewTask(tasks.TypeImageProcess, payloadBytes)
	if _, enqueueErr := h.taskClient.EnqueueContext(c.Request.Context(), task, asynq.Queue("images")); enqueueErr != nil {
		log.Printf("ERROR enqueuing image task for listing %s: %v", listingID.String(), enqueueErr)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule photo processing"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

const contextKeyListing = "listing"

// ownsListing loads the listing, writes the error response itself on
// failure and stashes the listing in the context for the handler.
func (h *ListingHandler) ownsListing(c *gin.Context, listingID, userID utils.SixID) (bool, error) {
	listing, err := h.listings.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return false, err
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
		return false, err
	}
	if listing.OwnerUserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cette annonce ne vous appartient pas"})
		return false, nil
	}
	c.Set(contextKeyListing, listing)
	return true, nil
}

func currentListing(c *gin.Context) *models.Listing {
	v, _ := c.Get(contextKeyListing)
	listing, _ := v.(*models.Listing)
	if listing == nil {
		return &models.Listing{}
	}
	return listing
}

// RegisterListingRoutes wires the public and broker listing endpoints.
func RegisterListingRoutes(v1 *gin.RouterGroup, broker *gin.RouterGroup, h *ListingHandler) {
	v1.GET("/listing/search", h.SearchListings)
	v1.GET("/listing/:id", h.GetListingByID)
	v1.GET("/user/:id/listing", h.ListUserListings)

	broker.POST("/listing", h.CreateListing)
	broker.GET("/my/listings", h.MyListings)
	broker.DELETE("/listing/:id", h.DeleteListing)
	broker.POST("/listing/:id/photo/presign", h.PresignListingPhoto)
	broker.POST("/listing/:id/photo/confirm", h.ConfirmListingPhoto)
}
