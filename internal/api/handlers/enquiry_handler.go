package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/MOULOUNDOU/digicode-immo/internal/api/middleware"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
	"github.com/MOULOUNDOU/digicode-immo/internal/tasks"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// EnquiryHandler lets clients contact a listing's broker and brokers
// read the enquiries on their own listings.
type EnquiryHandler struct {
	enquiries  services.IEnquiryService
	listings   services.IListingService
	users      services.IUserService
	taskClient IAsynqClient
}

func NewEnquiryHandler(enquiries services.IEnquiryService, listings services.IListingService, users services.IUserService, taskClient IAsynqClient) *EnquiryHandler {
	return &EnquiryHandler{enquiries: enquiries, listings: listings, users: users, taskClient: taskClient}
}

type createEnquiryRequest struct {
	Message    string `json:"message"`
	ReplyEmail string `json:"reply_email"`
}

// CreateEnquiry records a client's message and enqueues the broker
// notification email. The enquiry id rides in the task payload so the
// worker can flag the row once the email actually went out.
func (h *EnquiryHandler) CreateEnquiry(c *gin.Context) {
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

	var req createEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	listing, err := h.listings.FindListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
		return
	}

	enquiry, err := h.enquiries.CreateEnquiry(ctx, listingID, userID, req.ReplyEmail, req.Message)
	if err != nil {
		if services.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record enquiry"})
		return
	}

	owner, err := h.users.FindUserByID(ctx, listing.OwnerUserID)
	if err != nil {
		// The enquiry is stored; the broker just reads it from the
		// dashboard instead of email.
		log.Printf("Enquiry %s stored but owner %s lookup failed: %v", enquiry.ID.String(), listing.OwnerUserID.String(), err)
		c.JSON(http.StatusCreated, enquiry)
		return
	}

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:      owner.Email,
		Subject: fmt.Sprintf("Nouvelle demande pour votre annonce « %s »", listing.Title),
		Body: fmt.Sprintf("Un visiteur est intéressé par votre annonce.\r\n\r\n%s\r\n\r\nRépondre à : %s",
			enquiry.Message, enquiry.ReplyEmail),
		EnquiryID: enquiry.ID.String(),
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)
	if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task, asynq.Queue("critical")); enqueueErr != nil {
		log.Printf("ERROR enqueuing enquiry email for enquiry %s: %v", enquiry.ID.String(), enqueueErr)
	}

	c.JSON(http.StatusCreated, enquiry)
}

// ListEnquiries returns the enquiries on one of the caller's listings,
// newest first. Ownership is checked here since the service layer does
// not know the caller.
func (h *EnquiryHandler) ListEnquiries(c *gin.Context) {
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

	ctx := c.Request.Context()
	listing, err := h.listings.FindListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
		return
	}
	if listing.OwnerUserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cette annonce ne vous appartient pas"})
		return
	}

	enquiries, err := h.enquiries.ListEnquiriesForListing(ctx, listingID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve enquiries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"enquiries": enquiries})
}

// RegisterEnquiryRoutes wires the enquiry endpoints. Creating requires
// any session; listing requires broker or admin via the route group.
func RegisterEnquiryRoutes(authed *gin.RouterGroup, broker *gin.RouterGroup, h *EnquiryHandler) {
	authed.POST("/listing/:id/enquiry", h.CreateEnquiry)
	broker.GET("/listing/:id/enquiries", h.ListEnquiries)
}
