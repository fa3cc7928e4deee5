package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/db"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// IEnquiryService defines the interface for enquiry operations.
type IEnquiryService interface {
	CreateEnquiry(ctx context.Context, listingID, fromUserID utils.SixID, replyEmail, message string) (*models.ListingEnquiry, error)
	// ListEnquiriesForListing returns enquiries for one listing, newest
	// first. Callers are responsible for checking listing ownership.
	ListEnquiriesForListing(ctx context.Context, listingID utils.SixID) ([]models.ListingEnquiry, error)
	MarkEnquirySent(ctx context.Context, enquiryID utils.SixID) error
}

const enquiriesCollection = "listing_enquiries"

// enquiryService implements IEnquiryService.
type enquiryService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewEnquiryService creates a new EnquiryService.
func NewEnquiryService(db *mongo.Database, cfg *config.Config) IEnquiryService {
	return &enquiryService{db: db, cfg: cfg}
}

// CreateEnquiry records an enquiry against a listing. Delivery to the
// broker happens in a background task which then calls MarkEnquirySent.
func (s *enquiryService) CreateEnquiry(ctx context.Context, listingID, fromUserID utils.SixID, replyEmail, message string) (*models.ListingEnquiry, error) {
	if strings.TrimSpace(message) == "" {
		return nil, Validationf("enquiry message must not be empty")
	}
	replyEmail = strings.ToLower(strings.TrimSpace(replyEmail))
	if replyEmail == "" || !strings.Contains(replyEmail, "@") {
		return nil, Validationf("a valid reply email address is required")
	}

	collection := s.db.Collection(enquiriesCollection)
	now := time.Now().UTC()

	var enquiry *models.ListingEnquiry
	operation := func() error {
		enquiry = &models.ListingEnquiry{
			ID:         utils.NewSixID(),
			ListingID:  listingID,
			FromUserID: fromUserID,
			ReplyEmail: replyEmail,
			Message:    strings.TrimSpace(message),
			CreatedAt:  now,
			Sent:       false,
			Deleted:    false,
		}
		_, insertErr := collection.InsertOne(ctx, enquiry)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, Upstream(fmt.Sprintf("insert enquiry for listing %s", listingID.String()), err)
	}
	return enquiry, nil
}

func (s *enquiryService) ListEnquiriesForListing(ctx context.Context, listingID utils.SixID) ([]models.ListingEnquiry, error) {
	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(enquiriesCollection).
		Find(ctx, bson.M{"listing_id": listingID, "deleted": false}, opts)
	if err != nil {
		return nil, Upstream("list enquiries", err)
	}
	defer cursor.Close(ctx)

	enquiries := []models.ListingEnquiry{}
	if err := cursor.All(ctx, &enquiries); err != nil {
		return nil, fmt.Errorf("failed to decode enquiries: %w", err)
	}
	return enquiries, nil
}

// MarkEnquirySent flags an enquiry as delivered. Called by the email
// delivery task after the broker notification goes out.
func (s *enquiryService) MarkEnquirySent(ctx context.Context, enquiryID utils.SixID) error {
	result, err := s.db.Collection(enquiriesCollection).UpdateOne(ctx,
		bson.M{"_id": enquiryID},
		bson.M{"$set": bson.M{"sent": true}})
	if err != nil {
		return Upstream(fmt.Sprintf("mark enquiry %s sent", enquiryID.String()), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("enquiry %s not found", enquiryID.String())
	}
	return nil
}
