package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
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

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, params CreateListingParams) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	// DeleteListing enforces ownership in this layer on top of an
	// owner-scoped delete filter (defense in depth).
	DeleteListing(ctx context.Context, listingID, ownerUserID utils.SixID) error
	// DeleteListingAsAdmin deletes unconditionally by id.
	DeleteListingAsAdmin(ctx context.Context, listingID utils.SixID) error
	FindListingsByOwner(ctx context.Context, ownerUserID utils.SixID) ([]models.Listing, error)
	DeleteListingsByOwner(ctx context.Context, ownerUserID utils.SixID) (int64, error)
	ListAllListings(ctx context.Context) ([]models.Listing, error)
	AddPhotoToListing(ctx context.Context, listingID, ownerUserID utils.SixID, photoURL string) error
	Search(ctx context.Context, criteria SearchCriteria) (*SearchPage, error)
}

const listingsCollection = "listings"

// listingService implements IListingService.
type listingService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewListingService creates a new ListingService.
func NewListingService(db *mongo.Database, cfg *config.Config) IListingService {
	return &listingService{db: db, cfg: cfg}
}

// CreateListingParams carries the caller-supplied fields of a new listing.
type CreateListingParams struct {
	OwnerUserID  utils.SixID
	Title        string
	Type         models.ListingType
	PriceXOF     int64
	Description  string
	City         string
	Neighborhood string
	Latitude     *float64
	Longitude    *float64
	PhotoURLs    []string
}

// Validate checks the creation invariants. Latitude and longitude must
// be present together or not at all; both must be finite.
func (p *CreateListingParams) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return Validationf("title is required")
	}
	if strings.TrimSpace(p.City) == "" {
		return Validationf("city is required")
	}
	if strings.TrimSpace(p.Neighborhood) == "" {
		return Validationf("neighborhood is required")
	}
	if !p.Type.IsValid() {
		return Validationf("invalid listing type %q", p.Type)
	}
	if p.PriceXOF <= 0 {
		return Validationf("price must be a positive amount in XOF")
	}
	if len(p.PhotoURLs) > models.MaxListingPhotos {
		return Validationf("at most %d photos are allowed", models.MaxListingPhotos)
	}
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return Validationf("latitude and longitude must be provided together")
	}
	if p.Latitude != nil {
		if !isFinite(*p.Latitude) || !isFinite(*p.Longitude) {
			return Validationf("latitude and longitude must be finite numbers")
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// CreateListing validates and persists a new listing with a
// server-assigned ID and creation time.
func (s *listingService) CreateListing(ctx context.Context, params CreateListingParams) (*models.Listing, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	collection := s.db.Collection(listingsCollection)
	now := time.Now().UTC()

	photos := params.PhotoURLs
	if photos == nil {
		photos = []string{}
	}

	var newListing *models.Listing

	operation := func() error {
		newListing = &models.Listing{
			ID:           utils.NewSixID(),
			OwnerUserID:  params.OwnerUserID,
			Title:        strings.TrimSpace(params.Title),
			Type:         params.Type,
			PriceXOF:     params.PriceXOF,
			Description:  params.Description,
			City:         strings.TrimSpace(params.City),
			Neighborhood: strings.TrimSpace(params.Neighborhood),
			Latitude:     params.Latitude,
			Longitude:    params.Longitude,
			PhotoURLs:    photos,
			CreatedAt:    now,
			Deleted:      false,
		}
		_, insertErr := collection.InsertOne(ctx, newListing)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, Upstream(fmt.Sprintf("insert listing for user %s", params.OwnerUserID.String()), err)
	}

	return newListing, nil
}

// FindListingByID finds a non-deleted listing by its ID.
// It does NOT check ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	var listing models.Listing
	err := s.db.Collection(listingsCollection).
		FindOne(ctx, bson.M{"_id": listingID, "deleted": false}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID.String(), err)
	}
	return &listing, nil
}

// DeleteListing soft-deletes a listing owned by the caller. The delete
// filter is owner-scoped, and when nothing matched the reason is
// distinguished so a non-owner gets ErrNotOwner rather than a no-op.
func (s *listingService) DeleteListing(ctx context.Context, listingID, ownerUserID utils.SixID) error {
	collection := s.db.Collection(listingsCollection)
	now := time.Now().UTC()

	filter := bson.M{
		"_id":           listingID,
		"owner_user_id": ownerUserID,
		"deleted":       false,
	}
	update := bson.M{"$set": bson.M{"deleted": true, "deleted_at": now}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return Upstream(fmt.Sprintf("delete listing %s", listingID.String()), err)
	}
	if result.MatchedCount == 0 {
		var listing models.Listing
		checkErr := collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return fmt.Errorf("listing %s not found: %w", listingID.String(), mongo.ErrNoDocuments)
		}
		if checkErr == nil && listing.OwnerUserID != ownerUserID {
			return ErrNotOwner
		}
		return fmt.Errorf("listing %s is already deleted: %w", listingID.String(), mongo.ErrNoDocuments)
	}
	return nil
}

// DeleteListingAsAdmin soft-deletes any listing by id, bypassing ownership.
func (s *listingService) DeleteListingAsAdmin(ctx context.Context, listingID utils.SixID) error {
	now := time.Now().UTC()
	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx,
		bson.M{"_id": listingID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": now}})
	if err != nil {
		return Upstream(fmt.Sprintf("admin delete listing %s", listingID.String()), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("listing %s not found", listingID.String())
	}
	return nil
}

// FindListingsByOwner returns all listings published by a user, newest first.
func (s *listingService) FindListingsByOwner(ctx context.Context, ownerUserID utils.SixID) ([]models.Listing, error) {
	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(listingsCollection).
		Find(ctx, bson.M{"owner_user_id": ownerUserID, "deleted": false}, opts)
	if err != nil {
		return nil, Upstream("find listings by owner", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode owner listings: %w", err)
	}
	return listings, nil
}

// DeleteListingsByOwner soft-deletes every listing of a user. Used by the
// orphan sweep that runs after a user account is deleted.
func (s *listingService) DeleteListingsByOwner(ctx context.Context, ownerUserID utils.SixID) (int64, error) {
	now := time.Now().UTC()
	result, err := s.db.Collection(listingsCollection).UpdateMany(ctx,
		bson.M{"owner_user_id": ownerUserID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": now}})
	if err != nil {
		return 0, Upstream(fmt.Sprintf("sweep listings of user %s", ownerUserID.String()), err)
	}
	return result.ModifiedCount, nil
}

// ListAllListings returns every non-deleted listing, newest first.
// Admin console full scan.
func (s *listingService) ListAllListings(ctx context.Context) ([]models.Listing, error) {
	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, Upstream("list all listings", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	return listings, nil
}

// AddPhotoToListing appends a processed photo reference to a listing owned
// by the caller, enforcing the photo cap.
func (s *listingService) AddPhotoToListing(ctx context.Context, listingID, ownerUserID utils.SixID, photoURL string) error {
	filter := bson.M{
		"_id":           listingID,
		"owner_user_id": ownerUserID,
		"deleted":       false,
		fmt.Sprintf("photo_data_urls.%d", models.MaxListingPhotos-1): bson.M{"$exists": false},
	}
	update := bson.M{"$addToSet": bson.M{"photo_data_urls": photoURL}}

	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return Upstream(fmt.Sprintf("add photo to listing %s", listingID.String()), err)
	}
	if result.MatchedCount == 0 {
		return Validationf("listing %s not found, not owned by caller, or already has %d photos",
			listingID.String(), models.MaxListingPhotos)
	}
	return nil
}

// Search executes the filtered, paginated query against MongoDB. The
// returned Total is the count of all rows matching the filter, not only
// the page slice. Only one sort order is supported: created_at desc.
func (s *listingService) Search(ctx context.Context, criteria SearchCriteria) (*SearchPage, error) {
	criteria.Normalize(s.cfg.SearchPageSize)

	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	filter := bson.M{"deleted": false}

	if criteria.City != "" {
		filter["city"] = bson.M{"$regex": regexp.QuoteMeta(criteria.City), "$options": "i"}
	}
	if criteria.Type != "" {
		filter["type"] = criteria.Type
	}
	if criteria.MaxPriceXOF != nil {
		// 0 is a legitimate cap (free listings only); absence is nil.
		filter["price_xof"] = bson.M{"$lte": *criteria.MaxPriceXOF}
	}
	if q := strings.TrimSpace(criteria.Query); q != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"city": re},
			bson.M{"neighborhood": re},
			bson.M{"description": re},
		}
	}

	collection := s.db.Collection(listingsCollection)

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, Upstream("count listings", err)
	}

	from := int64(criteria.Page-1) * int64(criteria.PageSize)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(from).
		SetLimit(int64(criteria.PageSize))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, Upstream("search listings", err)
	}
	defer cursor.Close(ctx)

	items := []models.Listing{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode listing search results: %w", err)
	}

	return &SearchPage{Items: items, Total: total}, nil
}
