package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MOULOUNDOU/digicode-immo/internal/localstore"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
)

// ISocialService defines the interface for the demo-local likes and
// comments. These never touch the backend store.
type ISocialService interface {
	ToggleLike(ctx context.Context, listingID, userID string) (bool, error)
	IsLiked(ctx context.Context, listingID, userID string) (bool, error)
	LikeCount(ctx context.Context, listingID string) (int, error)
	LikedListingIDs(ctx context.Context, userID string) ([]string, error)
	AddComment(ctx context.Context, listingID, userID, text string) (*models.Comment, error)
	CommentsForListing(ctx context.Context, listingID string) ([]models.Comment, error)
}

type socialService struct {
	store *localstore.Store
}

// NewSocialService creates a SocialService over the local store.
func NewSocialService(store *localstore.Store) ISocialService {
	return &socialService{store: store}
}

func (s *socialService) ToggleLike(ctx context.Context, listingID, userID string) (bool, error) {
	if listingID == "" || userID == "" {
		return false, Validationf("listing and user are required")
	}
	return s.store.ToggleLike(ctx, listingID, userID)
}

func (s *socialService) IsLiked(ctx context.Context, listingID, userID string) (bool, error) {
	return s.store.IsLiked(ctx, listingID, userID)
}

func (s *socialService) LikeCount(ctx context.Context, listingID string) (int, error) {
	return s.store.LikeCount(ctx, listingID)
}

func (s *socialService) LikedListingIDs(ctx context.Context, userID string) ([]string, error) {
	return s.store.LikedListingIDs(ctx, userID)
}

// AddComment stores a remark on a listing. Whitespace-only text is
// rejected; the stored text keeps its inner formatting but is trimmed
// at the ends.
func (s *socialService) AddComment(ctx context.Context, listingID, userID, text string) (*models.Comment, error) {
	if listingID == "" || userID == "" {
		return nil, Validationf("listing and user are required")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, Validationf("comment must not be empty")
	}

	comment := &models.Comment{
		ID:        uuid.NewString(),
		ListingID: listingID,
		UserID:    userID,
		Text:      trimmed,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *socialService) CommentsForListing(ctx context.Context, listingID string) ([]models.Comment, error) {
	return s.store.CommentsForListing(ctx, listingID)
}
