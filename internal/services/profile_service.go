package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/db"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// IProfileService defines the interface for profile and role operations.
type IProfileService interface {
	// ResolveRole maps an authenticated identity to its role. A missing
	// profile or an unrecognised stored value resolves to client. A
	// backend I/O fault is returned as an error and must NOT be
	// swallowed into a silent client default: that would mis-route a
	// legitimate admin.
	ResolveRole(ctx context.Context, userID utils.SixID) (models.Role, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
	UpdateFields(ctx context.Context, userID utils.SixID, updates map[string]interface{}) error
	PatchRole(ctx context.Context, userID utils.SixID, role models.Role) error
	FindByIDs(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.Profile, error)
	Delete(ctx context.Context, userID utils.SixID) error
}

const profilesCollection = "profiles"

type profileService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewProfileService creates a new ProfileService.
func NewProfileService(db *mongo.Database, cfg *config.Config) IProfileService {
	return &profileService{db: db, cfg: cfg}
}

func (s *profileService) ResolveRole(ctx context.Context, userID utils.SixID) (models.Role, error) {
	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	var profile models.Profile
	err := s.db.Collection(profilesCollection).
		FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// No profile yet: default role.
			return models.RoleClient, nil
		}
		return "", Upstream("resolve role", err)
	}

	return models.NormalizeRole(string(profile.Role)), nil
}

// FindByID returns the profile for a user, or mongo.ErrNoDocuments.
func (s *profileService) FindByID(ctx context.Context, userID utils.SixID) (*models.Profile, error) {
	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	var profile models.Profile
	err := s.db.Collection(profilesCollection).
		FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding profile %s: %w", userID.String(), err)
	}
	return &profile, nil
}

// Upsert creates or replaces the profile row keyed by its user ID.
func (s *profileService) Upsert(ctx context.Context, profile *models.Profile) error {
	if !profile.Role.IsValid() {
		return Validationf("invalid role %q", profile.Role)
	}

	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(profilesCollection).
		ReplaceOne(ctx, bson.M{"_id": profile.ID}, profile, opts)
	if err != nil {
		return Upstream("upsert profile", err)
	}
	return nil
}

// UpdateFields patches the self-service contact fields of a profile.
// Role is deliberately not updatable here: use PatchRole (admin only).
func (s *profileService) UpdateFields(ctx context.Context, userID utils.SixID, updates map[string]interface{}) error {
	allowed := bson.M{}
	for key, value := range updates {
		switch key {
		case "display_name", "whatsapp", "phone", "city", "avatar_url":
			allowed[key] = value
		default:
			return Validationf("field %q cannot be updated", key)
		}
	}
	if len(allowed) == 0 {
		return Validationf("no valid fields provided for update")
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.db.Collection(profilesCollection).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":         allowed,
			"$setOnInsert": bson.M{"role": models.RoleClient},
		}, opts)
	if err != nil {
		return Upstream("update profile", err)
	}
	return nil
}

// PatchRole sets the role field, creating the profile row if absent.
// Invalid role values are rejected without touching the row.
func (s *profileService) PatchRole(ctx context.Context, userID utils.SixID, role models.Role) error {
	if !role.IsValid() {
		return Validationf("invalid role %q", role)
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.db.Collection(profilesCollection).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"role": role}}, opts)
	if err != nil {
		return Upstream("patch role", err)
	}
	return nil
}

// FindByIDs fetches profiles for a batch of user IDs, keyed by ID.
// Missing profiles are simply absent from the result map.
func (s *profileService) FindByIDs(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.Profile, error) {
	if len(userIDs) == 0 {
		return map[utils.SixID]*models.Profile{}, nil
	}

	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	cursor, err := s.db.Collection(profilesCollection).
		Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, Upstream("find profiles", err)
	}
	defer cursor.Close(ctx)

	result := make(map[utils.SixID]*models.Profile, len(userIDs))
	for cursor.Next(ctx) {
		var p models.Profile
		if err := cursor.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode profile: %w", err)
		}
		result[p.ID] = &p
	}
	if err := cursor.Err(); err != nil {
		return nil, Upstream("find profiles", err)
	}
	return result, nil
}

// Delete removes the profile row. Called when the owning user is deleted.
func (s *profileService) Delete(ctx context.Context, userID utils.SixID) error {
	_, err := s.db.Collection(profilesCollection).DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return Upstream("delete profile", err)
	}
	return nil
}
