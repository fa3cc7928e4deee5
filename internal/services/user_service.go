package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MOULOUNDOU/digicode-immo/internal/auth"
	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/db"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// IUserService defines the interface for account operations.
type IUserService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindUserByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// ListUsers returns one page of accounts, newest first. Page numbers
	// start at 1 and are clamped to the configured maximum so a crawler
	// cannot walk the whole table indefinitely.
	ListUsers(ctx context.Context, page int) ([]models.User, int64, error)
	DeleteUser(ctx context.Context, userID utils.SixID) error
}

const usersCollection = "users"

type userService struct {
	db       *mongo.Database
	profiles IProfileService
	cfg      *config.Config
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database, profiles IProfileService, cfg *config.Config) IUserService {
	return &userService{db: db, profiles: profiles, cfg: cfg}
}

// Register creates an account with a bcrypt password hash and a default
// client profile. Email uniqueness rides on the collection's unique index.
func (s *userService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, Validationf("a valid email address is required")
	}
	if !s.cfg.PasswordRegexp.MatchString(password) {
		return nil, Validationf("password does not meet the minimum requirements")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	collection := s.db.Collection(usersCollection)
	now := time.Now().UTC()

	var newUser *models.User
	operation := func() error {
		newUser = &models.User{
			Base:         models.Base{ID: utils.NewSixID()},
			Email:        email,
			PasswordHash: hash,
			CreatedAt:    now,
		}
		_, insertErr := collection.InsertOne(ctx, newUser)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, Upstream("insert user", err)
	}

	// Every account starts as a client; role upgrades go through the
	// admin console.
	if err := s.profiles.Upsert(ctx, &models.Profile{ID: newUser.ID, Role: models.RoleClient}); err != nil {
		log.Printf("Failed to seed profile for new user %s: %v", newUser.ID.String(), err)
	}

	return newUser, nil
}

// Authenticate verifies credentials and stamps last_sign_in_at. The same
// error covers unknown email and wrong password.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	_, err = s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"last_sign_in_at": now}})
	if err != nil {
		// Sign-in still succeeds; the timestamp is best effort.
		log.Printf("Failed to record sign-in time for user %s: %v", user.ID.String(), err)
	} else {
		user.LastSignInAt = &now
	}

	return user, nil
}

// FindUserByID finds a non-deleted user by ID.
func (s *userService) FindUserByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	var user models.User
	err := s.db.Collection(usersCollection).
		FindOne(ctx, bson.M{"_id": userID, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.String(), err)
	}
	return &user, nil
}

// FindUserByEmail finds a non-deleted user by normalized email.
func (s *userService) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	err := s.db.Collection(usersCollection).
		FindOne(ctx, bson.M{"email": email, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email: %w", err)
	}
	return &user, nil
}

// ListUsers pages through accounts for the admin console. Pages past the
// configured ceiling return the last permitted page rather than erroring.
func (s *userService) ListUsers(ctx context.Context, page int) ([]models.User, int64, error) {
	ctx, cancel := db.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	if page < 1 {
		page = 1
	}
	if page > s.cfg.AdminUsersMaxPages {
		page = s.cfg.AdminUsersMaxPages
	}
	perPage := s.cfg.AdminUsersPerPage

	collection := s.db.Collection(usersCollection)
	filter := bson.M{"deleted": false}

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, Upstream("count users", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(page-1) * int64(perPage)).
		SetLimit(int64(perPage))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, Upstream("list users", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, total, nil
}

// DeleteUser soft-deletes the account and removes its profile. The
// user's listings are swept by a background task enqueued by the caller.
func (s *userService) DeleteUser(ctx context.Context, userID utils.SixID) error {
	now := time.Now().UTC()
	result, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": userID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": now}})
	if err != nil {
		return Upstream(fmt.Sprintf("delete user %s", userID.String()), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s not found", userID.String())
	}

	if err := s.profiles.Delete(ctx, userID); err != nil {
		log.Printf("Failed to delete profile of user %s: %v", userID.String(), err)
	}
	return nil
}
