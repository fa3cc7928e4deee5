package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

func setupTestDBUser(t *testing.T, dbName string) *mongo.Database {
	db := utils.SetupTestDB(t, dbName, "users", "profiles", "listings")
	// Email uniqueness relies on this index in production; create it so
	// the duplicate path is exercised for real.
	_, err := db.Collection("users").Indexes().CreateOne(context.Background(),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
	require.NoError(t, err)
	return db
}

func testUserCfg() *config.Config {
	return &config.Config{
		BackendTimeout:     5 * time.Second,
		AdminUsersPerPage:  3,
		AdminUsersMaxPages: 2,
		PasswordRegexp:     regexp.MustCompile("^.{8,}$"),
	}
}

func newUserService(t *testing.T, dbName string) (IUserService, IProfileService) {
	db := setupTestDBUser(t, dbName)
	cfg := testUserCfg()
	profiles := NewProfileService(db, cfg)
	return NewUserService(db, profiles, cfg), profiles
}

func TestUserRegisterAndAuthenticate(t *testing.T) {
	svc, profiles := newUserService(t, "testdb_user_register")
	ctx := context.Background()

	user, err := svc.Register(ctx, "  Mireille@Example.COM ", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "mireille@example.com", user.Email)
	assert.NotEmpty(t, user.PasswordHash)
	assert.Nil(t, user.LastSignInAt)

	// New accounts start as clients.
	role, err := profiles.ResolveRole(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, role)

	authed, err := svc.Authenticate(ctx, "mireille@example.com", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
	assert.NotNil(t, authed.LastSignInAt)

	_, err = svc.Authenticate(ctx, "mireille@example.com", "wrong password!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "whatever password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserRegisterValidation(t *testing.T) {
	svc, _ := newUserService(t, "testdb_user_register_validation")
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "long enough password")
	assert.True(t, IsValidationError(err))

	_, err = svc.Register(ctx, "ok@example.com", "short")
	assert.True(t, IsValidationError(err))
}

func TestUserRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newUserService(t, "testdb_user_register_dup")
	ctx := context.Background()

	_, err := svc.Register(ctx, "dup@example.com", "long enough password")
	require.NoError(t, err)

	// Same address, different case.
	_, err = svc.Register(ctx, "DUP@example.com", "another long password")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserListBoundedPagination(t *testing.T) {
	svc, _ := newUserService(t, "testdb_user_list")
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := svc.Register(ctx, emailForIndex(i), "long enough password")
		require.NoError(t, err)
	}

	page1, total, err := svc.ListUsers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)
	assert.Len(t, page1, 3)

	// Page 0 behaves as page 1.
	page0, _, err := svc.ListUsers(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, page1[0].ID, page0[0].ID)

	// Pages past the ceiling clamp to the last permitted page.
	pageCeil, _, err := svc.ListUsers(ctx, 2)
	require.NoError(t, err)
	pageFar, _, err := svc.ListUsers(ctx, 99)
	require.NoError(t, err)
	require.NotEmpty(t, pageCeil)
	assert.Equal(t, pageCeil[0].ID, pageFar[0].ID)
}

func emailForIndex(i int) string {
	return string(rune('a'+i)) + "@example.com"
}

func TestUserDelete(t *testing.T) {
	svc, profiles := newUserService(t, "testdb_user_delete")
	ctx := context.Background()

	user, err := svc.Register(ctx, "gone@example.com", "long enough password")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, user.ID))

	_, err = svc.FindUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	_, err = svc.FindUserByEmail(ctx, "gone@example.com")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	_, err = profiles.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	// Credentials of a deleted account no longer work.
	_, err = svc.Authenticate(ctx, "gone@example.com", "long enough password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Deleting twice reports not found.
	assert.Error(t, svc.DeleteUser(ctx, user.ID))
}
