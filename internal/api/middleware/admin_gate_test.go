package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MOULOUNDOU/digicode-immo/internal/api/middleware"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

func adminGatedRouter(profiles *MockProfileService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	gated := r.Group("/api/admin")
	gated.Use(middleware.AdminGate(testJwtSecret, profiles))
	gated.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "users": []string{}})
	})
	return r
}

func adminGateBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAdminGateMissingToken(t *testing.T) {
	router := adminGatedRouter(new(MockProfileService))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/admin/users", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := adminGateBody(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Authentification requise", body["error"])
}

func TestAdminGateGarbageToken(t *testing.T) {
	router := adminGatedRouter(new(MockProfileService))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/admin/users", nil)
	req.Header.Set("Authorization", "Bearer notatoken")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, adminGateBody(t, w)["ok"])
}

func TestAdminGateNonAdminForbidden(t *testing.T) {
	userID := utils.NewSixID()
	profiles := new(MockProfileService)
	profiles.On("ResolveRole", mock.Anything, userID).Return(models.RoleBroker, nil)
	router := adminGatedRouter(profiles)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, userID))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	body := adminGateBody(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Accès réservé aux administrateurs", body["error"])
	profiles.AssertExpectations(t)
}

func TestAdminGateResolveFaultIs500(t *testing.T) {
	userID := utils.NewSixID()
	profiles := new(MockProfileService)
	profiles.On("ResolveRole", mock.Anything, userID).Return(models.Role(""), assert.AnError)
	router := adminGatedRouter(profiles)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, userID))
	router.ServeHTTP(w, req)

	// A role store outage must not look like a demotion.
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, adminGateBody(t, w)["ok"])
}

func TestAdminGateAdminPassesThrough(t *testing.T) {
	userID := utils.NewSixID()
	profiles := new(MockProfileService)
	profiles.On("ResolveRole", mock.Anything, userID).Return(models.RoleAdmin, nil)
	router := adminGatedRouter(profiles)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, userID))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, adminGateBody(t, w)["ok"])
	profiles.AssertExpectations(t)
}
