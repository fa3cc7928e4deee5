package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/MOULOUNDOU/digicode-immo/internal/api/handlers"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

func TestAuthHandler_Register_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUserSvc := new(MockUserService)
	mockClient := new(MockAsynqClient)
	handler := handlers.NewAuthHandler(testConfig(), mockUserSvc, nil, mockClient)

	r := gin.New()
	r.POST("/v1/auth/register", handler.Register)

	newUser := &models.User{Email: "client@example.cg"}
	newUser.ID = utils.NewSixID()
	mockUserSvc.On("Register", mock.Anything, "client@example.cg", "motdepasse").Return(newUser, nil)
	mockClient.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	body, _ := json.Marshal(map[string]string{"email": "client@example.cg", "password": "motdepasse"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	mockUserSvc.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

func TestAuthHandler_Register_EmailExists(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUserSvc := new(MockUserService)
	handler := handlers.NewAuthHandler(testConfig(), mockUserSvc, nil, new(MockAsynqClient))

	r := gin.New()
	r.POST("/v1/auth/register", handler.Register)

	mockUserSvc.On("Register", mock.Anything, "taken@example.cg", "motdepasse").
		Return(nil, services.ErrEmailExists)

	body, _ := json.Marshal(map[string]string{"email": "taken@example.cg", "password": "motdepasse"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockUserSvc.AssertExpectations(t)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUserSvc := new(MockUserService)
	handler := handlers.NewAuthHandler(testConfig(), mockUserSvc, nil, new(MockAsynqClient))

	r := gin.New()
	r.POST("/v1/auth/login", handler.Login)

	mockUserSvc.On("Authenticate", mock.Anything, "client@example.cg", "wrong").
		Return(nil, services.ErrInvalidCredentials)

	body, _ := json.Marshal(map[string]string{"email": "client@example.cg", "password": "wrong"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockUserSvc.AssertExpectations(t)
}

func TestAuthHandler_Login_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUserSvc := new(MockUserService)
	handler := handlers.NewAuthHandler(testConfig(), mockUserSvc, nil, new(MockAsynqClient))

	r := gin.New()
	r.POST("/v1/auth/login", handler.Login)

	user := &models.User{Email: "client@example.cg"}
	user.ID = utils.NewSixID()
	mockUserSvc.On("Authenticate", mock.Anything, "client@example.cg", "motdepasse").Return(user, nil)

	body, _ := json.Marshal(map[string]string{"email": "client@example.cg", "password": "motdepasse"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	mockUserSvc.AssertExpectations(t)
}

func TestAuthHandler_Me_ResolvesRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUserSvc := new(MockUserService)
	mockProfileSvc := new(MockProfileService)
	handler := handlers.NewAuthHandler(testConfig(), mockUserSvc, mockProfileSvc, new(MockAsynqClient))

	userID := utils.NewSixID()
	r := gin.New()
	r.GET("/v1/auth/session", injectUser(userID), handler.Me)

	user := &models.User{Email: "broker@example.cg"}
	user.ID = userID
	mockUserSvc.On("FindUserByID", mock.Anything, userID).Return(user, nil)
	mockProfileSvc.On("ResolveRole", mock.Anything, userID).Return(models.RoleBroker, nil)
	mockProfileSvc.On("FindByID", mock.Anything, userID).
		Return(&models.Profile{ID: userID, Role: models.RoleBroker, DisplayName: "Agence Plateau"}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/auth/session", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "broker", resp["role"])
	mockProfileSvc.AssertExpectations(t)
}
