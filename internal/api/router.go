package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/MOULOUNDOU/digicode-immo/internal/api/handlers"
	"github.com/MOULOUNDOU/digicode-immo/internal/api/middleware"
	"github.com/MOULOUNDOU/digicode-immo/internal/captcha"
	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/localstore"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
	"github.com/MOULOUNDOU/digicode-immo/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, localStore *localstore.Store, searchService services.ISearchService, taskClient handlers.IAsynqClient) *gin.Engine {
	// Services needed by API handlers
	profileService := services.NewProfileService(db, cfg)
	userService := services.NewUserService(db, profileService, cfg)
	listingService := services.NewListingService(db, cfg)
	enquiryService := services.NewEnquiryService(db, cfg)
	socialService := services.NewSocialService(localStore)
	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Global middleware, order matters
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(cfg, userService, profileService, taskClient)
	listingHandler := handlers.NewListingHandler(cfg, listingService, searchService, s3StorageService, taskClient)
	profileHandler := handlers.NewProfileHandler(cfg, profileService, s3StorageService, taskClient)
	socialHandler := handlers.NewSocialHandler(socialService)
	enquiryHandler := handlers.NewEnquiryHandler(enquiryService, listingService, userService, taskClient)
	adminHandler := handlers.NewAdminHandler(cfg, userService, profileService, listingService, taskClient)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Any authenticated session
		authed := v1.Group("/")
		authed.Use(middleware.RequireSession(cfg.JwtSecret))

		// Broker dashboard endpoints; admins can manage listings too
		broker := v1.Group("/")
		broker.Use(middleware.RequireSession(cfg.JwtSecret),
			middleware.RequireRole(profileService, models.RoleBroker, models.RoleAdmin))

		handlers.RegisterAuthRoutes(v1, authed, authHandler)
		handlers.RegisterListingRoutes(v1, broker, listingHandler)
		handlers.RegisterProfileRoutes(authed, profileHandler)
		handlers.RegisterSocialRoutes(v1, authed, socialHandler)
		handlers.RegisterEnquiryRoutes(authed, broker, enquiryHandler)
	}

	// Admin console surface. Verify is public by design; everything
	// else sits behind the session-and-role gate.
	adminPublic := r.Group("/api/admin")
	adminGated := r.Group("/api/admin")
	adminGated.Use(middleware.AdminGate(cfg.JwtSecret, profileService))
	handlers.RegisterAdminRoutes(adminPublic, adminGated, adminHandler)

	return r
}

// SetupServiceRouter configures and returns the service Gin engine.
// Requires Redis for the getTestEmail endpoint used by end-to-end tests.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // Expect ["action_type", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [actionType, email]"})
				return
			}
			actionType := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, actionType)

			// Poll Redis briefly for the key
			var emailJsonData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ { // Poll up to ~2 seconds
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
