package middleware

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MOULOUNDOU/digicode-immo/internal/auth"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

const (
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyRole holds the resolved role in Gin context.
	ContextKeyRole = "role"
)

// bearerToken extracts the JWT from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// RequireSession creates a Gin middleware for JWT authentication.
// Unauthenticated requests get 401 plus a redirect hint so the frontend
// can bounce the user to the login page.
func RequireSession(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		loginRedirect := "/login?redirect=" + url.QueryEscape(c.Request.URL.Path)

		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "Authentication required",
				"redirect": loginRedirect,
			})
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    fmt.Sprintf("Invalid or expired token: %v", err),
				"redirect": loginRedirect,
			})
			return
		}

		// The token carries identity only. Role comes from the profile
		// store per request so role changes apply without a re-login.
		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// RequireRole gates a route group to the given roles. Assumes
// RequireSession ran first. A mismatched role gets 403 plus a redirect
// hint to the caller's own dashboard. A role store fault is a 500, never
// a silent downgrade to client.
func RequireRole(profiles services.IProfileService, allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := resolveRequestRole(c, profiles)
		if !ok {
			return
		}

		for _, a := range allowed {
			if role == a {
				c.Set(ContextKeyRole, role)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":    "Insufficient privileges",
			"redirect": "/dashboard",
		})
	}
}

// CurrentUserID returns the authenticated user's ID from the Gin context.
func CurrentUserID(c *gin.Context) (utils.SixID, error) {
	raw, exists := c.Get(ContextKeyUserID)
	if !exists {
		return utils.SixID{}, fmt.Errorf("no authenticated user in context")
	}
	idStr, ok := raw.(string)
	if !ok {
		return utils.SixID{}, fmt.Errorf("malformed user ID in context")
	}
	return utils.ParseSixID(idStr)
}

// resolveRequestRole resolves the caller's role, aborting on failure.
func resolveRequestRole(c *gin.Context, profiles services.IProfileService) (models.Role, bool) {
	userID, err := CurrentUserID(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":    "Authentication required",
			"redirect": "/login?redirect=" + url.QueryEscape(c.Request.URL.Path),
		})
		return "", false
	}

	role, err := profiles.ResolveRole(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "Unable to resolve account role",
		})
		return "", false
	}
	return role, true
}
