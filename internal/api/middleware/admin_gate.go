package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MOULOUNDOU/digicode-immo/internal/auth"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
)

// AdminGate protects the admin console routes. Unlike the public API it
// answers in the console's response envelope: every body carries an "ok"
// flag. Missing or bad credentials are 401, a non-admin role is 403 and
// a role store fault is 500 so an outage is never mistaken for a
// demotion.
func AdminGate(jwtSecret string, profiles services.IProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok": false, "error": "Authentification requise",
			})
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok": false, "error": "Session invalide ou expirée",
			})
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)

		userID, err := CurrentUserID(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok": false, "error": "Session invalide ou expirée",
			})
			return
		}

		role, err := profiles.ResolveRole(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"ok": false, "error": "Erreur interne",
			})
			return
		}
		if role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"ok": false, "error": "Accès réservé aux administrateurs",
			})
			return
		}

		c.Set(ContextKeyRole, role)
		c.Next()
	}
}
