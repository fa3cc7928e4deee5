package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
	"github.com/MOULOUNDOU/digicode-immo/internal/tasks"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// AdminHandler serves the admin console. Every response uses the
// {ok: bool} envelope the console expects; the session-and-role gate
// itself lives in middleware.AdminGate.
type AdminHandler struct {
	cfg        *config.Config
	users      services.IUserService
	profiles   services.IProfileService
	listings   services.IListingService
	taskClient IAsynqClient
}

func NewAdminHandler(cfg *config.Config, users services.IUserService, profiles services.IProfileService, listings services.IListingService, taskClient IAsynqClient) *AdminHandler {
	return &AdminHandler{cfg: cfg, users: users, profiles: profiles, listings: listings, taskClient: taskClient}
}

// adminUserRow is the camelCase shape the console's user table renders.
// Missing profile fields default to empty strings and the client role.
type adminUserRow struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	Role         models.Role `json:"role"`
	DisplayName  string      `json:"displayName"`
	City         string      `json:"city"`
	Whatsapp     string      `json:"whatsapp"`
	Phone        string      `json:"phone"`
	AvatarURL    string      `json:"avatarUrl"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastSignInAt *time.Time  `json:"lastSignInAt,omitempty"`
}

func buildUserRow(u *models.User, p *models.Profile) adminUserRow {
	row := adminUserRow{
		ID:           u.ID.String(),
		Email:        u.Email,
		Role:         models.RoleClient,
		CreatedAt:    u.CreatedAt,
		LastSignInAt: u.LastSignInAt,
	}
	if p != nil {
		row.Role = models.NormalizeRole(string(p.Role))
		row.DisplayName = p.DisplayName
		row.City = p.City
		row.Whatsapp = p.Whatsapp
		row.Phone = p.Phone
		row.AvatarURL = p.AvatarURL
	}
	return row
}

// Verify checks a submitted code against the server-held secret. This
// unlocks a console affordance only; it is not a session and proves no
// identity. With no secret configured the endpoint is unusable, which
// is a deployment fault, hence 500.
func (h *AdminHandler) Verify(c *gin.Context) {
	if h.cfg.AdminLoginSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Code administrateur non configuré"})
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Code), []byte(h.cfg.AdminLoginSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// listUserRows pulls one page of accounts and joins their profiles. An
// empty role keeps every row; otherwise only matching rows survive.
func (h *AdminHandler) listUserRows(c *gin.Context, page int, roleFilter models.Role) ([]adminUserRow, int64, bool) {
	ctx := c.Request.Context()
	users, total, err := h.users.ListUsers(ctx, page)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Erreur interne"})
		return nil, 0, false
	}

	ids := make([]utils.SixID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	profilesByID, err := h.profiles.FindByIDs(ctx, ids)
	if err != nil {
		// A fetch failure on any page aborts the whole listing
		// operation rather than returning a partial join.
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Erreur interne"})
		return nil, 0, false
	}

	rows := make([]adminUserRow, 0, len(users))
	for i := range users {
		row := buildUserRow(&users[i], profilesByID[users[i].ID])
		if roleFilter != "" && row.Role != roleFilter {
			continue
		}
		rows = append(rows, row)
	}
	return rows, total, true
}

// ListUsers returns one bounded page of accounts with their profiles
// joined, optionally filtered by role.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Paramètres invalides"})
			return
		}
		page = parsed
	}

	var roleFilter models.Role
	if raw := c.Query("role"); raw != "" {
		roleFilter = models.Role(raw)
		if !roleFilter.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Paramètres invalides"})
			return
		}
	}

	rows, total, ok := h.listUserRows(c, page, roleFilter)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "users": rows, "total": total})
}

// ListBrokers returns every broker account, walking the bounded user
// pages so the console can render the brokers directory.
func (h *AdminHandler) ListBrokers(c *gin.Context) {
	brokers := []adminUserRow{}
	seen := 0
	for page := 1; page <= h.cfg.AdminUsersMaxPages; page++ {
		rows, total, ok := h.listUserRows(c, page, "")
		if !ok {
			return
		}
		for _, row := range rows {
			if row.Role == models.RoleBroker {
				brokers = append(brokers, row)
			}
		}
		seen += h.cfg.AdminUsersPerPage
		if int64(seen) >= total {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "brokers": brokers})
}

// PatchUserRole sets a user's role. Anything outside the three valid
// roles is rejected without touching the profile row.
func (h *AdminHandler) PatchUserRole(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Paramètres invalides"})
		return
	}

	role := models.Role(req.Role)
	if !role.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Paramètres invalides"})
		return
	}

	userID, err := utils.ParseSixID(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Paramètres invalides"})
		return
	}

	ctx := c.Request.Context()
	if err := h.profiles.PatchRole(ctx, userID, role); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Erreur interne"})
		return
	}

	// Role takes effect on the user's next request; the email is a
	// courtesy notification.
	if user, lookupErr := h.users.FindUserByID(ctx, userID); lookupErr == nil {
		payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
			To:      user.Email,
			Subject: "Votre rôle a été mis à jour",
			Body:    "Un administrateur a modifié le rôle de votre compte : " + string(role) + ".",
		})
		task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)
		if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task); enqueueErr != nil {
			log.Printf("ERROR enqueuing role change email for user %s: %v", userID.String(), enqueueErr)
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteUser removes an account. The user's listings are swept by a
// background task rather than inline: the backend does not cascade.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	raw := c.Query("userId")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "userId manquant"})
		return
	}
	userID, err := utils.ParseSixID(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Paramètres invalides"})
		return
	}

	ctx := c.Request.Context()
	if err := h.users.DeleteUser(ctx, userID); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Erreur interne"})
		return
	}

	payloadBytes, _ := json.Marshal(tasks.ListingSweepPayload{UserID: userID.String()})
	task := asynq.NewTask(tasks.TypeListingSweep, payloadBytes)
	if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task, asynq.Queue("low")); enqueueErr != nil {
		log.Printf("ERROR enqueuing listing sweep for deleted user %s: %v", userID.String(), enqueueErr)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListListings returns the full catalogue, newest first, including
// every broker's listings.
func (h *AdminHandler) ListListings(c *gin.Context) {
	listings, err := h.listings.ListAllListings(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Erreur interne"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "listings": listings})
}

// DeleteListing deletes any listing by id, bypassing ownership.
func (h *AdminHandler) DeleteListing(c *gin.Context) {
	raw := c.Query("id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "id manquant"})
		return
	}
	listingID, err := utils.ParseSixID(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Paramètres invalides"})
		return
	}

	if err := h.listings.DeleteListingAsAdmin(c.Request.Context(), listingID); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Erreur interne"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RegisterAdminRoutes wires the console endpoints. The gated group must
// already carry middleware.AdminGate; Verify stays outside it.
func RegisterAdminRoutes(public *gin.RouterGroup, gated *gin.RouterGroup, h *AdminHandler) {
	public.POST("/verify", h.Verify)

	gated.GET("/brokers", h.ListBrokers)
	gated.GET("/users", h.ListUsers)
	gated.PATCH("/users", h.PatchUserRole)
	gated.DELETE("/users", h.DeleteUser)
	gated.GET("/listings", h.ListListings)
	gated.DELETE("/listings", h.DeleteListing)
}
