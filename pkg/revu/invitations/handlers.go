package invitations

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/auth"
	"github.com/revuhq/revu/pkg/revu/models"
	"github.com/revuhq/revu/pkg/revu/roles"
)

// Handler handles invitation requests
type Handler struct {
	db      *gorm.DB
	svc     *Service
	baseURL string
}

// NewHandler creates a new invitations handler
func NewHandler(db *gorm.DB, svc *Service, baseURL string) *Handler {
	return &Handler{db: db, svc: svc, baseURL: baseURL}
}

// CreateInvitationRequest represents the request to issue an invitation
type CreateInvitationRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Type           string `json:"type" binding:"required,oneof=employee area_admin"`
	AreaID         *uint  `json:"area_id"`
	OrganizationID uint   `json:"organization_id"` // super_admin only; others default to their own org
}

// InvitationResponse represents an invitation in API responses
type InvitationResponse struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Type      string `json:"type"`
	AreaID    *uint  `json:"area_id,omitempty"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

// CreateInvitationResponse includes the token and link (only shown once)
type CreateInvitationResponse struct {
	InvitationResponse
	Token string `json:"token"`
	Link  string `json:"link"`
}

// ValidateResponse is the public payload for a redeemable invitation
type ValidateResponse struct {
	Email            string `json:"email"`
	Type             string `json:"type"`
	OrganizationName string `json:"organization_name"`
	AreaName         string `json:"area_name,omitempty"`
	NeedsArea        bool   `json:"needs_area"`
}

func toResponse(inv *models.Invitation) InvitationResponse {
	return InvitationResponse{
		ID:        inv.ID,
		Email:     inv.Email,
		Type:      string(inv.Type),
		AreaID:    inv.AreaID,
		Status:    string(inv.Status(time.Now())),
		ExpiresAt: inv.ExpiresAt.Format(time.RFC3339),
		CreatedAt: inv.CreatedAt.Format(time.RFC3339),
	}
}

// Create issues a new invitation
// @Summary Issue an invitation
// @Description Issue a single-use invitation token for a new account
// @Tags invitations
// @Accept json
// @Produce json
// @Param request body CreateInvitationRequest true "Invitation details"
// @Success 201 {object} CreateInvitationResponse
// @Failure 403 {object} map[string]string "Not allowed to issue"
// @Security BearerAuth
// @Router /invitations [post]
func (h *Handler) Create(c *gin.Context) {
	issuer, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv, err := h.svc.Issue(issuer, req.OrganizationID, req.Email, models.InvitationType(req.Type), req.AreaID)
	if err != nil {
		switch {
		case errors.Is(err, ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to issue this invitation"})
		case errors.Is(err, ErrAreaRequired), errors.Is(err, ErrAreaMismatch),
			errors.Is(err, ErrOrgRequired), errors.Is(err, ErrInvalidType):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invitation"})
		}
		return
	}

	// The token is only revealed here; delivery of the link is up to
	// the caller (email sending is outside this service).
	c.JSON(http.StatusCreated, CreateInvitationResponse{
		InvitationResponse: toResponse(inv),
		Token:              inv.Token,
		Link:               h.baseURL + "/auth?invite=" + inv.Token,
	})
}

// List returns invitations visible to the current user
// @Summary List invitations
// @Description Org admins see their organization's invitations; area admins see the ones they issued
// @Tags invitations
// @Produce json
// @Success 200 {array} InvitationResponse
// @Security BearerAuth
// @Router /invitations [get]
func (h *Handler) List(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	query := h.db.Order("created_at DESC")
	switch {
	case user.Role == models.RoleSuperAdmin:
		if orgID := c.Query("org_id"); orgID != "" {
			query = query.Where("organization_id = ?", orgID)
		}
	case roles.IsOrgWide(user.Role):
		query = query.Where("organization_id = ?", user.OrganizationID)
	case user.Role == models.RoleAreaAdmin:
		query = query.Where("invited_by_id = ?", user.ID)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	var invs []models.Invitation
	if err := query.Find(&invs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch invitations"})
		return
	}

	responses := make([]InvitationResponse, len(invs))
	for i := range invs {
		responses[i] = toResponse(&invs[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Revoke withdraws a pending invitation
// @Summary Revoke an invitation
// @Description Withdraw an invitation before it is redeemed
// @Tags invitations
// @Produce json
// @Param id path int true "Invitation ID"
// @Success 200 {object} map[string]string "Invitation revoked"
// @Security BearerAuth
// @Router /invitations/{id} [delete]
func (h *Handler) Revoke(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invitation ID"})
		return
	}

	var inv models.Invitation
	if err := h.db.First(&inv, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invitation not found"})
		return
	}

	allowed := user.Role == models.RoleSuperAdmin ||
		(user.Role == models.RoleClientAdmin && user.OrganizationID == inv.OrganizationID) ||
		inv.InvitedByID == user.ID
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to revoke this invitation"})
		return
	}

	if inv.Status(time.Now()) == models.InvitationConsumed {
		c.JSON(http.StatusConflict, gin.H{"error": "Invitation has already been used"})
		return
	}

	if err := h.db.Delete(&inv).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke invitation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invitation revoked"})
}

// ValidateToken resolves an invitation token for the signup form
// @Summary Validate an invitation token
// @Description Public pre-signup resolution of the invite link. Any invalid token gets the same generic response.
// @Tags invitations
// @Produce json
// @Param token path string true "Invitation token"
// @Success 200 {object} ValidateResponse
// @Failure 404 {object} map[string]string "Invalid invitation"
// @Router /auth/invite/{token} [get]
func (h *Handler) ValidateToken(c *gin.Context) {
	inv, err := h.svc.Validate(c.Param("token"))
	if err != nil {
		// One generic answer for not-found, expired and used: an
		// unauthenticated caller must not be able to probe tokens.
		log.Warn().Err(err).Msg("Invitation validation failed")
		c.JSON(http.StatusNotFound, gin.H{"error": "Invitation is invalid or has expired"})
		return
	}

	resp := ValidateResponse{
		Email:     inv.Email,
		Type:      string(inv.Type),
		NeedsArea: inv.Type == models.InvitationAreaAdmin && inv.AreaID == nil,
	}
	var org models.Organization
	if err := h.db.First(&org, inv.OrganizationID).Error; err == nil {
		resp.OrganizationName = org.Name
	}
	if inv.AreaID != nil {
		var area models.Area
		if err := h.db.First(&area, *inv.AreaID).Error; err == nil {
			resp.AreaName = area.Name
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}
	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return nil, false
	}
	return &user, true
}

// RegisterRoutes registers authenticated invitation routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.DELETE("/:id", h.Revoke)
}

// RegisterPublicRoutes registers the unauthenticated token resolution
// route backing the {origin}/auth?invite={token} redemption URL
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/invite/:token", h.ValidateToken)
}
