// Package orgs exposes the current tenant's profile, membership roster
// and email-domain bindings over HTTP. Everything here is scoped to the
// caller's own organization; cross-tenant administration lives in the
// admin package.
package orgs

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/auth"
	"github.com/revuhq/revu/pkg/revu/models"
	"github.com/revuhq/revu/pkg/revu/roles"
)

// Handler handles organization-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new organizations handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UpdateOrgRequest represents the request to update the organization
type UpdateOrgRequest struct {
	Name string `json:"name" binding:"omitempty,min=1,max=100"`
}

// OrgResponse represents an organization in API responses
type OrgResponse struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Domains     []string `json:"domains"`
	MemberCount int      `json:"member_count"`
	CreatedAt   string   `json:"created_at"`
}

// MemberResponse represents an organization member in API responses
type MemberResponse struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AreaID    *uint  `json:"area_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// UpdateMemberRequest represents the request to change a member's role
type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required,oneof=client_admin area_admin user"`
}

// AddDomainRequest represents the request to bind an email domain
type AddDomainRequest struct {
	Domain string `json:"domain" binding:"required,fqdn"`
}

// DomainResponse represents an email-domain binding in API responses
type DomainResponse struct {
	ID     uint   `json:"id"`
	Domain string `json:"domain"`
}

func (h *Handler) toOrgResponse(org *models.Organization) OrgResponse {
	var domains []string
	h.db.Model(&models.EmailDomain{}).Where("organization_id = ?", org.ID).
		Order("domain ASC").Pluck("domain", &domains)

	var memberCount int64
	h.db.Model(&models.User{}).Where("organization_id = ?", org.ID).Count(&memberCount)

	return OrgResponse{
		ID:          org.ID,
		Name:        org.Name,
		Slug:        org.Slug,
		Domains:     domains,
		MemberCount: int(memberCount),
		CreatedAt:   org.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Get returns the current user's organization
// @Summary Get organization
// @Description Get the current user's organization profile
// @Tags organizations
// @Produce json
// @Success 200 {object} OrgResponse
// @Security BearerAuth
// @Router /org [get]
func (h *Handler) Get(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var org models.Organization
	if err := h.db.First(&org, user.OrganizationID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return
	}

	c.JSON(http.StatusOK, h.toOrgResponse(&org))
}

// Update renames the current organization
// @Summary Update organization
// @Description Rename the organization (org-wide admins only)
// @Tags organizations
// @Accept json
// @Produce json
// @Param request body UpdateOrgRequest true "Updated details"
// @Success 200 {object} OrgResponse
// @Failure 403 {object} map[string]string "Organization admin access required"
// @Security BearerAuth
// @Router /org [put]
func (h *Handler) Update(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !roles.IsOrgWide(user.Role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Organization admin access required"})
		return
	}

	var req UpdateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var org models.Organization
	if err := h.db.First(&org, user.OrganizationID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return
	}

	if req.Name != "" {
		org.Name = req.Name
	}
	if err := h.db.Save(&org).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update organization"})
		return
	}

	c.JSON(http.StatusOK, h.toOrgResponse(&org))
}

// ListMembers returns all members of the current organization
// @Summary List members
// @Description List every member of the organization (org-wide admins only)
// @Tags organizations
// @Produce json
// @Success 200 {array} MemberResponse
// @Security BearerAuth
// @Router /org/members [get]
func (h *Handler) ListMembers(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !roles.IsOrgWide(user.Role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Organization admin access required"})
		return
	}

	var members []models.User
	if err := h.db.Where("organization_id = ?", user.OrganizationID).
		Order("email ASC").Find(&members).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}

	resp := make([]MemberResponse, len(members))
	for i, m := range members {
		resp[i] = MemberResponse{
			ID:        m.ID,
			Email:     m.Email,
			Name:      m.Name,
			Role:      string(m.Role),
			AreaID:    m.AreaID,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateMember changes a member's role
// @Summary Change a member's role
// @Description Change a member's role; the caller must outrank and be allowed to assign the target role
// @Tags organizations
// @Accept json
// @Produce json
// @Param userId path int true "User ID"
// @Param request body UpdateMemberRequest true "New role"
// @Success 200 {object} MemberResponse
// @Failure 403 {object} map[string]string "Not allowed to assign this role"
// @Security BearerAuth
// @Router /org/members/{userId} [put]
func (h *Handler) UpdateMember(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	memberID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newRole := models.Role(req.Role)

	var target models.User
	if err := h.db.Where("id = ? AND organization_id = ?", memberID, user.OrganizationID).
		First(&target).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	// The caller must be able to assign both the role the target holds
	// and the role it is moving to; otherwise an area_admin could
	// demote a client_admin by "assigning" user.
	if !roles.CanAssign(user.Role, target.Role) || !roles.CanAssign(user.Role, newRole) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to assign this role"})
		return
	}

	if target.Role == models.RoleClientAdmin && newRole != models.RoleClientAdmin {
		var adminCount int64
		h.db.Model(&models.User{}).
			Where("organization_id = ? AND role = ?", user.OrganizationID, models.RoleClientAdmin).
			Count(&adminCount)
		if adminCount <= 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote the last organization admin"})
			return
		}
	}

	target.Role = newRole
	if err := h.db.Save(&target).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update member"})
		return
	}

	log.Info().Uint("user_id", target.ID).Str("role", string(newRole)).
		Uint("changed_by", user.ID).Msg("Member role changed")

	c.JSON(http.StatusOK, MemberResponse{
		ID:     target.ID,
		Email:  target.Email,
		Name:   target.Name,
		Role:   string(target.Role),
		AreaID: target.AreaID,
	})
}

// RemoveMember removes a member from the organization
// @Summary Remove a member
// @Description Remove a member from the organization (org-wide admins only)
// @Tags organizations
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} map[string]string "Member removed"
// @Security BearerAuth
// @Router /org/members/{userId} [delete]
func (h *Handler) RemoveMember(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !roles.IsOrgWide(user.Role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Organization admin access required"})
		return
	}
	memberID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var target models.User
	if err := h.db.Where("id = ? AND organization_id = ?", memberID, user.OrganizationID).
		First(&target).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	if target.Role == models.RoleClientAdmin {
		var adminCount int64
		h.db.Model(&models.User{}).
			Where("organization_id = ? AND role = ?", user.OrganizationID, models.RoleClientAdmin).
			Count(&adminCount)
		if adminCount <= 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot remove the last organization admin"})
			return
		}
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.AreaPermission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&target).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// ListDomains returns the organization's email-domain bindings
func (h *Handler) ListDomains(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var domains []models.EmailDomain
	if err := h.db.Where("organization_id = ?", user.OrganizationID).
		Order("domain ASC").Find(&domains).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch domains"})
		return
	}

	resp := make([]DomainResponse, len(domains))
	for i, d := range domains {
		resp[i] = DomainResponse{ID: d.ID, Domain: d.Domain}
	}
	c.JSON(http.StatusOK, resp)
}

// AddDomain binds another email domain to the organization
func (h *Handler) AddDomain(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !roles.IsOrgWide(user.Role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Organization admin access required"})
		return
	}

	var req AddDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	domain := strings.ToLower(req.Domain)

	// Domain bindings are globally unique: a domain claimed by any
	// tenant cannot be claimed again.
	var existing models.EmailDomain
	if err := h.db.Where("domain = ?", domain).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Domain is already claimed"})
		return
	}

	binding := models.EmailDomain{OrganizationID: user.OrganizationID, Domain: domain}
	if err := h.db.Create(&binding).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Domain is already claimed"})
		return
	}

	log.Info().Str("domain", domain).Uint("organization_id", user.OrganizationID).
		Uint("added_by", user.ID).Msg("Email domain bound")

	c.JSON(http.StatusCreated, DomainResponse{ID: binding.ID, Domain: binding.Domain})
}

// RemoveDomain unbinds an email domain from the organization
func (h *Handler) RemoveDomain(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !roles.IsOrgWide(user.Role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Organization admin access required"})
		return
	}
	domainID, err := strconv.ParseUint(c.Param("domainId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid domain ID"})
		return
	}

	var binding models.EmailDomain
	if err := h.db.Where("id = ? AND organization_id = ?", domainID, user.OrganizationID).
		First(&binding).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Domain not found"})
		return
	}

	// An organization with no domain binding could never be joined or
	// invited into again.
	var count int64
	h.db.Model(&models.EmailDomain{}).Where("organization_id = ?", user.OrganizationID).Count(&count)
	if count <= 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot remove the last domain"})
		return
	}

	if err := h.db.Delete(&binding).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove domain"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Domain removed"})
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

// RegisterRoutes registers organization routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.PUT("", h.Update)
	rg.GET("/members", h.ListMembers)
	rg.PUT("/members/:userId", h.UpdateMember)
	rg.DELETE("/members/:userId", h.RemoveMember)
	rg.GET("/domains", h.ListDomains)
	rg.POST("/domains", h.AddDomain)
	rg.DELETE("/domains/:domainId", h.RemoveDomain)
}
