// Package admin exposes the platform operator surface: cross-tenant
// organization and user management plus deployment-wide statistics. All
// routes here are mounted behind RequireSuperAdmin.
package admin

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

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateOrgRequest represents the request to create an organization
type CreateOrgRequest struct {
	Name    string   `json:"name" binding:"required,min=1,max=100"`
	Slug    string   `json:"slug" binding:"required,min=1,max=50"`
	Domains []string `json:"domains" binding:"required,min=1,dive,fqdn"`
}

// OrgResponse represents an organization in admin responses
type OrgResponse struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Domains     []string `json:"domains"`
	MemberCount int64    `json:"member_count"`
	AreaCount   int64    `json:"area_count"`
	CreatedAt   string   `json:"created_at"`
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID             uint   `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	OrganizationID uint   `json:"organization_id"`
	CreatedAt      string `json:"created_at"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

// StatsResponse represents platform-wide statistics
type StatsResponse struct {
	TotalOrganizations int64 `json:"total_organizations"`
	TotalUsers         int64 `json:"total_users"`
	TotalAreas         int64 `json:"total_areas"`
	TotalGrants        int64 `json:"total_grants"`
	PendingInvitations int64 `json:"pending_invitations"`
	ClientAdmins       int64 `json:"client_admins"`
	AreaAdmins         int64 `json:"area_admins"`
}

func (h *Handler) toOrgResponse(org *models.Organization) OrgResponse {
	var domains []string
	h.db.Model(&models.EmailDomain{}).Where("organization_id = ?", org.ID).
		Order("domain ASC").Pluck("domain", &domains)

	var memberCount, areaCount int64
	h.db.Model(&models.User{}).Where("organization_id = ?", org.ID).Count(&memberCount)
	h.db.Model(&models.Area{}).Where("organization_id = ?", org.ID).Count(&areaCount)

	return OrgResponse{
		ID:          org.ID,
		Name:        org.Name,
		Slug:        org.Slug,
		Domains:     domains,
		MemberCount: memberCount,
		AreaCount:   areaCount,
		CreatedAt:   org.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ListOrgs returns every organization on the platform
func (h *Handler) ListOrgs(c *gin.Context) {
	query := h.db.Order("created_at DESC")
	if search := c.Query("q"); search != "" {
		query = query.Where("name LIKE ? OR slug LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var orgs []models.Organization
	if err := query.Find(&orgs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch organizations"})
		return
	}

	resp := make([]OrgResponse, len(orgs))
	for i := range orgs {
		resp[i] = h.toOrgResponse(&orgs[i])
	}
	c.JSON(http.StatusOK, resp)
}

// CreateOrg provisions an organization with its domain bindings
func (h *Handler) CreateOrg(c *gin.Context) {
	var req CreateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var org models.Organization
	err := h.db.Transaction(func(tx *gorm.DB) error {
		org = models.Organization{Name: req.Name, Slug: strings.ToLower(req.Slug)}
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		for _, d := range req.Domains {
			binding := models.EmailDomain{OrganizationID: org.ID, Domain: strings.ToLower(d)}
			if err := tx.Create(&binding).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Slug or domain is already taken"})
		return
	}

	operatorID, _ := auth.GetUserID(c)
	log.Info().Uint("organization_id", org.ID).Str("slug", org.Slug).
		Uint("created_by", operatorID).Msg("Organization provisioned")

	c.JSON(http.StatusCreated, h.toOrgResponse(&org))
}

// GetOrg returns a single organization
func (h *Handler) GetOrg(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid organization ID"})
		return
	}

	var org models.Organization
	if err := h.db.First(&org, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return
	}
	c.JSON(http.StatusOK, h.toOrgResponse(&org))
}

// ListUsers returns users across all organizations
func (h *Handler) ListUsers(c *gin.Context) {
	query := h.db.Order("created_at DESC")

	if search := c.Query("q"); search != "" {
		query = query.Where("email LIKE ? OR name LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if orgParam := c.Query("org_id"); orgParam != "" {
		orgID, err := strconv.ParseUint(orgParam, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid organization ID"})
			return
		}
		query = query.Where("organization_id = ?", orgID)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	resp := make([]UserResponse, len(users))
	for i, user := range users {
		resp[i] = UserResponse{
			ID:             user.ID,
			Email:          user.Email,
			Name:           user.Name,
			Role:           string(user.Role),
			OrganizationID: user.OrganizationID,
			CreatedAt:      user.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateUser updates a user's name or role
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Prevent the operator from demoting themselves
	operatorID, _ := auth.GetUserID(c)
	if uint(id) == operatorID && req.Role != nil && *req.Role != string(models.RoleSuperAdmin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Role != nil {
		if !roles.Valid(models.Role(*req.Role)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		updates["role"] = *req.Role
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}

	h.db.First(&user, id)
	c.JSON(http.StatusOK, UserResponse{
		ID:             user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           string(user.Role),
		OrganizationID: user.OrganizationID,
		CreatedAt:      user.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// DeleteUser soft-deletes a user and their grants
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	operatorID, _ := auth.GetUserID(c)
	if uint(id) == operatorID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.AreaPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invited_by_id = ? AND used_at IS NULL", user.ID).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns platform-wide statistics
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse

	h.db.Model(&models.Organization{}).Count(&stats.TotalOrganizations)
	h.db.Model(&models.User{}).Count(&stats.TotalUsers)
	h.db.Model(&models.Area{}).Count(&stats.TotalAreas)
	h.db.Model(&models.AreaPermission{}).Count(&stats.TotalGrants)
	h.db.Model(&models.Invitation{}).
		Where("used_at IS NULL AND expires_at > CURRENT_TIMESTAMP").
		Count(&stats.PendingInvitations)
	h.db.Model(&models.User{}).Where("role = ?", models.RoleClientAdmin).Count(&stats.ClientAdmins)
	h.db.Model(&models.User{}).Where("role = ?", models.RoleAreaAdmin).Count(&stats.AreaAdmins)

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/orgs", h.ListOrgs)
	rg.POST("/orgs", h.CreateOrg)
	rg.GET("/orgs/:id", h.GetOrg)
	rg.GET("/users", h.ListUsers)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
