// Package areas exposes area management over HTTP. Visibility and
// mutation rights follow the permission evaluator: org-wide admins act
// on every area of their organization, area_admins only where they hold
// an admin grant.
package areas

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/auth"
	"github.com/revuhq/revu/pkg/revu/models"
	"github.com/revuhq/revu/pkg/revu/permissions"
	"github.com/revuhq/revu/pkg/revu/roles"
)

// Handler handles area-related requests
type Handler struct {
	db    *gorm.DB
	store *permissions.Store
	eval  *permissions.Evaluator
}

// NewHandler creates a new areas handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{
		db:    db,
		store: permissions.NewStore(db),
		eval:  permissions.NewEvaluator(db),
	}
}

// CreateAreaRequest represents the request to create an area
type CreateAreaRequest struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	OrganizationID uint   `json:"organization_id"` // super_admin only; others default to their own org
}

// UpdateAreaRequest represents the request to update an area
type UpdateAreaRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AreaResponse represents an area in API responses
type AreaResponse struct {
	ID             uint   `json:"id"`
	OrganizationID uint   `json:"organization_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	MemberCount    int    `json:"member_count,omitempty"`
}

func toAreaResponse(area *models.Area) AreaResponse {
	return AreaResponse{
		ID:             area.ID,
		OrganizationID: area.OrganizationID,
		Name:           area.Name,
		Description:    area.Description,
	}
}

// List returns the areas visible to the current user
// @Summary List areas
// @Description List areas: all of them for org-wide admins, administered areas for area admins, the home area for everyone else
// @Tags areas
// @Produce json
// @Success 200 {array} AreaResponse
// @Security BearerAuth
// @Router /areas [get]
func (h *Handler) List(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	query := h.db.Order("name ASC")
	switch {
	case user.Role == models.RoleSuperAdmin:
		if orgParam := c.Query("org_id"); orgParam != "" {
			orgID, err := strconv.ParseUint(orgParam, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid organization ID"})
				return
			}
			query = query.Where("organization_id = ?", orgID)
		}
	case roles.IsOrgWide(user.Role):
		query = query.Where("organization_id = ?", user.OrganizationID)
	case user.Role == models.RoleAreaAdmin:
		ids, err := h.store.AdminAreaIDs(user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch areas"})
			return
		}
		query = query.Where("id IN ? AND organization_id = ?", ids, user.OrganizationID)
	default:
		if user.AreaID == nil {
			c.JSON(http.StatusOK, []AreaResponse{})
			return
		}
		query = query.Where("id = ?", *user.AreaID)
	}

	var areas []models.Area
	if err := query.Find(&areas).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch areas"})
		return
	}

	resp := make([]AreaResponse, len(areas))
	for i := range areas {
		resp[i] = toAreaResponse(&areas[i])
		var memberCount int64
		h.db.Model(&models.User{}).Where("area_id = ?", areas[i].ID).Count(&memberCount)
		resp[i].MemberCount = int(memberCount)
	}

	c.JSON(http.StatusOK, resp)
}

// Create creates a new area
// @Summary Create an area
// @Description Create an area (org-wide admins only)
// @Tags areas
// @Accept json
// @Produce json
// @Param request body CreateAreaRequest true "Area details"
// @Success 201 {object} AreaResponse
// @Failure 403 {object} map[string]string "Organization admin access required"
// @Security BearerAuth
// @Router /areas [post]
func (h *Handler) Create(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req CreateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := req.OrganizationID
	if orgID == 0 {
		orgID = user.OrganizationID
	}

	if !roles.IsOrgWide(user.Role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Organization admin access required"})
		return
	}
	if user.Role != models.RoleSuperAdmin && orgID != user.OrganizationID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot create areas in another organization"})
		return
	}

	area := models.Area{
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
	}
	if err := h.db.Create(&area).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create area"})
		return
	}

	c.JSON(http.StatusCreated, toAreaResponse(&area))
}

// Get returns a specific area
// @Summary Get an area
// @Description Get details of an area the current user may view
// @Tags areas
// @Produce json
// @Param id path int true "Area ID"
// @Success 200 {object} AreaResponse
// @Failure 404 {object} map[string]string "Area not found"
// @Security BearerAuth
// @Router /areas/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	area, ok := h.visibleArea(c, user, permissions.ActionView)
	if !ok {
		return
	}

	resp := toAreaResponse(area)
	var memberCount int64
	h.db.Model(&models.User{}).Where("area_id = ?", area.ID).Count(&memberCount)
	resp.MemberCount = int(memberCount)

	c.JSON(http.StatusOK, resp)
}

// Update updates an area
// @Summary Update an area
// @Description Update an area's name or description (requires edit rights)
// @Tags areas
// @Accept json
// @Produce json
// @Param id path int true "Area ID"
// @Param request body UpdateAreaRequest true "Updated area details"
// @Success 200 {object} AreaResponse
// @Failure 404 {object} map[string]string "Area not found"
// @Security BearerAuth
// @Router /areas/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	area, ok := h.visibleArea(c, user, permissions.ActionEdit)
	if !ok {
		return
	}

	var req UpdateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		area.Name = req.Name
	}
	if req.Description != "" {
		area.Description = req.Description
	}

	if err := h.db.Save(area).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update area"})
		return
	}

	c.JSON(http.StatusOK, toAreaResponse(area))
}

// Delete deletes an area
// @Summary Delete an area
// @Description Delete an area (org-wide admins only)
// @Tags areas
// @Produce json
// @Param id path int true "Area ID"
// @Success 200 {object} map[string]string "Area deleted"
// @Failure 403 {object} map[string]string "Organization admin access required"
// @Security BearerAuth
// @Router /areas/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	area, ok := h.visibleArea(c, user, permissions.ActionEdit)
	if !ok {
		return
	}

	// Deleting a whole area is an org-level decision, above area_admin
	if !roles.IsOrgWide(user.Role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Organization admin access required"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("area_id = ?", area.ID).Delete(&models.AreaPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("area_id = ?", area.ID).Update("area_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Area{}, area.ID).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete area"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Area deleted"})
}

// visibleArea loads the area from the :id path parameter and checks the
// evaluator's verdict. Denials come back as 404 so the endpoint does not
// reveal which area IDs exist in other tenants.
func (h *Handler) visibleArea(c *gin.Context, user *models.User, action permissions.Action) (*models.Area, bool) {
	areaID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area ID"})
		return nil, false
	}

	var area models.Area
	if err := h.db.First(&area, areaID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Area not found"})
		return nil, false
	}

	allowed, err := h.eval.Can(user, action, permissions.Resource{
		OrganizationID: area.OrganizationID,
		AreaID:         &area.ID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authorization check failed"})
		return nil, false
	}
	// Members may always look at their own home area, grant row or not
	if !allowed && action == permissions.ActionView &&
		user.OrganizationID == area.OrganizationID &&
		user.AreaID != nil && *user.AreaID == area.ID {
		allowed = true
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Area not found"})
		return nil, false
	}
	return &area, true
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

// RegisterRoutes registers area routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	h.registerPermissionRoutes(rg)
}
