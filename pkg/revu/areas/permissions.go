package areas

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/models"
	"github.com/revuhq/revu/pkg/revu/permissions"
)

// PermissionResponse represents an area grant in API responses
type PermissionResponse struct {
	UserID      uint   `json:"user_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Level       string `json:"level"`
	GrantedByID uint   `json:"granted_by_id"`
}

// GrantRequest represents a request to grant a permission
type GrantRequest struct {
	Email string `json:"email" binding:"required,email"`
	Level string `json:"level" binding:"required,oneof=admin viewer"`
}

// UpdatePermissionRequest represents a request to change a grant's level
type UpdatePermissionRequest struct {
	Level string `json:"level" binding:"required,oneof=admin viewer"`
}

// ListPermissions returns all grants on an area
func (h *Handler) ListPermissions(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	area, ok := h.visibleArea(c, user, permissions.ActionView)
	if !ok {
		return
	}

	var perms []models.AreaPermission
	if err := h.db.Preload("User").Where("area_id = ?", area.ID).Find(&perms).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch permissions"})
		return
	}

	resp := make([]PermissionResponse, len(perms))
	for i, p := range perms {
		resp[i] = PermissionResponse{
			UserID:      p.User.ID,
			Email:       p.User.Email,
			Name:        p.User.Name,
			Level:       string(p.Level),
			GrantedByID: p.GrantedByID,
		}
	}

	c.JSON(http.StatusOK, resp)
}

// GrantPermission grants a user a level on an area
func (h *Handler) GrantPermission(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	areaID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area ID"})
		return
	}

	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var target models.User
	if err := h.db.Where("email = ?", req.Email).First(&target).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	err = h.store.Grant(uint(areaID), target.ID, models.PermissionLevel(req.Level), user)
	switch {
	case errors.Is(err, permissions.ErrAreaNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Area not found"})
		return
	// A foreign-organization account is reported exactly like a missing
	// one, so the endpoint cannot be used to probe other tenants' emails.
	case errors.Is(err, permissions.ErrTenantMismatch), errors.Is(err, permissions.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	case errors.Is(err, permissions.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	case errors.Is(err, permissions.ErrDuplicateGrant):
		c.JSON(http.StatusConflict, gin.H{"error": "User already has a permission for this area"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to grant permission"})
		return
	}

	c.JSON(http.StatusCreated, PermissionResponse{
		UserID:      target.ID,
		Email:       target.Email,
		Name:        target.Name,
		Level:       req.Level,
		GrantedByID: user.ID,
	})
}

// UpdatePermission changes an existing grant's level
func (h *Handler) UpdatePermission(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	area, ok := h.visibleArea(c, user, permissions.ActionEdit)
	if !ok {
		return
	}
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req UpdatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.store.Update(area.ID, uint(targetID), models.PermissionLevel(req.Level))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Permission not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update permission"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Permission updated"})
}

// RevokePermission removes a user's grant on an area
func (h *Handler) RevokePermission(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	area, ok := h.visibleArea(c, user, permissions.ActionEdit)
	if !ok {
		return
	}
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := h.store.Revoke(area.ID, uint(targetID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke permission"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Permission revoked"})
}

func (h *Handler) registerPermissionRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/permissions", h.ListPermissions)
	rg.POST("/:id/permissions", h.GrantPermission)
	rg.PUT("/:id/permissions/:userId", h.UpdatePermission)
	rg.DELETE("/:id/permissions/:userId", h.RevokePermission)
}
