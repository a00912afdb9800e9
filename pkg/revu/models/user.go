package models

import (
	"time"

	"gorm.io/gorm"
)

// Role represents a user's role tier.
// super_admin > client_admin > area_admin > user; ordering and
// assignment rules live in pkg/revu/roles.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleClientAdmin Role = "client_admin"
	RoleAreaAdmin   Role = "area_admin"
	RoleUser        Role = "user"
)

// User represents a principal: an authenticated profile with exactly one
// role and one organization. AreaID is the primary area for area_admins
// and an optional home area for plain users; it is never set for
// client_admins. OrganizationID is 0 only for the bootstrap super admin,
// which belongs to no tenant.
type User struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string         `json:"-"`
	Name           string         `gorm:"not null" json:"name"`
	Role           Role           `gorm:"type:varchar(20);default:'user'" json:"role"`
	OrganizationID uint           `gorm:"index" json:"organization_id"`
	AreaID         *uint          `json:"area_id,omitempty"`

	// Relationships
	Organization    Organization     `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	AreaPermissions []AreaPermission `gorm:"foreignKey:UserID" json:"area_permissions,omitempty"`
}
