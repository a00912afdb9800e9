package models

import (
	"time"

	"gorm.io/gorm"
)

// Area represents a sub-tenant unit within an organization (e.g., a
// department) with its own delegated admins. Areas are scoped strictly
// to one organization.
type Area struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	OrganizationID uint           `gorm:"not null;index" json:"organization_id"`
	Name           string         `gorm:"not null" json:"name"`
	Description    string         `json:"description"`

	// Relationships
	Organization Organization     `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Permissions  []AreaPermission `gorm:"foreignKey:AreaID" json:"permissions,omitempty"`
}
