package models

import (
	"time"

	"gorm.io/gorm"
)

// PermissionLevel represents what a user may do within a specific area
type PermissionLevel string

const (
	PermissionAdmin  PermissionLevel = "admin"
	PermissionViewer PermissionLevel = "viewer"
)

// AreaPermission is the delegation relation: a row authorizing one user
// to administer or view one specific area. client_admins never need rows
// here (they act org-wide); area_admins and users only have rights over
// areas where a row exists.
type AreaPermission struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
	AreaID      uint            `gorm:"not null;uniqueIndex:idx_area_user" json:"area_id"`
	UserID      uint            `gorm:"not null;uniqueIndex:idx_area_user" json:"user_id"`
	Level       PermissionLevel `gorm:"type:varchar(20);default:'viewer'" json:"level"`
	GrantedByID uint            `json:"granted_by_id"`

	// Relationships
	Area Area `gorm:"foreignKey:AreaID" json:"area,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
