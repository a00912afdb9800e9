package models

import (
	"time"

	"gorm.io/gorm"
)

// InvitationType determines the role an invitation grants at redemption
type InvitationType string

const (
	InvitationAreaAdmin InvitationType = "area_admin"
	InvitationEmployee  InvitationType = "employee"
)

// InvitationStatus is derived from UsedAt/ExpiresAt, never stored
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationConsumed InvitationStatus = "consumed"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation is a single-use, expiring token that bootstraps a new user
// into an organization with a predetermined role and area. AreaID is
// required for employee invitations; for area_admin invitations it may
// be left nil and chosen (or created) by the invitee at redemption.
// UsedAt nil means redeemable; once set it is permanently terminal.
type Invitation struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	OrganizationID uint           `gorm:"not null;index" json:"organization_id"`
	InvitedByID    uint           `gorm:"not null" json:"invited_by_id"`
	Email          string         `gorm:"not null" json:"email"`
	Type           InvitationType `gorm:"type:varchar(20);not null" json:"type"`
	AreaID         *uint          `json:"area_id,omitempty"`
	Token          string         `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt      time.Time      `gorm:"not null" json:"expires_at"`
	UsedAt         *time.Time     `json:"used_at,omitempty"`

	// Relationships
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	InvitedBy    User         `gorm:"foreignKey:InvitedByID" json:"invited_by,omitempty"`
}

// Status returns the invitation's lifecycle state at the given time.
// Consumed wins over expired: a redeemed invitation stays consumed even
// after its expiry passes.
func (i *Invitation) Status(now time.Time) InvitationStatus {
	if i.UsedAt != nil {
		return InvitationConsumed
	}
	if now.After(i.ExpiresAt) {
		return InvitationExpired
	}
	return InvitationPending
}
