package models

import (
	"time"

	"gorm.io/gorm"
)

// Organization represents a tenant: a customer account that owns areas,
// users, email domains and invitations. Organizations are created lazily
// the first time a signup arrives from an unseen email domain, or
// explicitly by a super admin.
type Organization struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`             // Display name (e.g., "Acme Inc.")
	Slug      string         `gorm:"uniqueIndex;not null" json:"slug"` // URL-safe identifier, unique across all orgs

	// Relationships
	Domains []EmailDomain `gorm:"foreignKey:OrganizationID" json:"domains,omitempty"`
	Areas   []Area        `gorm:"foreignKey:OrganizationID" json:"areas,omitempty"`
}

// EmailDomain maps an email domain to exactly one organization.
// The unique index on Domain is what makes tenant resolution a pure
// function of the email address, including under concurrent first
// signups from the same unseen domain.
type EmailDomain struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	OrganizationID uint           `gorm:"not null;index" json:"organization_id"`
	Domain         string         `gorm:"uniqueIndex;not null" json:"domain"` // e.g., "acme.com", stored lowercase

	// Relationships
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}
