// Package signup is the single entry point for account creation. Every
// new user is classified exactly once — by invitation redemption or by
// email-domain resolution — and the classification and the profile write
// commit in the same transaction. Nothing else in the application
// inserts users.
package signup

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/auth"
	"github.com/revuhq/revu/pkg/revu/config"
	"github.com/revuhq/revu/pkg/revu/invitations"
	"github.com/revuhq/revu/pkg/revu/models"
	"github.com/revuhq/revu/pkg/revu/tenant"
)

var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrUninvitedDomain = errors.New("signups for this organization require an invitation")
)

// Provisioner orchestrates signup.
type Provisioner struct {
	db      *gorm.DB
	invites *invitations.Service
	mode    config.SignupMode
}

// NewProvisioner creates a provisioner. mode decides what happens to
// uninvited signups from already-known domains.
func NewProvisioner(db *gorm.DB, invites *invitations.Service, mode config.SignupMode) *Provisioner {
	return &Provisioner{db: db, invites: invites, mode: mode}
}

// Request carries everything a signup may supply. Role, organization and
// area are never taken from the caller directly: with an invite token
// they come from the invitation, without one from domain resolution.
// The Area fields only matter for area_admin invitations that deferred
// the area choice to redemption.
type Request struct {
	Email            string
	Password         string
	Name             string
	OrganizationName string
	InviteToken      string
	AreaID           *uint
	AreaName         string
	AreaDescription  string
}

// SignUp creates the account described by req.
//
// With an invite token the invitation dictates role, organization and
// area. Without one, the email's domain resolves the tenant: the first
// signup from an unseen domain bootstraps the organization and becomes
// its client_admin; later uninvited signups are rejected in invite-only
// mode or join as plain users in open-domain mode.
func (p *Provisioner) SignUp(req Request) (*models.User, error) {
	var existing models.User
	err := p.db.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("email lookup failed: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("password hashing failed: %w", err)
	}

	if req.InviteToken != "" {
		return p.invites.Redeem(req.InviteToken, invitations.Draft{
			Email:           req.Email,
			Name:            req.Name,
			PasswordHash:    hash,
			AreaID:          req.AreaID,
			AreaName:        req.AreaName,
			AreaDescription: req.AreaDescription,
		})
	}

	var user models.User
	err = p.db.Transaction(func(tx *gorm.DB) error {
		org, isNew, err := tenant.NewDirectory(tx).ResolveDomain(req.Email, req.OrganizationName)
		if err != nil {
			return err
		}

		role := models.RoleUser
		if isNew {
			// The first user of a domain becomes its administrator: a
			// deliberate bootstrap rule, logged for audit.
			role = models.RoleClientAdmin
			log.Info().Str("email", req.Email).Uint("organization_id", org.ID).
				Msg("Bootstrapping first admin for new organization")
		} else if p.mode == config.SignupInviteOnly {
			return ErrUninvitedDomain
		}

		user = models.User{
			Email:          req.Email,
			Name:           req.Name,
			PasswordHash:   hash,
			Role:           role,
			OrganizationID: org.ID,
		}
		if err := tx.Create(&user).Error; err != nil {
			// The pre-check can miss: a concurrent signup, or a
			// soft-deleted account still occupying the unique index.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("user creation failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
