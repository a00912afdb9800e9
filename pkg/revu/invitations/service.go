// Package invitations issues, validates and consumes the single-use,
// expiring tokens that bootstrap new accounts into the role/area
// hierarchy. Delivery of the invitation link (email) is a concern of the
// caller; this package only mints and redeems tokens.
package invitations

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/models"
	"github.com/revuhq/revu/pkg/revu/permissions"
	"github.com/revuhq/revu/pkg/revu/tenant"
)

var (
	ErrNotFound       = errors.New("invitation not found")
	ErrExpired        = errors.New("invitation has expired")
	ErrAlreadyUsed    = errors.New("invitation has already been used")
	ErrForbidden      = errors.New("not allowed to issue this invitation")
	ErrAreaRequired   = errors.New("an area is required")
	ErrOrgRequired    = errors.New("an organization is required")
	ErrAreaMismatch   = errors.New("area does not belong to the organization")
	ErrDomainMismatch = errors.New("email domain does not match the invited organization")
	ErrInvalidType    = errors.New("unknown invitation type")
)

const (
	defaultExpiryDays = 7
	defaultTokenBytes = 24 // ~32 URL-safe characters, well past 128 bits
)

// Options tune invitation lifetimes and token size; zero values fall
// back to the defaults.
type Options struct {
	ExpiryDays int
	TokenBytes int
}

// Service manages the invitation lifecycle: pending at issuance,
// consumed exactly once at redemption, or expired by the clock.
type Service struct {
	db   *gorm.DB
	opts Options
}

// NewService creates an invitation service on the given database handle.
func NewService(db *gorm.DB, opts Options) *Service {
	if opts.ExpiryDays <= 0 {
		opts.ExpiryDays = defaultExpiryDays
	}
	if opts.TokenBytes <= 0 {
		opts.TokenBytes = defaultTokenBytes
	}
	return &Service{db: db, opts: opts}
}

// generateToken returns an unguessable URL-safe token.
func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue creates a pending invitation for email into the organization.
//
// Authorization: a client_admin may issue both invitation types within
// their own organization; an area_admin may issue only employee
// invitations into areas they administer (never area_admin invitations —
// that path would allow escalation); a super_admin may issue anything
// anywhere. orgID 0 defaults to the issuer's organization.
//
// An employee invitation must name its area. An area_admin invitation
// may leave the area nil, deferring the choice to redemption.
func (s *Service) Issue(issuer *models.User, orgID uint, email string, invType models.InvitationType, areaID *uint) (*models.Invitation, error) {
	if invType != models.InvitationEmployee && invType != models.InvitationAreaAdmin {
		return nil, ErrInvalidType
	}
	if orgID == 0 {
		orgID = issuer.OrganizationID
	}
	// The bootstrap super_admin has no organization of its own. An
	// invitation bound to organization 0 could never pass the domain
	// check at redemption, so issuing one is refused up front.
	if orgID == 0 {
		return nil, ErrOrgRequired
	}

	switch issuer.Role {
	case models.RoleSuperAdmin:
		// any organization
	case models.RoleClientAdmin:
		if orgID != issuer.OrganizationID {
			return nil, ErrForbidden
		}
	case models.RoleAreaAdmin:
		if invType != models.InvitationEmployee || orgID != issuer.OrganizationID {
			return nil, ErrForbidden
		}
		if areaID == nil {
			return nil, ErrAreaRequired
		}
		level, found, err := permissions.NewStore(s.db).LevelFor(*areaID, issuer.ID)
		if err != nil {
			return nil, err
		}
		if !found || level != models.PermissionAdmin {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	if invType == models.InvitationEmployee && areaID == nil {
		return nil, ErrAreaRequired
	}
	if areaID != nil {
		var area models.Area
		if err := s.db.First(&area, *areaID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAreaMismatch
			}
			return nil, fmt.Errorf("area lookup failed: %w", err)
		}
		if area.OrganizationID != orgID {
			return nil, ErrAreaMismatch
		}
	}

	token, err := generateToken(s.opts.TokenBytes)
	if err != nil {
		return nil, fmt.Errorf("token generation failed: %w", err)
	}

	inv := models.Invitation{
		OrganizationID: orgID,
		InvitedByID:    issuer.ID,
		Email:          email,
		Type:           invType,
		AreaID:         areaID,
		Token:          token,
		ExpiresAt:      time.Now().Add(time.Duration(s.opts.ExpiryDays) * 24 * time.Hour),
	}
	if err := s.db.Create(&inv).Error; err != nil {
		return nil, fmt.Errorf("invitation creation failed: %w", err)
	}

	log.Info().Uint("invitation_id", inv.ID).Uint("organization_id", orgID).
		Str("type", string(invType)).Uint("issued_by", issuer.ID).
		Msg("Invitation issued")
	return &inv, nil
}

// Validate looks a token up and checks that it is still redeemable.
// Callers exposing this to unauthenticated users must collapse the
// distinct failure reasons into one generic response; the reasons exist
// for logging and for the redemption path.
func (s *Service) Validate(token string) (*models.Invitation, error) {
	return s.validate(s.db, token)
}

func (s *Service) validate(db *gorm.DB, token string) (*models.Invitation, error) {
	var inv models.Invitation
	err := db.Where("token = ?", token).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation lookup failed: %w", err)
	}
	switch inv.Status(time.Now()) {
	case models.InvitationConsumed:
		return &inv, ErrAlreadyUsed
	case models.InvitationExpired:
		return &inv, ErrExpired
	}
	return &inv, nil
}

// Draft carries the invitee's signup data into redemption. For an
// area_admin invitation that deferred its area, either AreaID picks an
// existing area or AreaName creates a new one.
type Draft struct {
	Email           string
	Name            string
	PasswordHash    string
	AreaID          *uint
	AreaName        string
	AreaDescription string
}

// Redeem consumes the token and creates the invited user. The token
// flip, the profile write and (for area_admin invitations) the
// delegation row commit in one transaction: concurrent redeemers of the
// same token see exactly one winner, and no failure can leave the token
// consumed without its user or the user without their permission row.
func (s *Service) Redeem(token string, draft Draft) (*models.User, error) {
	var user models.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := s.validate(tx, token)
		if err != nil {
			return err
		}

		// Compare-and-set on used_at. A plain read-then-write would let
		// two concurrent redeemers both pass validation; the guarded
		// update lets only one row change stick.
		now := time.Now()
		res := tx.Model(&models.Invitation{}).
			Where("id = ? AND used_at IS NULL", inv.ID).
			Update("used_at", now)
		if res.Error != nil {
			return fmt.Errorf("invitation consume failed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyUsed
		}

		// A leaked invitation link must not be redeemable against a
		// foreign identity: the redeeming email's domain has to map to
		// the invited organization.
		org, found, err := tenant.NewDirectory(tx).LookupDomain(draft.Email)
		if err != nil {
			return err
		}
		if !found || org.ID != inv.OrganizationID {
			return ErrDomainMismatch
		}

		user = models.User{
			Email:          draft.Email,
			Name:           draft.Name,
			PasswordHash:   draft.PasswordHash,
			OrganizationID: inv.OrganizationID,
		}

		switch inv.Type {
		case models.InvitationEmployee:
			user.Role = models.RoleUser
			user.AreaID = inv.AreaID
		case models.InvitationAreaAdmin:
			user.Role = models.RoleAreaAdmin
			areaID, err := s.resolveAdminArea(tx, inv, draft)
			if err != nil {
				return err
			}
			user.AreaID = &areaID
		}

		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("user creation failed: %w", err)
		}

		if inv.Type == models.InvitationAreaAdmin {
			perm := models.AreaPermission{
				AreaID:      *user.AreaID,
				UserID:      user.ID,
				Level:       models.PermissionAdmin,
				GrantedByID: inv.InvitedByID,
			}
			if err := tx.Create(&perm).Error; err != nil {
				return fmt.Errorf("permission creation failed: %w", err)
			}
		}

		log.Info().Uint("invitation_id", inv.ID).Uint("user_id", user.ID).
			Str("role", string(user.Role)).Msg("Invitation redeemed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// resolveAdminArea picks the area an invited area_admin will administer:
// the invitation's area when fixed at issuance, otherwise the invitee's
// choice — an existing area of the organization or a brand new one.
func (s *Service) resolveAdminArea(tx *gorm.DB, inv *models.Invitation, draft Draft) (uint, error) {
	if inv.AreaID != nil {
		return *inv.AreaID, nil
	}
	if draft.AreaID != nil {
		var area models.Area
		if err := tx.First(&area, *draft.AreaID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrAreaMismatch
			}
			return 0, fmt.Errorf("area lookup failed: %w", err)
		}
		if area.OrganizationID != inv.OrganizationID {
			return 0, ErrAreaMismatch
		}
		return area.ID, nil
	}
	if draft.AreaName == "" {
		return 0, ErrAreaRequired
	}
	area := models.Area{
		OrganizationID: inv.OrganizationID,
		Name:           draft.AreaName,
		Description:    draft.AreaDescription,
	}
	if err := tx.Create(&area).Error; err != nil {
		return 0, fmt.Errorf("area creation failed: %w", err)
	}
	return area.ID, nil
}
