package permissions

import (
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/models"
	"github.com/revuhq/revu/pkg/revu/roles"
)

// ErrMissingOrganization is returned for malformed resources. A denial
// is never an error; this is the only input the evaluator rejects.
var ErrMissingOrganization = errors.New("resource has no organization")

// Action is what the principal wants to do with a resource.
type Action string

const (
	ActionView Action = "view"
	ActionEdit Action = "edit"
)

// Resource identifies what is being acted on. OrganizationID is
// mandatory; AreaID scopes the resource to a sub-tenant area; OwnerID
// marks resources a user always has access to (e.g. their own profile).
type Resource struct {
	OrganizationID uint
	AreaID         *uint
	OwnerID        *uint
}

// Evaluator answers permission questions by composing the role rules
// with the area delegation relation.
type Evaluator struct {
	db *gorm.DB
}

// NewEvaluator creates an evaluator on the given database handle.
func NewEvaluator(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db}
}

// Can reports whether the principal may perform the action on the
// resource. Denial is a value, not an error; the only error paths are a
// malformed resource (missing organization) and storage failures.
//
//   - super_admin: always allowed
//   - client_admin: allowed within their own organization
//   - area_admin / user: allowed within their own organization when the
//     delegation relation holds the required level for the resource's
//     area (admin to edit, viewer or admin to view), or when they own
//     the resource and it is not area-scoped
//
// The area check is one indexed read. The evaluator never re-enters
// itself for the same area/user pair; that is what keeps the delegation
// table's own access rules from recursing.
func (e *Evaluator) Can(principal *models.User, action Action, resource Resource) (bool, error) {
	if resource.OrganizationID == 0 {
		return false, ErrMissingOrganization
	}
	if principal == nil {
		return false, nil
	}

	if principal.Role == models.RoleSuperAdmin {
		return true, nil
	}

	if principal.OrganizationID != resource.OrganizationID {
		e.logDenial(principal, action, resource, "foreign organization")
		return false, nil
	}

	// client_admins act over every area in their organization without
	// per-area rows
	if roles.IsOrgWide(principal.Role) {
		return true, nil
	}

	if resource.AreaID == nil {
		if resource.OwnerID != nil && *resource.OwnerID == principal.ID {
			return true, nil
		}
		e.logDenial(principal, action, resource, "no area scope and not owner")
		return false, nil
	}

	level, found, err := levelFor(e.db, *resource.AreaID, principal.ID)
	if err != nil {
		return false, err
	}
	if !found {
		e.logDenial(principal, action, resource, "no permission for area")
		return false, nil
	}
	if RequiredLevel(action) == models.PermissionAdmin && level != models.PermissionAdmin {
		e.logDenial(principal, action, resource, "viewer cannot edit")
		return false, nil
	}
	return true, nil
}

// Every denial is logged with principal, action and resource for audit.
func (e *Evaluator) logDenial(principal *models.User, action Action, resource Resource, reason string) {
	ev := log.Warn().
		Uint("user_id", principal.ID).
		Str("role", string(principal.Role)).
		Str("action", string(action)).
		Uint("resource_org", resource.OrganizationID).
		Str("reason", reason)
	if resource.AreaID != nil {
		ev = ev.Uint("resource_area", *resource.AreaID)
	}
	ev.Msg("Permission denied")
}

// RequiredLevel returns the minimum permission level for an action.
func RequiredLevel(action Action) models.PermissionLevel {
	if action == ActionEdit {
		return models.PermissionAdmin
	}
	return models.PermissionViewer
}
