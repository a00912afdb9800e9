// Package roles defines the role vocabulary and the precedence rules the
// rest of the application uses to make authorization decisions. It is
// pure data: no storage, no dependencies on other revu packages beyond
// the model enum.
package roles

import "github.com/revuhq/revu/pkg/revu/models"

// rank orders the role tiers. Higher rank means broader scope.
var rank = map[models.Role]int{
	models.RoleSuperAdmin:  4,
	models.RoleClientAdmin: 3,
	models.RoleAreaAdmin:   2,
	models.RoleUser:        1,
}

// Rank returns the role's position in the hierarchy, 0 for unknown roles.
func Rank(r models.Role) int {
	return rank[r]
}

// Valid reports whether r is one of the four known role tiers.
func Valid(r models.Role) bool {
	return rank[r] > 0
}

// IsOrgWide reports whether the role acts over every area in its
// organization without needing per-area permission rows.
func IsOrgWide(r models.Role) bool {
	return r == models.RoleSuperAdmin || r == models.RoleClientAdmin
}

// CanAssign reports whether an actor with the given role may assign the
// target role to another user. Organization and area scoping are checked
// by the caller; this answers only the role-tier question.
//
//   - super_admin assigns any role
//   - client_admin assigns client_admin, area_admin or user
//   - area_admin assigns only user
//   - user assigns nothing
//
// This is the rule that closes privilege escalation through the
// account-creation and invitation paths.
func CanAssign(actor, target models.Role) bool {
	if !Valid(actor) || !Valid(target) {
		return false
	}
	switch actor {
	case models.RoleSuperAdmin:
		return true
	case models.RoleClientAdmin:
		return target != models.RoleSuperAdmin
	case models.RoleAreaAdmin:
		return target == models.RoleUser
	default:
		return false
	}
}
