package roles

import (
	"testing"

	"github.com/revuhq/revu/pkg/revu/models"
)

func TestRankOrdering(t *testing.T) {
	ordered := []models.Role{
		models.RoleUser,
		models.RoleAreaAdmin,
		models.RoleClientAdmin,
		models.RoleSuperAdmin,
	}

	for i := 1; i < len(ordered); i++ {
		if Rank(ordered[i]) <= Rank(ordered[i-1]) {
			t.Errorf("Expected %s to outrank %s", ordered[i], ordered[i-1])
		}
	}

	if Rank(models.Role("manager")) != 0 {
		t.Error("Unknown role should have rank 0")
	}
}

func TestIsOrgWide(t *testing.T) {
	if !IsOrgWide(models.RoleSuperAdmin) {
		t.Error("super_admin should be org-wide")
	}
	if !IsOrgWide(models.RoleClientAdmin) {
		t.Error("client_admin should be org-wide")
	}
	if IsOrgWide(models.RoleAreaAdmin) {
		t.Error("area_admin should not be org-wide")
	}
	if IsOrgWide(models.RoleUser) {
		t.Error("user should not be org-wide")
	}
}

func TestCanAssign(t *testing.T) {
	cases := []struct {
		actor, target models.Role
		want          bool
	}{
		{models.RoleSuperAdmin, models.RoleSuperAdmin, true},
		{models.RoleSuperAdmin, models.RoleClientAdmin, true},
		{models.RoleSuperAdmin, models.RoleUser, true},
		{models.RoleClientAdmin, models.RoleClientAdmin, true},
		{models.RoleClientAdmin, models.RoleAreaAdmin, true},
		{models.RoleClientAdmin, models.RoleUser, true},
		{models.RoleClientAdmin, models.RoleSuperAdmin, false},
		{models.RoleAreaAdmin, models.RoleUser, true},
		{models.RoleAreaAdmin, models.RoleAreaAdmin, false},
		{models.RoleAreaAdmin, models.RoleClientAdmin, false},
		{models.RoleUser, models.RoleUser, false},
		{models.RoleUser, models.RoleSuperAdmin, false},
	}

	for _, tc := range cases {
		if got := CanAssign(tc.actor, tc.target); got != tc.want {
			t.Errorf("CanAssign(%s, %s) = %v, want %v", tc.actor, tc.target, got, tc.want)
		}
	}
}

func TestCanAssignUnknownRoles(t *testing.T) {
	if CanAssign(models.Role("owner"), models.RoleUser) {
		t.Error("Unknown actor role should not assign anything")
	}
	if CanAssign(models.RoleSuperAdmin, models.Role("owner")) {
		t.Error("Unknown target role should not be assignable")
	}
}
