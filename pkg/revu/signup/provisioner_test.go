package signup

import (
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/auth"
	"github.com/revuhq/revu/pkg/revu/config"
	"github.com/revuhq/revu/pkg/revu/invitations"
	"github.com/revuhq/revu/pkg/revu/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func newProvisioner(db *gorm.DB, mode config.SignupMode) *Provisioner {
	return NewProvisioner(db, invitations.NewService(db, invitations.Options{}), mode)
}

func TestSignUpBootstrapsNewOrganization(t *testing.T) {
	db := setupTestDB(t)
	p := newProvisioner(db, config.SignupInviteOnly)

	user, err := p.SignUp(Request{Email: "alice@acme.com", Password: "password123", Name: "Alice"})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if user.Role != models.RoleClientAdmin {
		t.Errorf("First signup from a new domain should be client_admin, got %s", user.Role)
	}
	if user.AreaID != nil {
		t.Error("Bootstrap admin should not be bound to an area")
	}

	var org models.Organization
	if err := db.First(&org, user.OrganizationID).Error; err != nil {
		t.Fatalf("Organization not created: %v", err)
	}
	if org.Name != "Acme Inc." || org.Slug != "acme" {
		t.Errorf("Unexpected organization %q / %q", org.Name, org.Slug)
	}

	if !auth.CheckPassword("password123", user.PasswordHash) {
		t.Error("Stored hash should verify against the supplied password")
	}
}

func TestSignUpExplicitOrganizationName(t *testing.T) {
	db := setupTestDB(t)
	p := newProvisioner(db, config.SignupInviteOnly)

	user, err := p.SignUp(Request{
		Email:            "alice@acme.com",
		Password:         "password123",
		Name:             "Alice",
		OrganizationName: "Acme Corporation",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	var org models.Organization
	db.First(&org, user.OrganizationID)
	if org.Name != "Acme Corporation" {
		t.Errorf("Expected explicit organization name, got %q", org.Name)
	}
}

func TestSignUpKnownDomainInviteOnly(t *testing.T) {
	db := setupTestDB(t)
	p := newProvisioner(db, config.SignupInviteOnly)

	if _, err := p.SignUp(Request{Email: "alice@acme.com", Password: "password123", Name: "Alice"}); err != nil {
		t.Fatalf("Bootstrap signup failed: %v", err)
	}

	_, err := p.SignUp(Request{Email: "bob@acme.com", Password: "password123", Name: "Bob"})
	if !errors.Is(err, ErrUninvitedDomain) {
		t.Errorf("Expected ErrUninvitedDomain, got %v", err)
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("Rejected signup must not create a user, have %d", count)
	}
}

func TestSignUpKnownDomainOpenMode(t *testing.T) {
	db := setupTestDB(t)
	p := newProvisioner(db, config.SignupOpenDomain)

	first, err := p.SignUp(Request{Email: "alice@acme.com", Password: "password123", Name: "Alice"})
	if err != nil {
		t.Fatalf("Bootstrap signup failed: %v", err)
	}

	second, err := p.SignUp(Request{Email: "bob@acme.com", Password: "password123", Name: "Bob"})
	if err != nil {
		t.Fatalf("Open-domain signup failed: %v", err)
	}
	if second.Role != models.RoleUser {
		t.Errorf("Later open-domain signups join as user, got %s", second.Role)
	}
	if second.OrganizationID != first.OrganizationID {
		t.Error("Same domain must join the same organization")
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	p := newProvisioner(db, config.SignupOpenDomain)

	if _, err := p.SignUp(Request{Email: "alice@acme.com", Password: "password123", Name: "Alice"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	_, err := p.SignUp(Request{Email: "alice@acme.com", Password: "different456", Name: "Alice Again"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
}

func TestSignUpEmailHeldBySoftDeletedAccount(t *testing.T) {
	db := setupTestDB(t)
	p := newProvisioner(db, config.SignupOpenDomain)

	user, err := p.SignUp(Request{Email: "alice@acme.com", Password: "password123", Name: "Alice"})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := db.Delete(user).Error; err != nil {
		t.Fatalf("Soft delete failed: %v", err)
	}

	// The soft-deleted row is invisible to the pre-check but still
	// occupies the unique email index; the violation must surface as
	// ErrEmailTaken, not as a generic storage error
	_, err = p.SignUp(Request{Email: "alice@acme.com", Password: "different456", Name: "Alice Again"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
}

func TestSignUpWithInviteToken(t *testing.T) {
	db := setupTestDB(t)
	svc := invitations.NewService(db, invitations.Options{})
	p := NewProvisioner(db, svc, config.SignupInviteOnly)

	admin, err := p.SignUp(Request{Email: "alice@acme.com", Password: "password123", Name: "Alice"})
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	area := models.Area{Name: "Sales", OrganizationID: admin.OrganizationID}
	if err := db.Create(&area).Error; err != nil {
		t.Fatalf("Failed to create area: %v", err)
	}

	inv, err := svc.Issue(admin, admin.OrganizationID, "bob@acme.com", models.InvitationEmployee, &area.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Invite-only mode admits invited users from a known domain
	user, err := p.SignUp(Request{
		Email:       "bob@acme.com",
		Password:    "password123",
		Name:        "Bob",
		InviteToken: inv.Token,
	})
	if err != nil {
		t.Fatalf("Invited signup failed: %v", err)
	}
	if user.Role != models.RoleUser {
		t.Errorf("Employee invitation yields role user, got %s", user.Role)
	}
	if user.AreaID == nil || *user.AreaID != area.ID {
		t.Error("Invited user should land in the invitation's area")
	}
	if user.OrganizationID != admin.OrganizationID {
		t.Error("Invited user belongs to the issuing organization")
	}
}

func TestSignUpInviteDomainMismatch(t *testing.T) {
	db := setupTestDB(t)
	svc := invitations.NewService(db, invitations.Options{})
	p := NewProvisioner(db, svc, config.SignupInviteOnly)

	admin, _ := p.SignUp(Request{Email: "alice@acme.com", Password: "password123", Name: "Alice"})
	area := models.Area{Name: "Sales", OrganizationID: admin.OrganizationID}
	db.Create(&area)

	inv, err := svc.Issue(admin, admin.OrganizationID, "bob@acme.com", models.InvitationEmployee, &area.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// mallory.net resolves to a different organization than the invite's
	_, err = p.SignUp(Request{
		Email:       "bob@mallory.net",
		Password:    "password123",
		Name:        "Mallory",
		InviteToken: inv.Token,
	})
	if !errors.Is(err, invitations.ErrDomainMismatch) {
		t.Fatalf("Expected ErrDomainMismatch, got %v", err)
	}

	// The failed redemption must leave the invitation redeemable
	var fresh models.Invitation
	db.First(&fresh, inv.ID)
	if fresh.UsedAt != nil {
		t.Error("Failed redemption must not consume the invitation")
	}
	var count int64
	db.Model(&models.User{}).Where("email = ?", "bob@mallory.net").Count(&count)
	if count != 0 {
		t.Error("Failed redemption must not create a user")
	}
}

func TestSignUpInviteSingleUse(t *testing.T) {
	db := setupTestDB(t)
	svc := invitations.NewService(db, invitations.Options{})
	p := NewProvisioner(db, svc, config.SignupInviteOnly)

	admin, _ := p.SignUp(Request{Email: "alice@acme.com", Password: "password123", Name: "Alice"})
	area := models.Area{Name: "Sales", OrganizationID: admin.OrganizationID}
	db.Create(&area)
	inv, _ := svc.Issue(admin, admin.OrganizationID, "bob@acme.com", models.InvitationEmployee, &area.ID)

	if _, err := p.SignUp(Request{Email: "bob@acme.com", Password: "password123", Name: "Bob", InviteToken: inv.Token}); err != nil {
		t.Fatalf("First redemption failed: %v", err)
	}
	_, err := p.SignUp(Request{Email: "carol@acme.com", Password: "password123", Name: "Carol", InviteToken: inv.Token})
	if !errors.Is(err, invitations.ErrAlreadyUsed) {
		t.Errorf("Expected ErrAlreadyUsed on second redemption, got %v", err)
	}
}

func TestSignUpExpiredInvite(t *testing.T) {
	db := setupTestDB(t)
	svc := invitations.NewService(db, invitations.Options{})
	p := NewProvisioner(db, svc, config.SignupInviteOnly)

	admin, _ := p.SignUp(Request{Email: "alice@acme.com", Password: "password123", Name: "Alice"})
	area := models.Area{Name: "Sales", OrganizationID: admin.OrganizationID}
	db.Create(&area)
	inv, _ := svc.Issue(admin, admin.OrganizationID, "bob@acme.com", models.InvitationEmployee, &area.ID)

	db.Model(&models.Invitation{}).Where("id = ?", inv.ID).
		Update("expires_at", time.Now().Add(-time.Hour))

	_, err := p.SignUp(Request{Email: "bob@acme.com", Password: "password123", Name: "Bob", InviteToken: inv.Token})
	if !errors.Is(err, invitations.ErrExpired) {
		t.Errorf("Expected ErrExpired, got %v", err)
	}
}

func TestSignUpAreaAdminInviteWithDeferredArea(t *testing.T) {
	db := setupTestDB(t)
	svc := invitations.NewService(db, invitations.Options{})
	p := NewProvisioner(db, svc, config.SignupInviteOnly)

	admin, _ := p.SignUp(Request{Email: "alice@acme.com", Password: "password123", Name: "Alice"})
	inv, err := svc.Issue(admin, admin.OrganizationID, "dana@acme.com", models.InvitationAreaAdmin, nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	user, err := p.SignUp(Request{
		Email:       "dana@acme.com",
		Password:    "password123",
		Name:        "Dana",
		InviteToken: inv.Token,
		AreaName:    "Engineering",
	})
	if err != nil {
		t.Fatalf("Area admin signup failed: %v", err)
	}
	if user.Role != models.RoleAreaAdmin {
		t.Errorf("Expected area_admin, got %s", user.Role)
	}

	var area models.Area
	if err := db.Where("name = ? AND organization_id = ?", "Engineering", admin.OrganizationID).First(&area).Error; err != nil {
		t.Fatalf("Deferred area not created: %v", err)
	}

	var perm models.AreaPermission
	if err := db.Where("area_id = ? AND user_id = ?", area.ID, user.ID).First(&perm).Error; err != nil {
		t.Fatalf("Admin grant not created with the account: %v", err)
	}
	if perm.Level != models.PermissionAdmin {
		t.Errorf("Expected admin grant, got %s", perm.Level)
	}
}
