// Package permissions holds the delegation relation (who administers or
// views which area) and the evaluator that answers "can this principal
// perform this action on this resource". All authorization decisions in
// the application go through this package; nothing else reads the
// area_permissions table directly.
package permissions

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/models"
)

var (
	ErrDuplicateGrant = errors.New("user already has a permission for this area")
	ErrForbidden      = errors.New("forbidden")
	ErrAreaNotFound   = errors.New("area not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrTenantMismatch = errors.New("user belongs to a different organization")
)

// Store records which users administer or view which areas.
type Store struct {
	db *gorm.DB
}

// NewStore creates a permission store on the given database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// levelFor is the one place the delegation relation is read: a single
// indexed lookup on (area_id, user_id). It must stay a plain query — in
// particular it never consults the Evaluator, which would re-enter this
// same relation and recurse.
func levelFor(db *gorm.DB, areaID, userID uint) (models.PermissionLevel, bool, error) {
	var perm models.AreaPermission
	err := db.Where("area_id = ? AND user_id = ?", areaID, userID).First(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("permission lookup failed: %w", err)
	}
	return perm.Level, true, nil
}

// LevelFor returns the user's permission level for the area, or
// found=false when no grant exists.
func (s *Store) LevelFor(areaID, userID uint) (models.PermissionLevel, bool, error) {
	return levelFor(s.db, areaID, userID)
}

// AdminAreaIDs returns every area the user holds at admin level. Used to
// scope what an area_admin may list and edit.
func (s *Store) AdminAreaIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.AreaPermission{}).
		Where("user_id = ? AND level = ?", userID, models.PermissionAdmin).
		Pluck("area_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("admin area lookup failed: %w", err)
	}
	return ids, nil
}

// Grant records a permission for the user on the area. Fails with
// ErrDuplicateGrant when a row for the pair already exists (update it
// instead), with ErrForbidden when grantedBy may not administer the
// area, and with ErrTenantMismatch when the target user belongs to a
// different organization than the area. The tenant check applies to
// every caller, super_admins included: a grant crossing organizations
// would let AdminAreaIDs surface a foreign area to the target.
func (s *Store) Grant(areaID, userID uint, level models.PermissionLevel, grantedBy *models.User) error {
	var area models.Area
	if err := s.db.First(&area, areaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAreaNotFound
		}
		return fmt.Errorf("area lookup failed: %w", err)
	}

	var target models.User
	if err := s.db.First(&target, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("user lookup failed: %w", err)
	}
	if target.OrganizationID != area.OrganizationID {
		return ErrTenantMismatch
	}

	ev := NewEvaluator(s.db)
	allowed, err := ev.Can(grantedBy, ActionEdit, Resource{
		OrganizationID: area.OrganizationID,
		AreaID:         &area.ID,
	})
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}

	if _, exists, err := levelFor(s.db, areaID, userID); err != nil {
		return err
	} else if exists {
		return ErrDuplicateGrant
	}

	perm := models.AreaPermission{
		AreaID:      areaID,
		UserID:      userID,
		Level:       level,
		GrantedByID: grantedBy.ID,
	}
	if err := s.db.Create(&perm).Error; err != nil {
		return fmt.Errorf("grant failed: %w", err)
	}
	return nil
}

// Update changes the level of an existing grant.
func (s *Store) Update(areaID, userID uint, level models.PermissionLevel) error {
	result := s.db.Model(&models.AreaPermission{}).
		Where("area_id = ? AND user_id = ?", areaID, userID).
		Update("level", level)
	if result.Error != nil {
		return fmt.Errorf("permission update failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Revoke removes the user's permission for the area. Idempotent: no
// error when the grant is already absent.
func (s *Store) Revoke(areaID, userID uint) error {
	err := s.db.Where("area_id = ? AND user_id = ?", areaID, userID).
		Delete(&models.AreaPermission{}).Error
	if err != nil {
		return fmt.Errorf("revoke failed: %w", err)
	}
	return nil
}
