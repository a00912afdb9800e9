// Package tenant resolves email addresses to organizations. The domain
// part of the email is the tenant key: each domain belongs to exactly
// one organization, and the first signup from an unseen domain creates
// the organization on the fly.
package tenant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/models"
)

var ErrInvalidEmail = errors.New("email has no domain part")

// Directory maps email domains to organizations.
type Directory struct {
	db *gorm.DB
}

// NewDirectory creates a tenant directory on the given database handle.
// Pass a transaction handle to make resolution part of a larger atomic
// operation.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// DomainOf extracts the lowercased domain part of an email address.
func DomainOf(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(email[at+1:]), nil
}

// LookupDomain returns the organization the email's domain maps to, or
// found=false when the domain is unseen. It never creates anything;
// invitation redemption uses this to enforce domain binding.
func (d *Directory) LookupDomain(email string) (*models.Organization, bool, error) {
	domain, err := DomainOf(email)
	if err != nil {
		return nil, false, err
	}
	return d.lookup(domain)
}

func (d *Directory) lookup(domain string) (*models.Organization, bool, error) {
	var row models.EmailDomain
	err := d.db.Preload("Organization").Where("domain = ?", domain).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("domain lookup failed: %w", err)
	}
	return &row.Organization, true, nil
}

// ResolveDomain resolves the email's domain to its organization,
// creating a new organization (plus the domain binding) when the domain
// is unseen. orgName overrides the humanized default name for a newly
// created organization. The returned bool is true when this call created
// the organization.
//
// Matching is case-insensitive and exact: no subdomain wildcarding.
// Two concurrent signups from the same unseen domain converge on one
// organization: the unique index on email_domains.domain makes the
// second creator fail, and the failure is retried as a plain lookup.
func (d *Directory) ResolveDomain(email, orgName string) (*models.Organization, bool, error) {
	domain, err := DomainOf(email)
	if err != nil {
		return nil, false, err
	}

	org, found, err := d.lookup(domain)
	if err != nil {
		return nil, false, err
	}
	if found {
		return org, false, nil
	}

	created, err := d.createForDomain(domain, orgName)
	if err == nil {
		log.Info().Str("domain", domain).Uint("organization_id", created.ID).
			Msg("Created organization for first-seen domain")
		return created, true, nil
	}

	// Likely a race loser on the unique domain index. Re-read the
	// winner's row so the caller joins the existing organization.
	org, found, lookupErr := d.lookup(domain)
	if lookupErr == nil && found {
		return org, false, nil
	}
	return nil, false, fmt.Errorf("organization creation failed: %w", err)
}

func (d *Directory) createForDomain(domain, orgName string) (*models.Organization, error) {
	name := orgName
	if name == "" {
		name = humanizeDomain(domain)
	}

	var org models.Organization
	err := d.db.Transaction(func(tx *gorm.DB) error {
		org = models.Organization{
			Name: strings.TrimSpace(name),
			Slug: uniqueSlug(tx, slugify(domain)),
		}
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		binding := models.EmailDomain{
			OrganizationID: org.ID,
			Domain:         domain,
		}
		return tx.Create(&binding).Error
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// humanizeDomain derives a display name from a domain's first label:
// "acme.com" -> "Acme Inc.", "big-corp.io" -> "Big Corp Inc."
func humanizeDomain(domain string) string {
	label := firstLabel(domain)
	words := strings.FieldsFunc(label, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return "Unknown Inc."
	}
	return strings.Join(words, " ") + " Inc."
}

// slugify derives the base slug from a domain's first label.
func slugify(domain string) string {
	s := strings.ToLower(firstLabel(domain))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" {
		return "org"
	}
	return s
}

func firstLabel(domain string) string {
	if i := strings.Index(domain, "."); i > 0 {
		return domain[:i]
	}
	return domain
}

// uniqueSlug appends -2, -3, ... until the slug is free.
func uniqueSlug(tx *gorm.DB, base string) string {
	slug := base
	for i := 2; ; i++ {
		var count int64
		tx.Model(&models.Organization{}).Where("slug = ?", slug).Count(&count)
		if count == 0 {
			return slug
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
