package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitesmith-tech/sitesmith/internal/siteconfig"
)

// ClientRecord is the persistent record for one tenant's site. One client
// owns many DeploymentRecords; exactly one provisioning run may be active
// per client at a time.
type ClientRecord struct {
	ID           string       `json:"id"`
	CompanyName  string       `json:"company_name"`
	ContactEmail string       `json:"contact_email,omitempty"`
	DomainSlug   string       `json:"domain_slug"`
	Status       ClientStatus `json:"status"`

	// Provider-side identifiers, filled in as provisioning progresses.
	SiteID     string `json:"site_id,omitempty"`
	SiteURL    string `json:"site_url,omitempty"`
	AdminURL   string `json:"admin_url,omitempty"`
	TemplateID string `json:"template_id,omitempty"`

	Intent         *siteconfig.SiteIntent `json:"intent,omitempty"`
	ResolvedConfig *siteconfig.Config     `json:"resolved_config,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewClientRecord creates a pending client for the given intent.
func NewClientRecord(intent *siteconfig.SiteIntent, now time.Time) *ClientRecord {
	name := ""
	email := ""
	if intent != nil {
		name = strings.TrimSpace(intent.CompanyName)
		email = strings.TrimSpace(intent.ContactEmail)
	}
	return &ClientRecord{
		ID:           uuid.NewString(),
		CompanyName:  name,
		ContactEmail: email,
		DomainSlug:   DeriveDomainSlug(name),
		Status:       ClientPending,
		Intent:       intent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Touch updates the record's status and timestamp together.
func (c *ClientRecord) Touch(status ClientStatus, now time.Time) {
	c.Status = status
	c.UpdatedAt = now
}

// DeriveDomainSlug turns a company name into a DNS-safe label: lowercase,
// runs of non-alphanumerics collapse to a single hyphen, leading and
// trailing hyphens trimmed. An empty result falls back to "site".
func DeriveDomainSlug(name string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "site"
	}
	return slug
}
