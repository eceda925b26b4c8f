// Package ports defines the interfaces between the provisioning application
// layer and its adapters.
package ports

import (
	"context"

	"github.com/sitesmith-tech/sitesmith/internal/siteconfig"
)

// CreateSiteRequest describes the site to create at the hosting provider.
type CreateSiteRequest struct {
	Name       string
	Slug       string
	TemplateID string
}

// Site is the provider-side representation of a hosted site.
type Site struct {
	ID       string
	URL      string
	AdminURL string
}

// DeployStatus is the provider-reported state of a deployment.
type DeployStatus string

const (
	DeployPending DeployStatus = "pending"
	DeployRunning DeployStatus = "running"
	DeploySuccess DeployStatus = "success"
	DeployFailed  DeployStatus = "failed"
)

// Terminal reports whether the provider deploy has finished.
func (s DeployStatus) Terminal() bool {
	return s == DeploySuccess || s == DeployFailed
}

// DeploySnapshot is one poll observation of a provider deployment.
type DeploySnapshot struct {
	DeployID string
	Status   DeployStatus
	// Progress is the provider's own 0-100 percentage.
	Progress int
	Logs     []string
	Error    string
}

// HostingProvider provisions sites and runs deployments at the hosting
// platform.
type HostingProvider interface {
	// CreateSite creates a new site from a template.
	CreateSite(ctx context.Context, req CreateSiteRequest) (*Site, error)

	// SetEnvironment replaces the site's environment variables.
	SetEnvironment(ctx context.Context, siteID string, env map[string]string) error

	// Deploy starts a deployment and returns its provider-side ID.
	Deploy(ctx context.Context, siteID, environment string) (string, error)

	// PollDeployment fetches the current state of a running deployment.
	PollDeployment(ctx context.Context, siteID, deployID string) (*DeploySnapshot, error)

	// EnableManagedSubdomain binds the managed subdomain for the site and
	// returns the public URL.
	EnableManagedSubdomain(ctx context.Context, siteID, slug string) (string, error)
}

// DNSRecord describes one record to upsert at the DNS provider.
type DNSRecord struct {
	Type    string
	Name    string
	Content string
	TTL     int
	Proxied bool
}

// DNSProvider manages DNS records and cache state for tenant sites.
type DNSProvider interface {
	// UpsertRecord creates the record or updates it in place when a record
	// with the same type and name exists.
	UpsertRecord(ctx context.Context, record DNSRecord) error

	// VerifyPropagated blocks until the record resolves to the expected
	// content or the polling budget is exhausted.
	VerifyPropagated(ctx context.Context, record DNSRecord) error

	// PurgeCache invalidates cached entries for the given hostnames.
	PurgeCache(ctx context.Context, hostnames []string) error
}

// ConfigResolver resolves a site intent into a concrete configuration.
// The production implementation is the pure siteconfig.Resolve.
type ConfigResolver interface {
	Resolve(intent *siteconfig.SiteIntent) siteconfig.Config
}

// ConfigResolverFunc adapts a function to the ConfigResolver interface.
type ConfigResolverFunc func(intent *siteconfig.SiteIntent) siteconfig.Config

func (f ConfigResolverFunc) Resolve(intent *siteconfig.SiteIntent) siteconfig.Config {
	return f(intent)
}
