// Package dto provides data transfer objects for the provisioning API.
package dto

import (
	"time"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/domain"
	"github.com/sitesmith-tech/sitesmith/internal/siteconfig"
)

// ErrorResponse is an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ProvisionRequest triggers a provisioning run. The caller supplies the run
// ID so it can subscribe to the progress stream before triggering. An intent
// is always required; a client ID selects the re-provision path.
type ProvisionRequest struct {
	RunID    string                 `json:"run_id"`
	ClientID string                 `json:"client_id,omitempty"`
	Intent   *siteconfig.SiteIntent `json:"site_intent"`
}

// ProvisionAccepted is the 202 response for an accepted run.
type ProvisionAccepted struct {
	Accepted bool   `json:"accepted"`
	RunID    string `json:"run_id"`
	ClientID string `json:"client_id"`
}

// ClientDTO is the API representation of a client.
type ClientDTO struct {
	ID           string    `json:"id"`
	CompanyName  string    `json:"company_name"`
	ContactEmail string    `json:"contact_email,omitempty"`
	DomainSlug   string    `json:"domain_slug"`
	Status       string    `json:"status"`
	SiteID       string    `json:"site_id,omitempty"`
	SiteURL      string    `json:"site_url,omitempty"`
	AdminURL     string    `json:"admin_url,omitempty"`
	TemplateID   string    `json:"template_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ClientStatusDTO is the answer to a status query.
type ClientStatusDTO struct {
	Client        ClientDTO      `json:"client"`
	LatestRun     *DeploymentDTO `json:"latest_run,omitempty"`
	ActiveRun     bool           `json:"active_run"`
	TotalRuns     int            `json:"total_runs"`
	SucceededRuns int            `json:"succeeded_runs"`
}

// DeploymentDTO is the API representation of one provisioning run.
type DeploymentDTO struct {
	ID              string          `json:"id"`
	RunID           string          `json:"run_id"`
	ClientID        string          `json:"client_id"`
	Status          string          `json:"status"`
	Environment     string          `json:"environment"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	DurationSeconds int64           `json:"duration_seconds,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	Logs            []string        `json:"logs,omitempty"`
	History         []TransitionDTO `json:"history"`
}

// TransitionDTO is one state transition in a run's history.
type TransitionDTO struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Event  string    `json:"event"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// FromClient maps a client record to its DTO.
func FromClient(c *domain.ClientRecord) ClientDTO {
	return ClientDTO{
		ID:           c.ID,
		CompanyName:  c.CompanyName,
		ContactEmail: c.ContactEmail,
		DomainSlug:   c.DomainSlug,
		Status:       string(c.Status),
		SiteID:       c.SiteID,
		SiteURL:      c.SiteURL,
		AdminURL:     c.AdminURL,
		TemplateID:   c.TemplateID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// FromDeployment maps a deployment record to its DTO.
func FromDeployment(d *domain.DeploymentRecord) DeploymentDTO {
	history := make([]TransitionDTO, len(d.History))
	for i, h := range d.History {
		history[i] = TransitionDTO{
			From:   string(h.From),
			To:     string(h.To),
			Event:  h.Event,
			Reason: h.Reason,
			At:     h.At,
		}
	}
	return DeploymentDTO{
		ID:              d.ID,
		RunID:           d.RunID,
		ClientID:        d.ClientID,
		Status:          string(d.Status),
		Environment:     d.Environment,
		StartedAt:       d.StartedAt,
		CompletedAt:     d.CompletedAt,
		DurationSeconds: d.DurationSeconds,
		ErrorMessage:    d.ErrorMessage,
		Logs:            d.Logs,
		History:         history,
	}
}
