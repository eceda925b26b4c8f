// Package hosting implements the hosting provider adapter against the
// platform's REST API.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/ports"
	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
	"github.com/sitesmith-tech/sitesmith/internal/observability"
)

// Config configures the hosting API client.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Client talks to the hosting platform's REST API with bearer-token auth.
// Every call is a single request: transport failures and 5xx responses come
// back as retryable errors, 4xx rejections as terminal ones. Retry policy
// lives with the orchestrator, not here.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ ports.HostingProvider = (*Client)(nil)

// NewClient creates a hosting API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		http:    &http.Client{Timeout: timeout},
	}
}

type siteResponse struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	AdminURL string `json:"admin_url"`
}

type deployResponse struct {
	ID       string   `json:"id"`
	State    string   `json:"state"`
	Progress int      `json:"progress"`
	Logs     []string `json:"logs"`
	Error    string   `json:"error"`
}

// CreateSite creates a new site from a template.
func (c *Client) CreateSite(ctx context.Context, req ports.CreateSiteRequest) (*ports.Site, error) {
	const op = "hosting.CreateSite"

	body := map[string]string{
		"name":        req.Name,
		"slug":        req.Slug,
		"template_id": req.TemplateID,
	}
	var resp siteResponse
	if err := c.doJSON(ctx, op, http.MethodPost, "/v1/sites", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, apperrors.Provider(op, "provider returned a site without an id")
	}
	return &ports.Site{ID: resp.ID, URL: resp.URL, AdminURL: resp.AdminURL}, nil
}

// SetEnvironment replaces the site's environment variables.
func (c *Client) SetEnvironment(ctx context.Context, siteID string, env map[string]string) error {
	const op = "hosting.SetEnvironment"

	body := map[string]any{"variables": env}
	path := fmt.Sprintf("/v1/sites/%s/env", siteID)
	return c.doJSON(ctx, op, http.MethodPut, path, body, nil)
}

// Deploy starts a deployment and returns its provider-side ID.
func (c *Client) Deploy(ctx context.Context, siteID, environment string) (string, error) {
	const op = "hosting.Deploy"

	body := map[string]string{"environment": environment}
	path := fmt.Sprintf("/v1/sites/%s/deploys", siteID)
	var resp deployResponse
	if err := c.doJSON(ctx, op, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", apperrors.Provider(op, "provider returned a deploy without an id")
	}
	return resp.ID, nil
}

// PollDeployment fetches the current state of a running deployment. One
// call is one observation; the orchestrator drives the polling loop.
func (c *Client) PollDeployment(ctx context.Context, siteID, deployID string) (*ports.DeploySnapshot, error) {
	const op = "hosting.PollDeployment"

	path := fmt.Sprintf("/v1/sites/%s/deploys/%s", siteID, deployID)
	var resp deployResponse
	if err := c.doJSON(ctx, op, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	status, err := parseDeployStatus(op, resp.State)
	if err != nil {
		return nil, err
	}
	progress := resp.Progress
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return &ports.DeploySnapshot{
		DeployID: deployID,
		Status:   status,
		Progress: progress,
		Logs:     resp.Logs,
		Error:    resp.Error,
	}, nil
}

// EnableManagedSubdomain binds the managed subdomain and returns the public
// URL.
func (c *Client) EnableManagedSubdomain(ctx context.Context, siteID, slug string) (string, error) {
	const op = "hosting.EnableManagedSubdomain"

	body := map[string]string{"slug": slug}
	path := fmt.Sprintf("/v1/sites/%s/domains", siteID)
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", apperrors.Provider(op, "provider returned an empty subdomain url")
	}
	return resp.URL, nil
}

func parseDeployStatus(op, state string) (ports.DeployStatus, error) {
	switch state {
	case "pending":
		return ports.DeployPending, nil
	case "running", "building", "deploying":
		return ports.DeployRunning, nil
	case "success", "ready":
		return ports.DeploySuccess, nil
	case "failed", "error":
		return ports.DeployFailed, nil
	default:
		return "", apperrors.Provider(op, "provider reported unknown deploy state "+state)
	}
}

// doJSON performs one authenticated request, decoding a JSON response into
// out when non-nil. Errors are classified for retryability.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := observability.StartSpan(ctx, op,
		observability.WithSpanKind(observability.SpanKindClient),
		observability.WithAttributes(map[string]any{observability.AttrProviderName: "hosting"}),
	)
	defer span.End()

	err := c.request(ctx, op, method, path, body, out)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (c *Client) request(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.InternalWrap(err, op, "failed to marshal request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.InternalWrap(err, op, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.Global().RecordProviderCall("hosting", false)
		return apperrors.ProviderWrap(err, op, "request failed", true)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.Global().RecordProviderCall("hosting", resp.StatusCode < 300)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.FromHTTPStatus(op, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.ProviderWrap(err, op, "failed to decode response", false)
	}
	return nil
}
