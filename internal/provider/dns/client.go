// Package dns implements the DNS provider adapter against a zone-scoped
// Cloudflare-style API.
package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/ports"
	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
	"github.com/sitesmith-tech/sitesmith/internal/observability"
	"github.com/sitesmith-tech/sitesmith/internal/provider"
)

// Config configures the DNS API client.
type Config struct {
	BaseURL  string
	APIToken string
	ZoneID   string
	Timeout  time.Duration

	// Propagation polling bounds.
	PollInterval    time.Duration
	PollMaxAttempts int
}

// Client manages DNS records in a single zone. Records are upserted by
// type and name: an existing record is updated in place rather than
// duplicated. Mutating calls are single requests with retryability
// encoded on the returned error; only the propagation check loops,
// since waiting for convergence is inherently this adapter's job.
type Client struct {
	baseURL string
	token   string
	zoneID  string
	http    *http.Client

	poller retry.Retry[struct{}]
}

var _ ports.DNSProvider = (*Client)(nil)

// NewClient creates a zone-scoped DNS API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	attempts := cfg.PollMaxAttempts
	if attempts <= 0 {
		attempts = 24
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		zoneID:  cfg.ZoneID,
		http:    &http.Client{Timeout: timeout},
		poller:  provider.NewPoller[struct{}](interval, attempts),
	}
}

type recordResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type listResponse struct {
	Records []recordResponse `json:"result"`
}

// UpsertRecord creates the record, or updates it in place when a record
// with the same type and name already exists in the zone.
func (c *Client) UpsertRecord(ctx context.Context, record ports.DNSRecord) error {
	const op = "dns.UpsertRecord"

	existing, err := c.findRecord(ctx, op, record.Type, record.Name)
	if err != nil {
		return err
	}

	body := map[string]any{
		"type":    record.Type,
		"name":    record.Name,
		"content": record.Content,
		"ttl":     record.TTL,
		"proxied": record.Proxied,
	}

	path := fmt.Sprintf("/zones/%s/dns_records", c.zoneID)
	method := http.MethodPost
	if existing != nil {
		path = fmt.Sprintf("/zones/%s/dns_records/%s", c.zoneID, existing.ID)
		method = http.MethodPut
	}

	return c.doJSON(ctx, op, method, path, body, nil)
}

// VerifyPropagated polls the zone until the record resolves to the expected
// content, or fails with a timeout once the polling budget is exhausted.
func (c *Client) VerifyPropagated(ctx context.Context, record ports.DNSRecord) error {
	const op = "dns.VerifyPropagated"

	_, err := c.poller.Do(ctx, func(ctx context.Context) (struct{}, error) {
		current, err := c.findRecord(ctx, op, record.Type, record.Name)
		if err != nil {
			return struct{}{}, err
		}
		if current == nil || current.Content != record.Content {
			return struct{}{}, provider.ErrStillRunning
		}
		return struct{}{}, nil
	})
	return provider.MapPollExhaustion(op, "dns record "+record.Name, err)
}

// PurgeCache invalidates cached entries for the given hostnames.
func (c *Client) PurgeCache(ctx context.Context, hostnames []string) error {
	const op = "dns.PurgeCache"

	if len(hostnames) == 0 {
		return nil
	}
	body := map[string]any{"hosts": hostnames}
	path := fmt.Sprintf("/zones/%s/purge_cache", c.zoneID)
	return c.doJSON(ctx, op, http.MethodPost, path, body, nil)
}

// findRecord looks up a record by type and name. A missing record is not
// an error; it returns nil.
func (c *Client) findRecord(ctx context.Context, op, recordType, name string) (*recordResponse, error) {
	path := fmt.Sprintf("/zones/%s/dns_records?type=%s&name=%s",
		c.zoneID, url.QueryEscape(recordType), url.QueryEscape(name))

	var resp listResponse
	if err := c.doJSON(ctx, op, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	for _, rec := range resp.Records {
		if rec.Type == recordType && rec.Name == name {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := observability.StartSpan(ctx, op,
		observability.WithSpanKind(observability.SpanKindClient),
		observability.WithAttributes(map[string]any{observability.AttrProviderName: "dns"}),
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
		observability.Global().RecordProviderCall("dns", false)
		return apperrors.ProviderWrap(err, op, "request failed", true)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.Global().RecordProviderCall("dns", resp.StatusCode < 300)

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
