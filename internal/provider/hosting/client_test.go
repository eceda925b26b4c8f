package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/ports"
	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
	"github.com/sitesmith-tech/sitesmith/internal/observability"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL:  server.URL,
		APIToken: "test-token",
	})
}

func TestClient_CreateSite(t *testing.T) {
	var gotAuth, gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Acme Fireworks", body["name"])
		assert.Equal(t, "acme-fireworks", body["slug"])
		assert.Equal(t, "shop-b2b", body["template_id"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":        "site-1",
			"url":       "https://acme-fireworks.sites.test",
			"admin_url": "https://admin.sites.test/site-1",
		})
	}))

	site, err := client.CreateSite(context.Background(), ports.CreateSiteRequest{
		Name:       "Acme Fireworks",
		Slug:       "acme-fireworks",
		TemplateID: "shop-b2b",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "/v1/sites", gotPath)
	assert.Equal(t, "site-1", site.ID)
	assert.Equal(t, "https://acme-fireworks.sites.test", site.URL)
}

func TestClient_CreateSite_RejectionIsTerminal(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"slug taken"}`, http.StatusConflict)
	}))

	_, err := client.CreateSite(context.Background(), ports.CreateSiteRequest{Slug: "taken"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindProvider, apperrors.GetKind(err))
	assert.False(t, apperrors.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

// The client makes exactly one request per call. A 5xx surfaces as a
// retryable error for the caller to act on; the adapter never loops.
func TestClient_CreateSite_ServerErrorIsSingleRetryableCall(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))

	_, err := client.CreateSite(context.Background(), ports.CreateSiteRequest{Name: "Acme"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load(), "one call means one request")
}

func TestClient_CreateSite_EmitsClientSpan(t *testing.T) {
	var buf bytes.Buffer
	traceLogger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	original := observability.GetTracer()
	observability.SetTracer(observability.NewLoggingTracer(traceLogger, "sitesmith"))
	defer observability.SetTracer(original)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "site-1"})
	}))

	_, err := client.CreateSite(context.Background(), ports.CreateSiteRequest{Name: "Acme"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "span=hosting.CreateSite")
	assert.Contains(t, out, "kind=client")
	assert.Contains(t, out, observability.AttrProviderName+"=hosting")
}

func TestClient_SetEnvironment(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/sites/site-1/env", r.URL.Path)

		var body struct {
			Variables map[string]string `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "shop-b2b", body.Variables["TEMPLATE_ID"])

		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.SetEnvironment(context.Background(), "site-1", map[string]string{
		"TEMPLATE_ID": "shop-b2b",
	})
	require.NoError(t, err)
}

func TestClient_Deploy(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sites/site-1/deploys", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "deploy-7"})
	}))

	deployID, err := client.Deploy(context.Background(), "site-1", "production")
	require.NoError(t, err)
	assert.Equal(t, "deploy-7", deployID)
}

func TestClient_PollDeployment(t *testing.T) {
	tests := []struct {
		state    string
		progress int
		want     ports.DeployStatus
		wantPct  int
	}{
		{"pending", 0, ports.DeployPending, 0},
		{"running", 40, ports.DeployRunning, 40},
		{"building", 150, ports.DeployRunning, 100},
		{"success", 100, ports.DeploySuccess, 100},
		{"failed", -5, ports.DeployFailed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/sites/site-1/deploys/deploy-7", r.URL.Path)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"id":       "deploy-7",
					"state":    tt.state,
					"progress": tt.progress,
					"logs":     []string{"step one"},
				})
			}))

			snap, err := client.PollDeployment(context.Background(), "site-1", "deploy-7")
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Status)
			assert.Equal(t, tt.wantPct, snap.Progress)
			assert.Equal(t, []string{"step one"}, snap.Logs)
		})
	}
}

func TestClient_PollDeployment_UnknownState(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "deploy-7", "state": "exploded"})
	}))

	_, err := client.PollDeployment(context.Background(), "site-1", "deploy-7")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindProvider, apperrors.GetKind(err))
}

func TestClient_EnableManagedSubdomain(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sites/site-1/domains", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://acme.sites.test"})
	}))

	siteURL, err := client.EnableManagedSubdomain(context.Background(), "site-1", "acme")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.sites.test", siteURL)
}

func TestDeployStatus_Terminal(t *testing.T) {
	assert.False(t, ports.DeployPending.Terminal())
	assert.False(t, ports.DeployRunning.Terminal())
	assert.True(t, ports.DeploySuccess.Terminal())
	assert.True(t, ports.DeployFailed.Terminal())
}
