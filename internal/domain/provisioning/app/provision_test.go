package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/adapters"
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/domain"
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/ports"
	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
	"github.com/sitesmith-tech/sitesmith/internal/observability"
	"github.com/sitesmith-tech/sitesmith/internal/progress"
	"github.com/sitesmith-tech/sitesmith/internal/provider"
	"github.com/sitesmith-tech/sitesmith/internal/siteconfig"
)

// fakeHosting scripts the hosting provider. Poll snapshots are consumed in
// order; the last one repeats.
type fakeHosting struct {
	mu             sync.Mutex
	site           ports.Site
	deployID       string
	snapshots      []ports.DeploySnapshot
	pollIndex      int
	createCalls    int
	createFailures int
	envPushed      map[string]string
	createErr      error
	deployErr      error
	subdomain      string
}

func (f *fakeHosting) CreateSite(ctx context.Context, req ports.CreateSiteRequest) (*ports.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createFailures > 0 {
		f.createFailures--
		return nil, apperrors.ProviderWrap(errors.New("upstream unavailable"), "hosting.CreateSite", "request failed", true)
	}
	site := f.site
	return &site, nil
}

func (f *fakeHosting) SetEnvironment(ctx context.Context, siteID string, env map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envPushed = env
	return nil
}

func (f *fakeHosting) Deploy(ctx context.Context, siteID, environment string) (string, error) {
	if f.deployErr != nil {
		return "", f.deployErr
	}
	return f.deployID, nil
}

func (f *fakeHosting) PollDeployment(ctx context.Context, siteID, deployID string) (*ports.DeploySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snapshots) == 0 {
		return &ports.DeploySnapshot{DeployID: deployID, Status: ports.DeploySuccess, Progress: 100}, nil
	}
	snap := f.snapshots[f.pollIndex]
	if f.pollIndex < len(f.snapshots)-1 {
		f.pollIndex++
	}
	return &snap, nil
}

func (f *fakeHosting) EnableManagedSubdomain(ctx context.Context, siteID, slug string) (string, error) {
	return f.subdomain, nil
}

type fakeDNS struct {
	mu       sync.Mutex
	upserted []ports.DNSRecord
	verified []ports.DNSRecord
	purged   [][]string
}

func (f *fakeDNS) UpsertRecord(ctx context.Context, record ports.DNSRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, record)
	return nil
}

func (f *fakeDNS) VerifyPropagated(ctx context.Context, record ports.DNSRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, record)
	return nil
}

func (f *fakeDNS) PurgeCache(ctx context.Context, hostnames []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, hostnames)
	return nil
}

// capturingBus records published events and signals when the run closes.
type capturingBus struct {
	mu     sync.Mutex
	events []progress.Event
	closed chan string
}

func newCapturingBus() *capturingBus {
	return &capturingBus{closed: make(chan string, 4)}
}

func (b *capturingBus) Publish(runID string, event progress.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *capturingBus) Close(runID string) {
	b.closed <- runID
}

func (b *capturingBus) snapshot() []progress.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]progress.Event, len(b.events))
	copy(out, b.events)
	return out
}

type fixture struct {
	uc      *ProvisionSiteUseCase
	clients ports.ClientRepository
	deps    ports.DeploymentRepository
	hosting *fakeHosting
	dns     *fakeDNS
	bus     *capturingBus
}

func newFixture(t *testing.T, hosting *fakeHosting, dns *fakeDNS) *fixture {
	t.Helper()
	dir := t.TempDir()
	clients := adapters.NewFileClientRepository(dir)
	deps := adapters.NewFileDeploymentRepository(dir)
	bus := newCapturingBus()

	uc := NewProvisionSiteUseCase(
		clients,
		deps,
		ports.ConfigResolverFunc(siteconfig.Resolve),
		hosting,
		dns,
		bus,
		adapters.SystemClock{},
		slog.New(slog.DiscardHandler),
		testOrchestratorConfig(),
	)
	return &fixture{uc: uc, clients: clients, deps: deps, hosting: hosting, dns: dns, bus: bus}
}

func testOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Environment:     "production",
		BaseDomain:      "sites.test",
		EdgeTarget:      "edge.sites.test",
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 10,
		RunTimeout:      5 * time.Second,
		Resilience: provider.ResilienceConfig{
			RetryAttempts:    3,
			RetryInitialWait: time.Millisecond,
			RetryMaxWait:     5 * time.Millisecond,
		},
	}
}

func defaultHosting() *fakeHosting {
	return &fakeHosting{
		site:     ports.Site{ID: "site-1", URL: "https://tmp.sites.test", AdminURL: "https://admin.sites.test"},
		deployID: "deploy-1",
		snapshots: []ports.DeploySnapshot{
			{DeployID: "deploy-1", Status: ports.DeployRunning, Progress: 20, Logs: []string{"building"}},
			{DeployID: "deploy-1", Status: ports.DeployRunning, Progress: 80},
			{DeployID: "deploy-1", Status: ports.DeploySuccess, Progress: 100, Logs: []string{"done"}},
		},
		subdomain: "https://acme-fireworks.sites.test",
	}
}

func intentFixture() *siteconfig.SiteIntent {
	return &siteconfig.SiteIntent{
		CompanyName: "Acme Fireworks",
		PrimaryType: siteconfig.PrimaryWebshop,
		ShopModel:   siteconfig.ShopB2B,
	}
}

func awaitRun(t *testing.T, f *fixture, runID string) {
	t.Helper()
	select {
	case closed := <-f.bus.closed:
		assert.Equal(t, runID, closed)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestProvision_HappyPathNewClient(t *testing.T) {
	f := newFixture(t, defaultHosting(), &fakeDNS{})
	ctx := context.Background()

	result, err := f.uc.Start(ctx, StartRequest{Intent: intentFixture()})
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)
	awaitRun(t, f, result.RunID)

	client, err := f.clients.Load(ctx, result.ClientID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClientActive, client.Status)
	assert.Equal(t, "site-1", client.SiteID)
	assert.Equal(t, "https://acme-fireworks.sites.test", client.SiteURL)
	assert.Equal(t, "shop-b2b", client.TemplateID)
	require.NotNil(t, client.ResolvedConfig)

	dep, err := f.deps.Load(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuccess, dep.Status)
	require.NotNil(t, dep.CompletedAt)

	var states []domain.RunState
	for _, h := range dep.History {
		states = append(states, h.To)
	}
	assert.Equal(t, []domain.RunState{
		domain.StateResolvingConfig,
		domain.StateCreatingClient,
		domain.StateProvisioning,
		domain.StateVerifying,
		domain.StateSuccess,
	}, states)

	// Resolved environment reached the provider.
	assert.Equal(t, "shop-b2b", f.hosting.envPushed[siteconfig.EnvTemplateID])
	assert.Equal(t, "true", f.hosting.envPushed[siteconfig.EnvCustomerGroups])

	// DNS bound to the derived slug under the base domain.
	require.Len(t, f.dns.upserted, 1)
	assert.Equal(t, "acme-fireworks.sites.test", f.dns.upserted[0].Name)
	assert.Equal(t, "edge.sites.test", f.dns.upserted[0].Content)
	require.Len(t, f.dns.purged, 1)
}

func TestProvision_ProgressEvents(t *testing.T) {
	f := newFixture(t, defaultHosting(), &fakeDNS{})

	result, err := f.uc.Start(context.Background(), StartRequest{Intent: intentFixture()})
	require.NoError(t, err)
	awaitRun(t, f, result.RunID)

	events := f.bus.snapshot()
	require.NotEmpty(t, events)

	terminals := 0
	last := -1
	for _, ev := range events {
		assert.Equal(t, result.RunID, ev.RunID)
		assert.GreaterOrEqual(t, ev.Percent, last, "progress must not regress")
		last = ev.Percent
		if ev.Terminal {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals, "exactly one terminal event")

	final := events[len(events)-1]
	assert.True(t, final.Terminal)
	assert.Equal(t, 100, final.Percent)
	assert.Equal(t, string(domain.StateSuccess), final.State)
	assert.Empty(t, final.Error)
}

func TestProvision_ReprovisionSkipsSiteCreation(t *testing.T) {
	hosting := defaultHosting()
	f := newFixture(t, hosting, &fakeDNS{})
	ctx := context.Background()

	existing := domain.NewClientRecord(intentFixture(), time.Now().UTC())
	existing.SiteID = "site-preexisting"
	existing.Status = domain.ClientActive
	require.NoError(t, f.clients.Save(ctx, existing))

	result, err := f.uc.Start(ctx, StartRequest{ClientID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, result.ClientID)
	awaitRun(t, f, result.RunID)

	assert.Equal(t, 0, hosting.createCalls, "existing site must be reused")

	dep, err := f.deps.Load(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuccess, dep.Status)
	for _, h := range dep.History {
		assert.NotEqual(t, domain.StateCreatingClient, h.To, "client creation must be skipped")
	}
}

func TestProvision_RejectsMissingIntent(t *testing.T) {
	f := newFixture(t, defaultHosting(), &fakeDNS{})

	_, err := f.uc.Start(context.Background(), StartRequest{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.GetKind(err))
}

func TestProvision_RejectsUnknownClient(t *testing.T) {
	f := newFixture(t, defaultHosting(), &fakeDNS{})

	_, err := f.uc.Start(context.Background(), StartRequest{ClientID: "nope"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.GetKind(err))
}

func TestProvision_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(t, defaultHosting(), &fakeDNS{})
	ctx := context.Background()

	client := domain.NewClientRecord(intentFixture(), time.Now().UTC())
	require.NoError(t, f.clients.Save(ctx, client))

	active := domain.NewDeploymentRecord(client.ID, "production", time.Now().UTC())
	require.NoError(t, f.deps.Save(ctx, active))

	_, err := f.uc.Start(ctx, StartRequest{ClientID: client.ID})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.GetKind(err))
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
}

func TestProvision_UsesCallerRunID(t *testing.T) {
	f := newFixture(t, defaultHosting(), &fakeDNS{})
	ctx := context.Background()

	result, err := f.uc.Start(ctx, StartRequest{RunID: "run-supplied", Intent: intentFixture()})
	require.NoError(t, err)
	assert.Equal(t, "run-supplied", result.RunID)
	awaitRun(t, f, result.RunID)

	dep, err := f.deps.Load(ctx, "run-supplied")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuccess, dep.Status)
}

func TestProvision_RejectsDuplicateRunID(t *testing.T) {
	f := newFixture(t, defaultHosting(), &fakeDNS{})
	ctx := context.Background()

	result, err := f.uc.Start(ctx, StartRequest{RunID: "run-dup", Intent: intentFixture()})
	require.NoError(t, err)
	awaitRun(t, f, result.RunID)

	_, err = f.uc.Start(ctx, StartRequest{RunID: "run-dup", Intent: intentFixture()})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.GetKind(err))
}

func TestProvision_DeployFailureFailsRun(t *testing.T) {
	hosting := defaultHosting()
	hosting.snapshots = []ports.DeploySnapshot{
		{DeployID: "deploy-1", Status: ports.DeployRunning, Progress: 30},
		{DeployID: "deploy-1", Status: ports.DeployFailed, Error: "build exploded"},
	}
	f := newFixture(t, hosting, &fakeDNS{})
	ctx := context.Background()

	result, err := f.uc.Start(ctx, StartRequest{Intent: intentFixture()})
	require.NoError(t, err)
	awaitRun(t, f, result.RunID)

	dep, err := f.deps.Load(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, dep.Status)
	assert.Contains(t, dep.ErrorMessage, "build exploded")

	client, err := f.clients.Load(ctx, result.ClientID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClientFailed, client.Status)

	events := f.bus.snapshot()
	final := events[len(events)-1]
	assert.True(t, final.Terminal)
	assert.Equal(t, string(domain.StateFailed), final.State)
	assert.NotEmpty(t, final.Error)
}

func TestProvision_PollBudgetExhaustionTimesOut(t *testing.T) {
	hosting := defaultHosting()
	hosting.snapshots = []ports.DeploySnapshot{
		{DeployID: "deploy-1", Status: ports.DeployRunning, Progress: 10},
	}
	f := newFixture(t, hosting, &fakeDNS{})
	ctx := context.Background()

	result, err := f.uc.Start(ctx, StartRequest{Intent: intentFixture()})
	require.NoError(t, err)
	awaitRun(t, f, result.RunID)

	dep, err := f.deps.Load(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, dep.Status)
	assert.Contains(t, dep.ErrorMessage, "polling budget")
}

func TestProvision_CreateSiteFailureFailsRun(t *testing.T) {
	hosting := defaultHosting()
	hosting.createErr = apperrors.Provider("hosting.CreateSite", "slug already taken")
	f := newFixture(t, hosting, &fakeDNS{})
	ctx := context.Background()

	result, err := f.uc.Start(ctx, StartRequest{Intent: intentFixture()})
	require.NoError(t, err)
	awaitRun(t, f, result.RunID)

	dep, err := f.deps.Load(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, dep.Status)
	assert.Contains(t, dep.ErrorMessage, "slug already taken")
}

func TestProvision_EmitsTraceSpans(t *testing.T) {
	var buf bytes.Buffer
	traceLogger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	original := observability.GetTracer()
	observability.SetTracer(observability.NewLoggingTracer(traceLogger, "sitesmith"))
	defer observability.SetTracer(original)

	f := newFixture(t, defaultHosting(), &fakeDNS{})

	result, err := f.uc.Start(context.Background(), StartRequest{Intent: intentFixture()})
	require.NoError(t, err)
	awaitRun(t, f, result.RunID)

	out := buf.String()
	assert.Contains(t, out, "span=provision.run")
	assert.Contains(t, out, observability.AttrRunID+"="+result.RunID)
	assert.Contains(t, out, observability.AttrClientID+"="+result.ClientID)
	assert.Contains(t, out, observability.AttrTemplateID+"=shop-b2b")
	assert.Contains(t, out, observability.AttrSiteID+"=site-1")
	assert.Contains(t, out, observability.AttrDeployID+"=deploy-1")
	assert.Contains(t, out, observability.AttrDNSHostname+"=acme-fireworks.sites.test")
	assert.Contains(t, out, "event=state_changed")
}

func TestProvision_RetriesTransientProviderErrors(t *testing.T) {
	hosting := defaultHosting()
	hosting.createFailures = 2
	f := newFixture(t, hosting, &fakeDNS{})
	ctx := context.Background()

	result, err := f.uc.Start(ctx, StartRequest{Intent: intentFixture()})
	require.NoError(t, err)
	awaitRun(t, f, result.RunID)

	// The orchestrator retried past the transient failures.
	assert.Equal(t, 3, hosting.createCalls)

	dep, err := f.deps.Load(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuccess, dep.Status)
}

// successRejectingDeployments refuses to persist a record once it has
// reached the success state, simulating a store outage at the worst moment.
type successRejectingDeployments struct {
	ports.DeploymentRepository
}

func (r successRejectingDeployments) Save(ctx context.Context, dep *domain.DeploymentRecord) error {
	if dep.Status == domain.StateSuccess {
		return errors.New("disk full")
	}
	return r.DeploymentRepository.Save(ctx, dep)
}

func TestProvision_StoreRejectionStillEndsRunTerminally(t *testing.T) {
	dir := t.TempDir()
	clients := adapters.NewFileClientRepository(dir)
	deps := adapters.NewFileDeploymentRepository(dir)
	bus := newCapturingBus()
	hosting := defaultHosting()

	uc := NewProvisionSiteUseCase(
		clients,
		successRejectingDeployments{deps},
		ports.ConfigResolverFunc(siteconfig.Resolve),
		hosting,
		&fakeDNS{},
		bus,
		adapters.SystemClock{},
		slog.New(slog.DiscardHandler),
		testOrchestratorConfig(),
	)
	f := &fixture{uc: uc, clients: clients, deps: deps, hosting: hosting, bus: bus}
	ctx := context.Background()

	result, err := uc.Start(ctx, StartRequest{Intent: intentFixture()})
	require.NoError(t, err)
	awaitRun(t, f, result.RunID)

	// Exactly one terminal event, and it reports the failure.
	events := bus.snapshot()
	require.NotEmpty(t, events)
	terminals := 0
	for _, ev := range events {
		if ev.Terminal {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals, "a run must end with exactly one terminal event")
	final := events[len(events)-1]
	assert.True(t, final.Terminal)
	assert.Equal(t, string(domain.StateFailed), final.State)
	assert.NotEmpty(t, final.Error)

	// The persisted record is terminal, not stuck mid-run.
	dep, err := deps.Load(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, dep.Status)
	require.NotNil(t, dep.CompletedAt)

	// The client is free to start another run.
	res2, err := uc.Start(ctx, StartRequest{ClientID: result.ClientID})
	require.NoError(t, err, "a finished run must not block the client")
	awaitRun(t, f, res2.RunID)
}

func TestRemapDeployPercent(t *testing.T) {
	assert.Equal(t, 10, remapDeployPercent(0))
	assert.Equal(t, 10, remapDeployPercent(-3))
	assert.Equal(t, 54, remapDeployPercent(50))
	assert.Equal(t, 99, remapDeployPercent(100))
	assert.Equal(t, 99, remapDeployPercent(400))
}
