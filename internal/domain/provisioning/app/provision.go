// Package app provides application services (use cases) for site
// provisioning.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/statekit"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/domain"
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/ports"
	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
	"github.com/sitesmith-tech/sitesmith/internal/observability"
	"github.com/sitesmith-tech/sitesmith/internal/progress"
	"github.com/sitesmith-tech/sitesmith/internal/provider"
	"github.com/sitesmith-tech/sitesmith/internal/siteconfig"
)

// Progress percentages per orchestration phase. Provider deploy progress is
// remapped into the provisioning slice so the overall bar never regresses.
const (
	percentResolving   = 5
	percentClientReady = 8
	percentDeployFloor = 10
	percentDeployCeil  = 99
	percentVerifying   = 99
	percentDone        = 100
)

// OrchestratorConfig bounds a provisioning run.
type OrchestratorConfig struct {
	// Environment is the deploy target passed to the hosting provider.
	Environment string
	// BaseDomain is the zone under which tenant subdomains live.
	BaseDomain string
	// EdgeTarget is the CNAME content tenant records point at.
	EdgeTarget string

	// Deploy polling bounds.
	PollInterval    time.Duration
	PollMaxAttempts int

	// RunTimeout caps the whole background run.
	RunTimeout time.Duration

	// Resilience bounds retries around provider calls. Providers perform
	// single requests; the orchestrator owns the retry policy.
	Resilience provider.ResilienceConfig
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollMaxAttempts <= 0 {
		c.PollMaxAttempts = 120
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 30 * time.Minute
	}
	if c.Resilience.RetryAttempts <= 0 {
		c.Resilience = provider.DefaultResilienceConfig()
	}
	return c
}

// StartRequest triggers a provisioning run.
type StartRequest struct {
	// RunID identifies the run. Callers supply it so they can subscribe to
	// progress before triggering; when empty one is generated.
	RunID string
	// ClientID re-provisions an existing client when set. Otherwise a new
	// client record is created from the intent.
	ClientID string
	Intent   *siteconfig.SiteIntent
}

// StartResult identifies the accepted run.
type StartResult struct {
	RunID    string
	ClientID string
}

// ProvisionSiteUseCase orchestrates provisioning runs: it resolves the site
// configuration, creates or reuses the client, drives the hosting deploy to
// completion and binds DNS, publishing progress along the way.
type ProvisionSiteUseCase struct {
	clients     ports.ClientRepository
	deployments ports.DeploymentRepository
	resolver    ports.ConfigResolver
	hosting     ports.HostingProvider
	dns         ports.DNSProvider
	bus         progress.Publisher
	clock       ports.Clock
	logger      *slog.Logger
	config      OrchestratorConfig

	retrySite   retry.Retry[*ports.Site]
	retryString retry.Retry[string]
	retryVoid   retry.Retry[struct{}]
}

// NewProvisionSiteUseCase creates a new ProvisionSiteUseCase.
func NewProvisionSiteUseCase(
	clients ports.ClientRepository,
	deployments ports.DeploymentRepository,
	resolver ports.ConfigResolver,
	hosting ports.HostingProvider,
	dns ports.DNSProvider,
	bus progress.Publisher,
	clock ports.Clock,
	logger *slog.Logger,
	config OrchestratorConfig,
) *ProvisionSiteUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.withDefaults()
	return &ProvisionSiteUseCase{
		clients:     clients,
		deployments: deployments,
		resolver:    resolver,
		hosting:     hosting,
		dns:         dns,
		bus:         bus,
		clock:       clock,
		logger:      logger,
		config:      config,
		retrySite:   provider.NewCallRetrier[*ports.Site](config.Resilience),
		retryString: provider.NewCallRetrier[string](config.Resilience),
		retryVoid:   provider.NewCallRetrier[struct{}](config.Resilience),
	}
}

// Start validates the request, persists the pending run and launches the
// orchestration in the background. It returns as soon as the run is accepted.
func (uc *ProvisionSiteUseCase) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	const op = "provision.Start"

	client, isNew, err := uc.resolveClient(ctx, op, req)
	if err != nil {
		return nil, err
	}

	active, err := uc.hasActiveRun(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperrors.Wrap(domain.ErrRunInProgress, apperrors.KindConflict, op,
			"client already has a provisioning run in progress")
	}

	if req.RunID != "" {
		if _, err := uc.deployments.Load(ctx, req.RunID); err == nil {
			return nil, apperrors.Conflict(op, "run id is already in use")
		}
	}

	now := uc.clock.Now()
	dep := domain.NewDeploymentRecord(client.ID, uc.config.Environment, now)
	if req.RunID != "" {
		dep.RunID = req.RunID
	}

	if isNew {
		if err := uc.clients.Save(ctx, client); err != nil {
			return nil, apperrors.StoreWrap(err, op, "failed to save client")
		}
	}
	if err := uc.deployments.Save(ctx, dep); err != nil {
		return nil, apperrors.StoreWrap(err, op, "failed to save deployment")
	}

	uc.logger.Info("provisioning run accepted",
		"run_id", dep.RunID,
		"client_id", client.ID,
		"new_client", isNew,
	)

	go uc.run(client, dep, isNew)

	return &StartResult{RunID: dep.RunID, ClientID: client.ID}, nil
}

func (uc *ProvisionSiteUseCase) resolveClient(ctx context.Context, op string, req StartRequest) (*domain.ClientRecord, bool, error) {
	if req.ClientID != "" {
		client, err := uc.clients.Load(ctx, req.ClientID)
		if err != nil {
			return nil, false, apperrors.Wrap(err, apperrors.KindNotFound, op, "client not found")
		}
		if req.Intent != nil {
			client.Intent = req.Intent
		}
		return client, false, nil
	}

	if req.Intent == nil || strings.TrimSpace(req.Intent.CompanyName) == "" {
		return nil, false, apperrors.Validation(op, "company_name is required for a new client")
	}
	return domain.NewClientRecord(req.Intent, uc.clock.Now()), true, nil
}

func (uc *ProvisionSiteUseCase) hasActiveRun(ctx context.Context, clientID string) (bool, error) {
	const op = "provision.Start"

	deployments, err := uc.deployments.ListByClient(ctx, clientID)
	if err != nil {
		return false, apperrors.StoreWrap(err, op, "failed to list deployments")
	}
	for _, d := range deployments {
		if !d.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

// run executes the orchestration in the background. The run owns its own
// context: cancelling the trigger request must not abort provisioning.
func (uc *ProvisionSiteUseCase) run(client *domain.ClientRecord, dep *domain.DeploymentRecord, isNew bool) {
	ctx, cancel := context.WithTimeout(context.Background(), uc.config.RunTimeout)
	defer cancel()
	defer uc.bus.Close(dep.RunID)

	metrics := observability.Global()
	metrics.IncrementActiveRuns()
	started := uc.clock.Now()
	defer metrics.DecrementActiveRuns()

	ctx, span := observability.StartSpan(ctx, "provision.run", observability.WithAttributes(map[string]any{
		observability.AttrRunID:       dep.RunID,
		observability.AttrClientID:    client.ID,
		observability.AttrEnvironment: dep.Environment,
	}))
	defer span.End()

	logger := uc.logger.With("run_id", dep.RunID, "client_id", client.ID)

	if err := uc.execute(ctx, logger, client, dep, isNew); err != nil {
		span.RecordError(err)
		metrics.RecordRun(false, uc.clock.Now().Sub(started))
		uc.fail(ctx, logger, client, dep, err)
		return
	}

	metrics.RecordRun(true, uc.clock.Now().Sub(started))
	logger.Info("provisioning run succeeded", "site_url", client.SiteURL)
}

func (uc *ProvisionSiteUseCase) execute(ctx context.Context, logger *slog.Logger, client *domain.ClientRecord, dep *domain.DeploymentRecord, isNew bool) error {
	// Resolve configuration.
	if err := uc.step(ctx, client, dep, domain.StateResolvingConfig, domain.EventResolveConfig, percentResolving, "resolving site configuration"); err != nil {
		return err
	}
	cfg := uc.resolver.Resolve(client.Intent)
	client.ResolvedConfig = &cfg
	client.TemplateID = cfg.TemplateID
	dep.AppendLog("configuration resolved: " + cfg.Summary)
	logger.Info("configuration resolved", "template_id", cfg.TemplateID, "summary", cfg.Summary)

	span := observability.SpanFromContext(ctx)
	span.SetAttribute(observability.AttrTemplateID, cfg.TemplateID)

	// Create the provider-side site, only for new clients.
	if isNew || client.SiteID == "" {
		if err := uc.step(ctx, client, dep, domain.StateCreatingClient, domain.EventCreateClient, percentClientReady, "creating site"); err != nil {
			return err
		}
		site, err := uc.retrySite.Do(ctx, func(ctx context.Context) (*ports.Site, error) {
			return uc.hosting.CreateSite(ctx, ports.CreateSiteRequest{
				Name:       client.CompanyName,
				Slug:       client.DomainSlug,
				TemplateID: cfg.TemplateID,
			})
		})
		if err != nil {
			return err
		}
		client.SiteID = site.ID
		client.SiteURL = site.URL
		client.AdminURL = site.AdminURL
		dep.AppendLog("site created: " + site.ID)
	}
	span.SetAttribute(observability.AttrSiteID, client.SiteID)

	// Push environment and deploy.
	if err := uc.step(ctx, client, dep, domain.StateProvisioning, domain.EventStartDeploy, percentDeployFloor, "deploying site"); err != nil {
		return err
	}
	if _, err := uc.retryVoid.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, uc.hosting.SetEnvironment(ctx, client.SiteID, cfg.EnvironmentVariables)
	}); err != nil {
		return err
	}
	deployID, err := uc.retryString.Do(ctx, func(ctx context.Context) (string, error) {
		return uc.hosting.Deploy(ctx, client.SiteID, dep.Environment)
	})
	if err != nil {
		return err
	}
	dep.AppendLog("deploy started: " + deployID)
	span.SetAttribute(observability.AttrDeployID, deployID)

	snap, err := uc.awaitDeploy(ctx, client, dep, deployID)
	if err != nil {
		return err
	}
	if snap.Status == ports.DeployFailed {
		msg := snap.Error
		if msg == "" {
			msg = "deploy failed without a reason"
		}
		return apperrors.Provider("provision.awaitDeploy", msg)
	}

	// Verify: bind the subdomain and DNS.
	if err := uc.step(ctx, client, dep, domain.StateVerifying, domain.EventVerify, percentVerifying, "verifying deployment"); err != nil {
		return err
	}
	if err := uc.bindDomain(ctx, client, dep); err != nil {
		return err
	}

	// Terminal success: both records are written before the final event.
	now := uc.clock.Now()
	if err := dep.Transition(domain.StateSuccess, string(domain.EventComplete), "", now); err != nil {
		return apperrors.InternalWrap(err, "provision.execute", "success transition rejected")
	}
	client.Touch(domain.ClientStatusFor(domain.StateSuccess), now)
	if err := uc.persist(ctx, client, dep); err != nil {
		return err
	}
	uc.publish(client, dep, percentDone, "site is live", "")
	return nil
}

// step advances the run one state, persists both records and publishes a
// progress event.
func (uc *ProvisionSiteUseCase) step(ctx context.Context, client *domain.ClientRecord, dep *domain.DeploymentRecord, target domain.RunState, event statekit.EventType, percent int, message string) error {
	now := uc.clock.Now()
	if err := dep.Transition(target, string(event), "", now); err != nil {
		return apperrors.InternalWrap(err, "provision.step", "transition rejected")
	}
	client.Touch(domain.ClientStatusFor(target), now)
	if err := uc.persist(ctx, client, dep); err != nil {
		return err
	}
	observability.SpanFromContext(ctx).AddEvent("state_changed", map[string]any{
		observability.AttrRunState: string(target),
	})
	uc.publish(client, dep, percent, message, "")
	return nil
}

// awaitDeploy polls the provider until the deploy reaches a terminal state,
// republishing remapped progress on every observation.
func (uc *ProvisionSiteUseCase) awaitDeploy(ctx context.Context, client *domain.ClientRecord, dep *domain.DeploymentRecord, deployID string) (*ports.DeploySnapshot, error) {
	poller := provider.NewPoller[*ports.DeploySnapshot](uc.config.PollInterval, uc.config.PollMaxAttempts)

	snap, err := poller.Do(ctx, func(ctx context.Context) (*ports.DeploySnapshot, error) {
		snap, err := uc.hosting.PollDeployment(ctx, client.SiteID, deployID)
		if err != nil {
			return nil, err
		}
		for _, line := range snap.Logs {
			dep.AppendLog(line)
		}
		if !snap.Status.Terminal() {
			uc.publish(client, dep, remapDeployPercent(snap.Progress), "deploy in progress", "")
			return nil, provider.ErrStillRunning
		}
		return snap, nil
	})
	if err != nil {
		return nil, provider.MapPollExhaustion("provision.awaitDeploy", "deploy "+deployID, err)
	}
	return snap, nil
}

// bindDomain enables the managed subdomain, points DNS at the edge and waits
// for propagation. DNS steps are skipped when no provider is configured.
func (uc *ProvisionSiteUseCase) bindDomain(ctx context.Context, client *domain.ClientRecord, dep *domain.DeploymentRecord) error {
	siteURL, err := uc.retryString.Do(ctx, func(ctx context.Context) (string, error) {
		return uc.hosting.EnableManagedSubdomain(ctx, client.SiteID, client.DomainSlug)
	})
	if err != nil {
		return err
	}
	client.SiteURL = siteURL
	dep.AppendLog("managed subdomain enabled: " + siteURL)

	if uc.dns == nil || uc.config.BaseDomain == "" {
		return nil
	}

	hostname := fmt.Sprintf("%s.%s", client.DomainSlug, uc.config.BaseDomain)
	observability.SpanFromContext(ctx).SetAttribute(observability.AttrDNSHostname, hostname)
	record := ports.DNSRecord{
		Type:    "CNAME",
		Name:    hostname,
		Content: uc.config.EdgeTarget,
		TTL:     300,
		Proxied: true,
	}
	if _, err := uc.retryVoid.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, uc.dns.UpsertRecord(ctx, record)
	}); err != nil {
		return err
	}
	if err := uc.dns.VerifyPropagated(ctx, record); err != nil {
		return err
	}
	if _, err := uc.retryVoid.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, uc.dns.PurgeCache(ctx, []string{hostname})
	}); err != nil {
		return err
	}
	dep.AppendLog("dns bound: " + hostname)
	return nil
}

// fail drives the run to its failed terminal state. The terminal progress
// event is published exactly once, even when the in-memory record sits in a
// state the machine would not normally fail out of, and even when the store
// refuses the write. A run must never end without a terminal event.
func (uc *ProvisionSiteUseCase) fail(ctx context.Context, logger *slog.Logger, client *domain.ClientRecord, dep *domain.DeploymentRecord, cause error) {
	logger.Error("provisioning run failed", "error", cause, "state", dep.Status)

	now := uc.clock.Now()
	if err := dep.Fail(cause.Error(), now); err != nil {
		logger.Error("failure transition rejected, forcing terminal state", "error", err)
		dep.ForceFail(cause.Error(), now)
	}
	client.Touch(domain.ClientFailed, now)
	if err := uc.persist(ctx, client, dep); err != nil {
		logger.Error("failed to persist failed run", "error", err)
	}
	uc.publish(client, dep, failurePercent(dep), "provisioning failed", cause.Error())
}

// persist writes the client and deployment together so their states never
// drift by more than one step.
func (uc *ProvisionSiteUseCase) persist(ctx context.Context, client *domain.ClientRecord, dep *domain.DeploymentRecord) error {
	const op = "provision.persist"

	if err := uc.clients.Save(ctx, client); err != nil {
		return apperrors.StoreWrap(err, op, "failed to save client")
	}
	if err := uc.deployments.Save(ctx, dep); err != nil {
		return apperrors.StoreWrap(err, op, "failed to save deployment")
	}
	return nil
}

func (uc *ProvisionSiteUseCase) publish(client *domain.ClientRecord, dep *domain.DeploymentRecord, percent int, message, errMsg string) {
	uc.bus.Publish(dep.RunID, progress.Event{
		RunID:    dep.RunID,
		ClientID: client.ID,
		State:    string(dep.Status),
		Percent:  percent,
		Message:  message,
		Error:    errMsg,
		Terminal: dep.Status.IsTerminal(),
		At:       uc.clock.Now(),
	})
}

// failurePercent reports the progress the run had reached when it failed,
// taken from the state it failed out of.
func failurePercent(dep *domain.DeploymentRecord) int {
	from := domain.StatePending
	if n := len(dep.History); n > 0 {
		from = dep.History[n-1].From
	}
	switch from {
	case domain.StatePending:
		return 0
	case domain.StateResolvingConfig:
		return percentResolving
	case domain.StateCreatingClient:
		return percentClientReady
	case domain.StateProvisioning:
		return percentDeployFloor
	default:
		return percentVerifying
	}
}

// remapDeployPercent maps the provider's 0-100 deploy progress linearly into
// the orchestrator's provisioning slice.
func remapDeployPercent(providerPct int) int {
	if providerPct < 0 {
		providerPct = 0
	}
	if providerPct > 100 {
		providerPct = 100
	}
	span := percentDeployCeil - percentDeployFloor
	return percentDeployFloor + providerPct*span/100
}
