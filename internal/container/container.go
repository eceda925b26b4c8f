// Package container provides dependency injection for SiteSmith services.
package container

import (
	"log/slog"
	"sync"

	"github.com/sitesmith-tech/sitesmith/internal/config"
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/adapters"
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/app"
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/domain"
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/ports"
	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
	"github.com/sitesmith-tech/sitesmith/internal/httpserver"
	"github.com/sitesmith-tech/sitesmith/internal/httpserver/handlers"
	"github.com/sitesmith-tech/sitesmith/internal/progress"
	"github.com/sitesmith-tech/sitesmith/internal/provider"
	"github.com/sitesmith-tech/sitesmith/internal/provider/dns"
	"github.com/sitesmith-tech/sitesmith/internal/provider/hosting"
	"github.com/sitesmith-tech/sitesmith/internal/siteconfig"
)

// Container wires configuration, adapters and use cases together.
type Container struct {
	config *config.Config
	logger *slog.Logger
	mu     sync.Mutex

	bus         *progress.Bus
	clients     ports.ClientRepository
	deployments ports.DeploymentRepository
	hosting     ports.HostingProvider
	dns         ports.DNSProvider

	provisionUC *app.ProvisionSiteUseCase
	statusUC    *app.StatusUseCase
	machine     *domain.RunMachine

	server *httpserver.Server
}

// New creates a container for the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, apperrors.Config("container.New", "configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{config: cfg, logger: logger}, nil
}

// Initialize builds all components. It is safe to call once.
func (c *Container) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.config.Validate(); err != nil {
		return err
	}

	c.bus = progress.NewBus()
	c.clients = adapters.NewFileClientRepository(c.config.Storage.DataDir)
	c.deployments = adapters.NewFileDeploymentRepository(c.config.Storage.DataDir)

	c.hosting = hosting.NewClient(hosting.Config{
		BaseURL:  c.config.Hosting.BaseURL,
		APIToken: c.config.Hosting.APIToken,
		Timeout:  c.config.Hosting.Timeout,
	})

	if c.config.DNS.Enabled {
		c.dns = dns.NewClient(dns.Config{
			BaseURL:         c.config.DNS.BaseURL,
			APIToken:        c.config.DNS.APIToken,
			ZoneID:          c.config.DNS.ZoneID,
			Timeout:         c.config.Hosting.Timeout,
			PollInterval:    c.config.DNS.PollInterval,
			PollMaxAttempts: c.config.DNS.PollMaxAttempts,
		})
	}

	c.provisionUC = app.NewProvisionSiteUseCase(
		c.clients,
		c.deployments,
		ports.ConfigResolverFunc(siteconfig.Resolve),
		c.hosting,
		c.dns,
		c.bus,
		adapters.SystemClock{},
		c.logger,
		app.OrchestratorConfig{
			Environment:     c.config.Orchestrator.Environment,
			BaseDomain:      c.config.DNS.BaseDomain,
			EdgeTarget:      c.config.DNS.EdgeTarget,
			PollInterval:    c.config.Orchestrator.PollInterval,
			PollMaxAttempts: c.config.Orchestrator.PollMaxAttempts,
			RunTimeout:      c.config.Orchestrator.RunTimeout,
			Resilience: provider.ResilienceConfig{
				RetryAttempts:    c.config.Hosting.RetryAttempts,
				RetryInitialWait: c.config.Hosting.RetryInitialWait,
				RetryMaxWait:     c.config.Hosting.RetryMaxWait,
			},
		},
	)
	c.statusUC = app.NewStatusUseCase(c.clients, c.deployments)

	machine, err := domain.NewRunMachine()
	if err != nil {
		return apperrors.InternalWrap(err, "container.Initialize", "failed to build run state machine")
	}
	c.machine = machine

	c.server = httpserver.NewServer(httpserver.ServerDeps{
		Config: c.config,
		Bus:    c.bus,
		Handlers: &handlers.Context{
			Provision: c.provisionUC,
			Status:    c.statusUC,
			Machine:   machine,
		},
	})

	return nil
}

// Server returns the HTTP server.
func (c *Container) Server() *httpserver.Server {
	return c.server
}

// ProvisionUseCase returns the provisioning use case.
func (c *Container) ProvisionUseCase() *app.ProvisionSiteUseCase {
	return c.provisionUC
}

// StatusUseCase returns the status query use case.
func (c *Container) StatusUseCase() *app.StatusUseCase {
	return c.statusUC
}

// Bus returns the progress bus.
func (c *Container) Bus() *progress.Bus {
	return c.bus
}
