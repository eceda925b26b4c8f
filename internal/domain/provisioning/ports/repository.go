package ports

import (
	"context"
	"time"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/domain"
)

// ClientRepository persists tenant client records.
type ClientRepository interface {
	// Save persists the client, overwriting any existing record.
	Save(ctx context.Context, client *domain.ClientRecord) error

	// Load retrieves a client by ID. Returns domain.ErrClientNotFound when
	// no record exists.
	Load(ctx context.Context, id string) (*domain.ClientRecord, error)

	// Exists reports whether a client record exists.
	Exists(ctx context.Context, id string) (bool, error)

	// List returns all client records, newest first.
	List(ctx context.Context) ([]*domain.ClientRecord, error)
}

// DeploymentRepository persists deployment records.
type DeploymentRepository interface {
	// Save persists the deployment, overwriting any existing record.
	Save(ctx context.Context, dep *domain.DeploymentRecord) error

	// Load retrieves a deployment by run ID. Returns
	// domain.ErrDeploymentNotFound when no record exists.
	Load(ctx context.Context, runID string) (*domain.DeploymentRecord, error)

	// ListByClient returns all deployments for a client ordered by start
	// time, newest first.
	ListByClient(ctx context.Context, clientID string) ([]*domain.DeploymentRecord, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
