package app

import (
	"context"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/domain"
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/ports"
	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
)

// ClientStatusView is the aggregate answer to a status query: the client
// record plus its most recent deployment, when one exists.
type ClientStatusView struct {
	Client        *domain.ClientRecord
	LatestRun     *domain.DeploymentRecord
	ActiveRun     bool
	TotalRuns     int
	SucceededRuns int
}

// StatusUseCase answers read-only queries about clients and their runs.
type StatusUseCase struct {
	clients     ports.ClientRepository
	deployments ports.DeploymentRepository
}

// NewStatusUseCase creates a new StatusUseCase.
func NewStatusUseCase(clients ports.ClientRepository, deployments ports.DeploymentRepository) *StatusUseCase {
	return &StatusUseCase{clients: clients, deployments: deployments}
}

// GetClientStatus returns the client together with its run summary.
func (uc *StatusUseCase) GetClientStatus(ctx context.Context, clientID string) (*ClientStatusView, error) {
	const op = "status.GetClientStatus"

	client, err := uc.clients.Load(ctx, clientID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNotFound, op, "client not found")
	}

	deployments, err := uc.deployments.ListByClient(ctx, clientID)
	if err != nil {
		return nil, apperrors.StoreWrap(err, op, "failed to list deployments")
	}

	view := &ClientStatusView{Client: client, TotalRuns: len(deployments)}
	if len(deployments) > 0 {
		view.LatestRun = deployments[0]
	}
	for _, d := range deployments {
		if !d.Status.IsTerminal() {
			view.ActiveRun = true
		}
		if d.Status == domain.StateSuccess {
			view.SucceededRuns++
		}
	}
	return view, nil
}

// ListDeployments returns the client's deployment history, newest first.
func (uc *StatusUseCase) ListDeployments(ctx context.Context, clientID string) ([]*domain.DeploymentRecord, error) {
	const op = "status.ListDeployments"

	if _, err := uc.clients.Load(ctx, clientID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNotFound, op, "client not found")
	}
	deployments, err := uc.deployments.ListByClient(ctx, clientID)
	if err != nil {
		return nil, apperrors.StoreWrap(err, op, "failed to list deployments")
	}
	return deployments, nil
}

// GetRun returns one deployment record by run ID.
func (uc *StatusUseCase) GetRun(ctx context.Context, runID string) (*domain.DeploymentRecord, error) {
	const op = "status.GetRun"

	dep, err := uc.deployments.Load(ctx, runID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNotFound, op, "run not found")
	}
	return dep, nil
}

// ListClients returns every known client, newest first.
func (uc *StatusUseCase) ListClients(ctx context.Context) ([]*domain.ClientRecord, error) {
	const op = "status.ListClients"

	clients, err := uc.clients.List(ctx)
	if err != nil {
		return nil, apperrors.StoreWrap(err, op, "failed to list clients")
	}
	return clients, nil
}
