// Package adapters provides infrastructure implementations for the
// provisioning domain.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/domain"
	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/ports"
)

const (
	clientsDir     = "clients"
	deploymentsDir = "deployments"
	recordSuffix   = ".json"
)

// FileClientRepository implements ClientRepository on top of a data
// directory, one JSON file per client.
type FileClientRepository struct {
	mu      sync.RWMutex
	dataDir string
}

// NewFileClientRepository creates a file-based client repository rooted at
// dataDir.
func NewFileClientRepository(dataDir string) *FileClientRepository {
	return &FileClientRepository{dataDir: dataDir}
}

var _ ports.ClientRepository = (*FileClientRepository)(nil)

func (r *FileClientRepository) clientPath(id string) string {
	return filepath.Join(r.dataDir, clientsDir, filepath.Base(id)+recordSuffix)
}

// Save persists the client atomically via a temp file rename.
func (r *FileClientRepository) Save(ctx context.Context, client *domain.ClientRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(r.dataDir, clientsDir), 0755); err != nil {
		return fmt.Errorf("failed to create clients directory: %w", err)
	}

	data, err := json.MarshalIndent(client, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}

	return writeAtomic(r.clientPath(client.ID), data)
}

// Load retrieves a client by ID.
func (r *FileClientRepository) Load(ctx context.Context, id string) (*domain.ClientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.clientPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to read client file: %w", err)
	}

	var client domain.ClientRecord
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return &client, nil
}

// Exists reports whether a client record exists.
func (r *FileClientRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, err := os.Stat(r.clientPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat client file: %w", err)
}

// List returns all clients, newest first by creation time.
func (r *FileClientRepository) List(ctx context.Context) ([]*domain.ClientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dir := filepath.Join(r.dataDir, clientsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read clients directory: %w", err)
	}

	var clients []*domain.ClientRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var client domain.ClientRecord
		if err := json.Unmarshal(data, &client); err != nil {
			continue
		}
		clients = append(clients, &client)
	}

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].CreatedAt.After(clients[j].CreatedAt)
	})
	return clients, nil
}

// FileDeploymentRepository implements DeploymentRepository on top of a data
// directory, one JSON file per run.
type FileDeploymentRepository struct {
	mu      sync.RWMutex
	dataDir string
}

// NewFileDeploymentRepository creates a file-based deployment repository
// rooted at dataDir.
func NewFileDeploymentRepository(dataDir string) *FileDeploymentRepository {
	return &FileDeploymentRepository{dataDir: dataDir}
}

var _ ports.DeploymentRepository = (*FileDeploymentRepository)(nil)

func (r *FileDeploymentRepository) deploymentPath(runID string) string {
	return filepath.Join(r.dataDir, deploymentsDir, filepath.Base(runID)+recordSuffix)
}

// Save persists the deployment atomically via a temp file rename.
func (r *FileDeploymentRepository) Save(ctx context.Context, dep *domain.DeploymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(r.dataDir, deploymentsDir), 0755); err != nil {
		return fmt.Errorf("failed to create deployments directory: %w", err)
	}

	data, err := json.MarshalIndent(dep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal deployment: %w", err)
	}

	return writeAtomic(r.deploymentPath(dep.RunID), data)
}

// Load retrieves a deployment by run ID.
func (r *FileDeploymentRepository) Load(ctx context.Context, runID string) (*domain.DeploymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.deploymentPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrDeploymentNotFound
		}
		return nil, fmt.Errorf("failed to read deployment file: %w", err)
	}

	var dep domain.DeploymentRecord
	if err := json.Unmarshal(data, &dep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deployment: %w", err)
	}
	return &dep, nil
}

// ListByClient returns the client's deployments ordered by start time,
// newest first.
func (r *FileDeploymentRepository) ListByClient(ctx context.Context, clientID string) ([]*domain.DeploymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dir := filepath.Join(r.dataDir, deploymentsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read deployments directory: %w", err)
	}

	var deployments []*domain.DeploymentRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var dep domain.DeploymentRecord
		if err := json.Unmarshal(data, &dep); err != nil {
			continue
		}
		if dep.ClientID != clientID {
			continue
		}
		deployments = append(deployments, &dep)
	}

	sort.Slice(deployments, func(i, j int) bool {
		return deployments[i].StartedAt.After(deployments[j].StartedAt)
	})
	return deployments, nil
}

// writeAtomic writes data to path via a temp file rename.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
