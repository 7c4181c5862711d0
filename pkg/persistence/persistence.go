// Package persistence provides the storage abstraction for workflows,
// published versions and lookup tables.
package persistence

import (
	"context"

	"github.com/loopwork/flowstudio/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error

	// Versions are immutable: SaveVersion refuses to overwrite an existing
	// (workflow_id, version) pair.
	Versions(ctx context.Context, workflowID string) ([]*models.WorkflowVersion, error)
	VersionByNumber(ctx context.Context, workflowID string, version int) (*models.WorkflowVersion, error)
	SaveVersion(ctx context.Context, version *models.WorkflowVersion) error

	LookupTables(ctx context.Context) ([]*models.LookupTable, error)
	LookupTableByID(ctx context.Context, id string) (*models.LookupTable, error)
	SaveLookupTable(ctx context.Context, table *models.LookupTable) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
