// Package workflow provides the draft repository, the publishing service and
// version comparison on top of the persistence layer.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/loopwork/flowstudio/pkg/persistence"
)

// Repository manages draft workflows (the mutable working copies).
type Repository struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewRepository(persistence persistence.Persistence, validator *validator.Validate) *Repository {
	return &Repository{
		persistence: persistence,
		validator:   validator,
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.Workflows(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

// FetchFiltered returns workflows matching the optional owner and status
// filters. Empty filter values match everything.
func (r *Repository) FetchFiltered(ctx context.Context, owner string, status models.WorkflowStatus) ([]*models.Workflow, error) {
	workflows, err := r.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(workflows))

	for _, workflow := range workflows {
		if owner != "" && workflow.Owner != owner {
			continue
		}

		if status != "" && workflow.Status != status {
			continue
		}

		filtered = append(filtered, workflow)
	}

	return filtered, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.persistence.WorkflowByID(ctx, id)
}

func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := r.validator.Struct(workflow); err != nil {
		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	workflow.Status = models.WorkflowStatusDraft
	workflow.CurrentVersion = 0

	if workflow.Definition == nil {
		workflow.Definition = &models.Definition{}
	}

	err := r.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.validator.Struct(workflow); err != nil {
		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	// Identity, status and the publish counter survive edits.
	workflow.ID = id
	workflow.Status = existing.Status
	workflow.CurrentVersion = existing.CurrentVersion
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	err = r.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.persistence.WorkflowByID(ctx, id); err != nil {
		return err
	}

	return r.persistence.DeleteWorkflow(ctx, id)
}
