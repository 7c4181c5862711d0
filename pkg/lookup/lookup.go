// Package lookup resolves the approver of an approval step from its
// configured strategy and the current form values.
package lookup

import (
	"context"
	"fmt"

	"github.com/loopwork/flowstudio/pkg/models"
)

// initiatorManagerPath is the dot-path under which form values carry the
// manager of whoever started the run.
const initiatorManagerPath = "initiator.manager"

// TableStore is the slice of persistence the resolver needs.
type TableStore interface {
	LookupTableByID(ctx context.Context, id string) (*models.LookupTable, error)
}

// Resolver resolves approvers for approval steps. It satisfies
// preview.ApproverResolver.
type Resolver struct {
	store TableStore
}

func NewResolver(store TableStore) *Resolver {
	return &Resolver{store: store}
}

// ResolveApprover returns the display identity of the approver the step
// would assign given the current value bag.
func (r *Resolver) ResolveApprover(ctx context.Context, step *models.Step, values map[string]any) (string, error) {
	if step.Type != models.StepTypeApproval {
		return "", fmt.Errorf("step %q is not an approval step", step.ID)
	}

	switch step.ApproverStrategy {
	case models.ApproverStrategySpecific:
		if step.ApproverID == "" {
			return "", fmt.Errorf("approval step %q has no approver configured", step.ID)
		}

		return step.ApproverID, nil

	case models.ApproverStrategyLookup:
		return r.resolveFromTable(ctx, step, values)

	case models.ApproverStrategyInitiatorManager:
		manager := models.ResolvePath(values, initiatorManagerPath)
		if manager == nil {
			return "", fmt.Errorf("no %s value available for step %q", initiatorManagerPath, step.ID)
		}

		return fmt.Sprintf("%v", manager), nil

	default:
		return "", fmt.Errorf("approval step %q has unknown approver strategy %q", step.ID, step.ApproverStrategy)
	}
}

func (r *Resolver) resolveFromTable(ctx context.Context, step *models.Step, values map[string]any) (string, error) {
	if step.LookupTableID == "" || step.LookupKeyField == "" {
		return "", fmt.Errorf("approval step %q has an incomplete lookup configuration", step.ID)
	}

	key := models.ResolvePath(values, step.LookupKeyField)
	if key == nil {
		return "", fmt.Errorf("lookup key field %q has no value", step.LookupKeyField)
	}

	table, err := r.store.LookupTableByID(ctx, step.LookupTableID)
	if err != nil {
		return "", fmt.Errorf("failed to load lookup table %q: %w", step.LookupTableID, err)
	}

	row := table.RowForKey(fmt.Sprintf("%v", key))
	if row == nil {
		return "", fmt.Errorf("no row in table %q for key %v", step.LookupTableID, key)
	}

	if row.ApproverName != "" {
		return row.ApproverName, nil
	}

	return row.ApproverID, nil
}
