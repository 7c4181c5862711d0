package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/loopwork/flowstudio/pkg/diff"
	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/loopwork/flowstudio/pkg/persistence"
	"github.com/loopwork/flowstudio/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareService_Compare(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	service := NewCompareService(store, nil)

	older := &models.Definition{
		StartStepID: "draft",
		Steps: []*models.Step{
			{ID: "draft", Name: "Draft", Type: models.StepTypeForm, IsStart: true},
		},
	}
	newer := &models.Definition{
		StartStepID: "draft",
		Steps: []*models.Step{
			{ID: "draft", Name: "Final", Type: models.StepTypeForm, IsStart: true},
			{ID: "review", Name: "Review", Type: models.StepTypeApproval},
		},
	}

	require.NoError(t, store.SaveVersion(ctx, &models.WorkflowVersion{
		WorkflowID: "wf-1", Version: 1, Definition: older,
		PublishedBy: "lead@example.com", PublishedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.SaveVersion(ctx, &models.WorkflowVersion{
		WorkflowID: "wf-1", Version: 2, Definition: newer,
		PublishedBy: "lead@example.com", PublishedAt: time.Now().UTC(), Notes: "rename",
	}))

	comparison, err := service.Compare(ctx, "wf-1", 1, 2)
	require.NoError(t, err)

	assert.Equal(t, "wf-1", comparison.WorkflowID)
	assert.Equal(t, 1, comparison.From.Version)
	assert.Equal(t, 2, comparison.To.Version)
	assert.Equal(t, "rename", comparison.To.Notes)

	require.Len(t, comparison.Changes, 2)
	assert.Equal(t, diff.ChangeAdded, comparison.Changes[0].Type)
	assert.Equal(t, diff.ChangeModified, comparison.Changes[1].Type)
	assert.Equal(t, `Renamed from "Draft" to "Final"`, comparison.Changes[1].Description)

	assert.Equal(t, diff.Summary{Added: 1, Modified: 1}, comparison.Summary)
}

func TestCompareService_MissingVersion(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	service := NewCompareService(store, nil)

	require.NoError(t, store.SaveVersion(ctx, &models.WorkflowVersion{
		WorkflowID: "wf-1", Version: 1, Definition: &models.Definition{},
		PublishedBy: "lead@example.com", PublishedAt: time.Now().UTC(),
	}))

	_, err := service.Compare(ctx, "wf-1", 1, 9)
	require.Error(t, err)
	assert.True(t, persistence.IsVersionNotFound(err))
}
