package workflow

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/loopwork/flowstudio/pkg/persistence"
	"github.com/loopwork/flowstudio/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()

	return NewRepository(file.NewPersistence(t.TempDir()), validator.New(validator.WithRequiredStructEnabled()))
}

func TestRepository_CreateAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	created, err := repo.Create(ctx, &models.Workflow{
		Name:        "Purchase approval",
		Description: "Approvals for purchase requests",
		Owner:       "designer@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.Zero(t, created.CurrentVersion)
	assert.NotNil(t, created.Definition)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestRepository_CreateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	_, err := repo.Create(ctx, &models.Workflow{Name: "ab"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestRepository_UpdatePreservesStatusAndVersion(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	created, err := repo.Create(ctx, &models.Workflow{
		Name:        "Purchase approval",
		Description: "Approvals for purchase requests",
	})
	require.NoError(t, err)

	// Simulate a publish having happened out of band.
	created.Status = models.WorkflowStatusPublished
	created.CurrentVersion = 2
	require.NoError(t, repo.persistence.SaveWorkflow(ctx, created))

	updated, err := repo.Update(ctx, created.ID, &models.Workflow{
		Name:        "Purchase approval v2",
		Description: "Updated description",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, models.WorkflowStatusPublished, updated.Status)
	assert.Equal(t, 2, updated.CurrentVersion)
	assert.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())
}

func TestRepository_UpdateMissingWorkflow(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	_, err := repo.Update(ctx, "missing", &models.Workflow{
		Name:        "Purchase approval",
		Description: "desc",
	})
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRepository_FetchFiltered(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	for _, spec := range []struct {
		name  string
		owner string
	}{
		{"Purchase approval", "ana@example.com"},
		{"Expense review", "ana@example.com"},
		{"Onboarding", "bram@example.com"},
	} {
		_, err := repo.Create(ctx, &models.Workflow{
			Name:        spec.name,
			Description: "desc",
			Owner:       spec.owner,
		})
		require.NoError(t, err)
	}

	all, err := repo.FetchFiltered(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byOwner, err := repo.FetchFiltered(ctx, "ana@example.com", "")
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)

	published, err := repo.FetchFiltered(ctx, "", models.WorkflowStatusPublished)
	require.NoError(t, err)
	assert.Empty(t, published)
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	created, err := repo.Create(ctx, &models.Workflow{
		Name:        "Purchase approval",
		Description: "desc",
	})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.FetchByID(ctx, created.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = repo.Delete(ctx, created.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}
