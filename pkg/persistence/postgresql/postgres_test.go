package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/loopwork/flowstudio/pkg/persistence"
	"github.com/loopwork/flowstudio/pkg/persistence/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"lookup_tables", "workflow_versions", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("flowstudio_test"),
			postgres.WithUsername("flowstudio"),
			postgres.WithPassword("flowstudio"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx, databaseURL
}

func sampleDefinition() *models.Definition {
	return &models.Definition{
		StartStepID: "request",
		Steps: []*models.Step{
			{ID: "request", Name: "Request", Type: models.StepTypeForm, IsStart: true},
			{ID: "review", Name: "Review", Type: models.StepTypeApproval, IsTerminal: true},
		},
		Transitions: []*models.Transition{
			{FromStepID: "request", ToStepID: "review", OnEvent: models.EventSubmitForm},
		},
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflows", "workflow_versions", "lookup_tables", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestPersistence_HealthCheck(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	err := store.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestPersistence_SaveAndRetrieveWorkflow(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflow := &models.Workflow{
		ID:          "wf-1",
		Name:        "Purchase approval",
		Description: "Approvals for purchase requests",
		Status:      models.WorkflowStatusDraft,
		Owner:       "designer@example.com",
		Definition:  sampleDefinition(),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	require.NoError(t, store.SaveWorkflow(ctx, workflow))

	loaded, err := store.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Purchase approval", loaded.Name)
	require.NotNil(t, loaded.Definition)
	assert.Len(t, loaded.Definition.Steps, 2)
	assert.Equal(t, "request", loaded.Definition.StartStepID)

	// Upsert keeps a single row
	workflow.Name = "Purchase approval v2"
	require.NoError(t, store.SaveWorkflow(ctx, workflow))

	all, err := store.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Purchase approval v2", all[0].Name)
}

func TestPersistence_WorkflowNotFound(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	_, err := store.WorkflowByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_DeleteWorkflowIsSoft(t *testing.T) {
	store, ctx, databaseURL := setupTestDB(t)

	workflow := &models.Workflow{
		ID:          "wf-1",
		Name:        "Purchase approval",
		Description: "desc",
		Status:      models.WorkflowStatusDraft,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.SaveWorkflow(ctx, workflow))

	require.NoError(t, store.DeleteWorkflow(ctx, "wf-1"))

	_, err := store.WorkflowByID(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = store.DeleteWorkflow(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	// Row survives with a deleted_at stamp
	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, db.Close())
	}()

	var deleted bool

	err = db.QueryRowContext(ctx,
		"SELECT deleted_at IS NOT NULL FROM workflows WHERE id = 'wf-1'").Scan(&deleted)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestPersistence_VersionsAreImmutable(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	version := &models.WorkflowVersion{
		WorkflowID:  "wf-1",
		Version:     1,
		Definition:  sampleDefinition(),
		PublishedBy: "lead@example.com",
		PublishedAt: time.Now().UTC(),
		Notes:       "first cut",
	}

	require.NoError(t, store.SaveVersion(ctx, version))

	err := store.SaveVersion(ctx, version)
	require.Error(t, err)
	assert.True(t, persistence.IsVersionAlreadyExists(err))

	loaded, err := store.VersionByNumber(ctx, "wf-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "first cut", loaded.Notes)
	require.NotNil(t, loaded.Definition)
	assert.Len(t, loaded.Definition.Transitions, 1)

	_, err = store.VersionByNumber(ctx, "wf-1", 2)
	assert.True(t, persistence.IsVersionNotFound(err))
}

func TestPersistence_VersionsOrderedByNumber(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	for _, number := range []int{2, 1, 3} {
		require.NoError(t, store.SaveVersion(ctx, &models.WorkflowVersion{
			WorkflowID:  "wf-1",
			Version:     number,
			Definition:  sampleDefinition(),
			PublishedBy: "lead@example.com",
			PublishedAt: time.Now().UTC(),
		}))
	}

	versions, err := store.Versions(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 3, versions[2].Version)
}

func TestPersistence_LookupTables(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	table := &models.LookupTable{
		ID:        "dept-approvers",
		Name:      "Department approvers",
		KeyColumn: "department",
		Rows: []models.LookupRow{
			{Key: "finance", ApproverID: "u-1", ApproverName: "Ana"},
			{Key: "it", ApproverID: "u-2", ApproverName: "Bram"},
		},
		UpdatedAt: time.Now().UTC(),
	}

	require.NoError(t, store.SaveLookupTable(ctx, table))

	loaded, err := store.LookupTableByID(ctx, "dept-approvers")
	require.NoError(t, err)
	require.Len(t, loaded.Rows, 2)
	require.NotNil(t, loaded.RowForKey("it"))
	assert.Equal(t, "Bram", loaded.RowForKey("it").ApproverName)

	_, err = store.LookupTableByID(ctx, "missing")
	assert.True(t, persistence.IsLookupTableNotFound(err))

	tables, err := store.LookupTables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}
