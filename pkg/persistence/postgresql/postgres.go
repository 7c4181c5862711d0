// Package postgresql provides PostgreSQL persistence for workflows,
// published versions and lookup tables.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/loopwork/flowstudio/pkg/persistence"
	"github.com/loopwork/flowstudio/pkg/persistence/sqlbase"
)

const uniqueViolation = "23505"

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Workflows returns every non-deleted workflow, newest first.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , status
		  , owner
		  , current_version
		  , definition
		  , metadata
		  , created_at
		  , updated_at
		  , deleted_at
		FROM workflows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// WorkflowByID returns a workflow by its ID.
func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , status
		  , owner
		  , current_version
		  , definition
		  , metadata
		  , created_at
		  , updated_at
		  , deleted_at
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	workflow, err := scanWorkflow(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// SaveWorkflow upserts the draft working copy.
func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	definitionJSON, err := json.Marshal(workflow.Definition)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal definition: %w", err))
	}

	metadataJSON, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal metadata: %w", err))
	}

	query := `
		INSERT INTO workflows (
			id, name, description, status, owner, current_version,
			definition, metadata, created_at, updated_at, deleted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			owner = EXCLUDED.owner,
			current_version = EXCLUDED.current_version,
			definition = EXCLUDED.definition,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = p.db.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Description, workflow.Status,
		workflow.Owner, workflow.CurrentVersion, definitionJSON, metadataJSON,
		workflow.CreatedAt, workflow.UpdatedAt, workflow.DeletedAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// DeleteWorkflow soft deletes a workflow by setting deleted_at.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		time.Now().UTC(), id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// Versions returns all published versions of a workflow, oldest first.
func (p *Persistence) Versions(ctx context.Context, workflowID string) ([]*models.WorkflowVersion, error) {
	query := `
		SELECT workflow_id, version, definition, published_by, published_at, notes
		FROM workflow_versions
		WHERE workflow_id = $1
		ORDER BY version ASC
	`

	rows, err := p.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions for %s: %w", workflowID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	versions := make([]*models.WorkflowVersion, 0)

	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}

		versions = append(versions, version)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

// VersionByNumber returns one published version of a workflow.
func (p *Persistence) VersionByNumber(ctx context.Context, workflowID string, number int) (*models.WorkflowVersion, error) {
	query := `
		SELECT workflow_id, version, definition, published_by, published_at, notes
		FROM workflow_versions
		WHERE workflow_id = $1 AND version = $2
	`

	version, err := scanVersion(p.db.QueryRowContext(ctx, query, workflowID, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewVersionError("GetVersion", workflowID, number, persistence.ErrVersionNotFound)
		}

		return nil, persistence.NewVersionError("GetVersion", workflowID, number, err)
	}

	return version, nil
}

// SaveVersion inserts an immutable published snapshot. Inserting an
// existing (workflow_id, version) pair fails with ErrVersionAlreadyExists.
func (p *Persistence) SaveVersion(ctx context.Context, version *models.WorkflowVersion) error {
	definitionJSON, err := json.Marshal(version.Definition)
	if err != nil {
		return persistence.NewVersionError("SaveVersion", version.WorkflowID, version.Version,
			fmt.Errorf("failed to marshal definition: %w", err))
	}

	query := `
		INSERT INTO workflow_versions (workflow_id, version, definition, published_by, published_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = p.db.ExecContext(ctx, query,
		version.WorkflowID, version.Version, definitionJSON,
		version.PublishedBy, version.PublishedAt, version.Notes)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewVersionError("SaveVersion", version.WorkflowID, version.Version,
				persistence.ErrVersionAlreadyExists)
		}

		return persistence.NewVersionError("SaveVersion", version.WorkflowID, version.Version, err)
	}

	return nil
}

// LookupTables returns every lookup table ordered by ID.
func (p *Persistence) LookupTables(ctx context.Context) ([]*models.LookupTable, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT id, name, key_column, rows, updated_at FROM lookup_tables ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query lookup tables: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tables := make([]*models.LookupTable, 0)

	for rows.Next() {
		table, err := scanLookupTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lookup table: %w", err)
		}

		tables = append(tables, table)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating lookup tables: %w", err)
	}

	return tables, nil
}

// LookupTableByID returns a lookup table by its ID.
func (p *Persistence) LookupTableByID(ctx context.Context, id string) (*models.LookupTable, error) {
	table, err := scanLookupTable(p.db.QueryRowContext(ctx,
		"SELECT id, name, key_column, rows, updated_at FROM lookup_tables WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lookup table %s: %w", id, persistence.ErrLookupTableNotFound)
		}

		return nil, fmt.Errorf("failed to scan lookup table %s: %w", id, err)
	}

	return table, nil
}

// SaveLookupTable upserts a lookup table.
func (p *Persistence) SaveLookupTable(ctx context.Context, table *models.LookupTable) error {
	rowsJSON, err := json.Marshal(table.Rows)
	if err != nil {
		return fmt.Errorf("failed to marshal lookup rows: %w", err)
	}

	query := `
		INSERT INTO lookup_tables (id, name, key_column, rows, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			key_column = EXCLUDED.key_column,
			rows = EXCLUDED.rows,
			updated_at = EXCLUDED.updated_at
	`

	_, err = p.db.ExecContext(ctx, query, table.ID, table.Name, table.KeyColumn, rowsJSON, table.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save lookup table %s: %w", table.ID, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow       models.Workflow
		definitionJSON []byte
		metadataJSON   []byte
	)

	err := row.Scan(&workflow.ID, &workflow.Name, &workflow.Description, &workflow.Status,
		&workflow.Owner, &workflow.CurrentVersion, &definitionJSON, &metadataJSON,
		&workflow.CreatedAt, &workflow.UpdatedAt, &workflow.DeletedAt)
	if err != nil {
		return nil, err
	}

	if len(definitionJSON) > 0 {
		if err := json.Unmarshal(definitionJSON, &workflow.Definition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
		}
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &workflow.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &workflow, nil
}

func scanVersion(row rowScanner) (*models.WorkflowVersion, error) {
	var (
		version        models.WorkflowVersion
		definitionJSON []byte
		notes          sql.NullString
	)

	err := row.Scan(&version.WorkflowID, &version.Version, &definitionJSON,
		&version.PublishedBy, &version.PublishedAt, &notes)
	if err != nil {
		return nil, err
	}

	version.Notes = notes.String

	if len(definitionJSON) > 0 {
		if err := json.Unmarshal(definitionJSON, &version.Definition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
		}
	}

	return &version, nil
}

func scanLookupTable(row rowScanner) (*models.LookupTable, error) {
	var (
		table    models.LookupTable
		rowsJSON []byte
	)

	err := row.Scan(&table.ID, &table.Name, &table.KeyColumn, &rowsJSON, &table.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(rowsJSON) > 0 {
		if err := json.Unmarshal(rowsJSON, &table.Rows); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lookup rows: %w", err)
		}
	}

	return &table, nil
}
