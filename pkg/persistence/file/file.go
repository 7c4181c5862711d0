// Package file provides file-based persistence for workflows, published
// versions and lookup tables. Intended for local development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/loopwork/flowstudio/pkg/persistence"
)

const fileMode = 0o600

// Persistence implements the persistence.Persistence interface on top of a
// directory tree of JSON documents:
//
//	<root>/workflows/<id>.json
//	<root>/versions/<workflow_id>/<version>.json
//	<root>/lookup_tables/<id>.json
type Persistence struct {
	root string
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists or can be created.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return os.MkdirAll(p.root, 0o750)
}

func (p *Persistence) workflowPath(id string) string {
	return filepath.Join(p.root, "workflows", id+".json")
}

func (p *Persistence) versionDir(workflowID string) string {
	return filepath.Join(p.root, "versions", workflowID)
}

func (p *Persistence) versionPath(workflowID string, version int) string {
	return filepath.Join(p.versionDir(workflowID), strconv.Itoa(version)+".json")
}

func (p *Persistence) lookupTablePath(id string) string {
	return filepath.Join(p.root, "lookup_tables", id+".json")
}

func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func readJSON(path string, target any) (bool, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- paths are built from our own root
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return true, nil
}

// Workflows returns every non-deleted workflow, newest first.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, "workflows"))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Workflow{}, nil
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		workflow, err := p.WorkflowByID(ctx, id)
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := readJSON(p.workflowPath(id), &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	if !found || workflow.DeletedAt != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if err := writeJSON(p.workflowPath(workflow.ID), workflow); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// DeleteWorkflow soft deletes by stamping deleted_at, matching the SQL
// implementation's behavior.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	workflow, err := p.WorkflowByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	workflow.DeletedAt = &now

	if err := writeJSON(p.workflowPath(id), workflow); err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// Versions returns all published versions of a workflow, oldest first.
func (p *Persistence) Versions(_ context.Context, workflowID string) ([]*models.WorkflowVersion, error) {
	entries, err := os.ReadDir(p.versionDir(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.WorkflowVersion{}, nil
		}

		return nil, fmt.Errorf("failed to list versions for %s: %w", workflowID, err)
	}

	versions := make([]*models.WorkflowVersion, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var version models.WorkflowVersion

		found, err := readJSON(filepath.Join(p.versionDir(workflowID), entry.Name()), &version)
		if err != nil {
			return nil, err
		}

		if found {
			versions = append(versions, &version)
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})

	return versions, nil
}

func (p *Persistence) VersionByNumber(_ context.Context, workflowID string, number int) (*models.WorkflowVersion, error) {
	var version models.WorkflowVersion

	found, err := readJSON(p.versionPath(workflowID, number), &version)
	if err != nil {
		return nil, persistence.NewVersionError("GetVersion", workflowID, number, err)
	}

	if !found {
		return nil, persistence.NewVersionError("GetVersion", workflowID, number, persistence.ErrVersionNotFound)
	}

	return &version, nil
}

func (p *Persistence) SaveVersion(_ context.Context, version *models.WorkflowVersion) error {
	path := p.versionPath(version.WorkflowID, version.Version)

	if _, err := os.Stat(path); err == nil {
		return persistence.NewVersionError("SaveVersion", version.WorkflowID, version.Version,
			persistence.ErrVersionAlreadyExists)
	}

	if err := writeJSON(path, version); err != nil {
		return persistence.NewVersionError("SaveVersion", version.WorkflowID, version.Version, err)
	}

	return nil
}

func (p *Persistence) LookupTables(_ context.Context) ([]*models.LookupTable, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, "lookup_tables"))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.LookupTable{}, nil
		}

		return nil, fmt.Errorf("failed to list lookup tables: %w", err)
	}

	tables := make([]*models.LookupTable, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var table models.LookupTable

		found, err := readJSON(filepath.Join(p.root, "lookup_tables", entry.Name()), &table)
		if err != nil {
			return nil, err
		}

		if found {
			tables = append(tables, &table)
		}
	}

	sort.Slice(tables, func(i, j int) bool {
		return tables[i].ID < tables[j].ID
	})

	return tables, nil
}

func (p *Persistence) LookupTableByID(_ context.Context, id string) (*models.LookupTable, error) {
	var table models.LookupTable

	found, err := readJSON(p.lookupTablePath(id), &table)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("lookup table %s: %w", id, persistence.ErrLookupTableNotFound)
	}

	return &table, nil
}

func (p *Persistence) SaveLookupTable(_ context.Context, table *models.LookupTable) error {
	return writeJSON(p.lookupTablePath(table.ID), table)
}
