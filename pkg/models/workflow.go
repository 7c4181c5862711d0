package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow draft.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"     // Editable, not executable
	WorkflowStatusPublished WorkflowStatus = "published" // Has at least one published version
)

// Workflow is the mutable working copy a designer edits in the studio.
// Publishing snapshots its Definition into an immutable WorkflowVersion.
type Workflow struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"        validate:"required,min=3"`
	Description    string         `json:"description" validate:"required"`
	Status         WorkflowStatus `json:"status"`
	Owner          string         `json:"owner"`
	CurrentVersion int            `json:"current_version"` // Highest published version number, 0 when never published
	Definition     *Definition    `json:"definition"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

// WorkflowVersion is an immutable published snapshot of a workflow
// definition, identified by (workflow_id, version). It is never mutated
// after creation; new edits produce a new version.
type WorkflowVersion struct {
	WorkflowID  string      `json:"workflow_id"`
	Version     int         `json:"version"`
	Definition  *Definition `json:"definition"`
	PublishedBy string      `json:"published_by"`
	PublishedAt time.Time   `json:"published_at"`
	Notes       string      `json:"notes,omitempty"`
}
