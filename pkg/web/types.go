// Package web provides the HTTP handlers and request/response types for the
// studio API.
package web

import (
	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/loopwork/flowstudio/pkg/preview"
)

// CreateWorkflowRequest represents the request body for creating a new draft.
type CreateWorkflowRequest struct {
	Name        string             `json:"name"        validate:"required,min=3"`
	Description string             `json:"description" validate:"required"`
	Owner       string             `json:"owner"       validate:"required"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	Definition  *models.Definition `json:"definition,omitempty"`
}

// UpdateWorkflowRequest represents the request body for updating a draft.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string            `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string            `json:"description,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	Definition  *models.Definition `json:"definition,omitempty"`
}

// PublishWorkflowRequest represents the request body for publishing a draft.
type PublishWorkflowRequest struct {
	PublishedBy string `json:"published_by" validate:"required"`
	Notes       string `json:"notes,omitempty"`
}

// SaveLookupTableRequest represents the request body for writing a lookup table.
type SaveLookupTableRequest struct {
	Name      string             `json:"name"       validate:"required,min=1"`
	KeyColumn string             `json:"key_column"`
	Rows      []models.LookupRow `json:"rows"       validate:"dive"`
}

// CreatePreviewRequest starts a preview session from either a published
// version of a stored workflow or an inline definition.
type CreatePreviewRequest struct {
	WorkflowID string             `json:"workflow_id,omitempty"`
	Version    int                `json:"version,omitempty"`
	Definition *models.Definition `json:"definition,omitempty"`
}

// PreviewValuesRequest merges form values into the running session.
type PreviewValuesRequest struct {
	Values map[string]any `json:"values" validate:"required"`
}

// PreviewCompleteRequest completes the active step, optionally with an
// approval decision.
type PreviewCompleteRequest struct {
	Decision string `json:"decision,omitempty" validate:"omitempty,oneof=approve reject"`
}

// PreviewSpeedRequest changes the pacing of auto-advancing steps.
type PreviewSpeedRequest struct {
	Speed preview.Speed `json:"speed" validate:"required,oneof=slow normal fast"`
}
