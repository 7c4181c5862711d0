package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/loopwork/flowstudio/pkg/eventbus"
	"github.com/loopwork/flowstudio/pkg/events"
	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/loopwork/flowstudio/pkg/persistence"
)

// PublishingService snapshots drafts into immutable versions and notifies
// the rest of the system over the event bus.
type PublishingService struct {
	persistence persistence.Persistence
	validator   *validator.Validate
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewPublishingService creates a new workflow publishing service. The
// publisher may be nil, in which case lifecycle events are skipped.
func NewPublishingService(
	logger *slog.Logger,
	persistence persistence.Persistence,
	validator *validator.Validate,
	publisher eventbus.EventPublisher,
) *PublishingService {
	return &PublishingService{
		persistence: persistence,
		validator:   validator,
		publisher:   publisher,
		logger:      logger,
	}
}

// Publish validates the draft and snapshots its definition as the next
// version number. The snapshot is a deep copy: later edits to the draft
// cannot reach into it.
func (s *PublishingService) Publish(ctx context.Context, workflowID, publishedBy, notes string) (*models.WorkflowVersion, error) {
	workflow, err := s.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow for publishing: %w", err)
	}

	if err := s.validateForPublishing(workflow); err != nil {
		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	version := &models.WorkflowVersion{
		WorkflowID:  workflow.ID,
		Version:     workflow.CurrentVersion + 1,
		Definition:  workflow.Definition.Clone(),
		PublishedBy: publishedBy,
		PublishedAt: time.Now().UTC(),
		Notes:       notes,
	}

	if err := s.persistence.SaveVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save published version: %w", err)
	}

	workflow.CurrentVersion = version.Version
	workflow.Status = models.WorkflowStatusPublished
	workflow.UpdatedAt = time.Now().UTC()

	if err := s.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow after publishing: %w", err)
	}

	s.publishEvent(ctx, workflow.ID, events.WorkflowPublished{
		BaseEvent:   events.NewBaseEvent(events.WorkflowPublishedEvent, workflow.ID),
		Version:     version.Version,
		PublishedBy: publishedBy,
	})

	return version, nil
}

// Unpublish flips the workflow back to draft. Published versions are
// immutable and stay retrievable; only the status changes.
func (s *PublishingService) Unpublish(ctx context.Context, workflowID string) error {
	workflow, err := s.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow.CurrentVersion == 0 {
		return fmt.Errorf("workflow %s has no published version to unpublish", workflowID)
	}

	workflow.Status = models.WorkflowStatusDraft
	workflow.UpdatedAt = time.Now().UTC()

	if err := s.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return fmt.Errorf("failed to update workflow after unpublishing: %w", err)
	}

	s.publishEvent(ctx, workflow.ID, events.WorkflowUnpublished{
		BaseEvent: events.NewBaseEvent(events.WorkflowUnpublishedEvent, workflow.ID),
		Version:   workflow.CurrentVersion,
	})

	return nil
}

// Versions lists every published version of a workflow, oldest first.
func (s *PublishingService) Versions(ctx context.Context, workflowID string) ([]*models.WorkflowVersion, error) {
	return s.persistence.Versions(ctx, workflowID)
}

// VersionByNumber fetches one published version.
func (s *PublishingService) VersionByNumber(ctx context.Context, workflowID string, number int) (*models.WorkflowVersion, error) {
	return s.persistence.VersionByNumber(ctx, workflowID, number)
}

func (s *PublishingService) publishEvent(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish lifecycle event",
			"event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}

// validateForPublishing checks the draft's definition graph is executable.
func (s *PublishingService) validateForPublishing(workflow *models.Workflow) error {
	if err := s.validator.Struct(workflow); err != nil {
		return err
	}

	definition := workflow.Definition
	if definition == nil || len(definition.Steps) == 0 {
		return errors.New("cannot publish workflow with no steps")
	}

	stepIDs := make(map[string]bool, len(definition.Steps))
	startCount := 0

	for _, step := range definition.Steps {
		if step.ID == "" {
			return errors.New("found step with empty ID")
		}

		if stepIDs[step.ID] {
			return fmt.Errorf("duplicate step ID: %s", step.ID)
		}

		stepIDs[step.ID] = true

		if step.IsStart {
			startCount++
		}
	}

	if startCount != 1 {
		return fmt.Errorf("workflow must have exactly one start step, found %d", startCount)
	}

	if definition.StartStepID == "" || !stepIDs[definition.StartStepID] {
		return fmt.Errorf("start step %q is not in the definition", definition.StartStepID)
	}

	for _, transition := range definition.Transitions {
		if !stepIDs[transition.FromStepID] {
			return fmt.Errorf("transition references non-existent source step: %s", transition.FromStepID)
		}

		if !stepIDs[transition.ToStepID] {
			return fmt.Errorf("transition references non-existent target step: %s", transition.ToStepID)
		}
	}

	return nil
}
