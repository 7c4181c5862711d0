package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/loopwork/flowstudio/pkg/eventbus"
	"github.com/loopwork/flowstudio/pkg/events"
	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/loopwork/flowstudio/pkg/persistence"
	"github.com/loopwork/flowstudio/pkg/preview"
	"github.com/loopwork/flowstudio/pkg/workflow"
)

// TableCache is the cache invalidation hook for lookup table writes.
// Optional; nil means no cache sits in front of the store.
type TableCache interface {
	Invalidate(ctx context.Context, id string) error
}

type APIHandlers struct {
	logger     *slog.Logger
	repository *workflow.Repository
	publishing *workflow.PublishingService
	comparison *workflow.CompareService
	sessions   *preview.SessionManager
	store      persistence.Persistence
	cache      TableCache
	validator  *validator.Validate
	publisher  eventbus.EventPublisher
}

func NewAPIHandlers(
	logger *slog.Logger,
	repository *workflow.Repository,
	publishing *workflow.PublishingService,
	comparison *workflow.CompareService,
	sessions *preview.SessionManager,
	store persistence.Persistence,
	cache TableCache,
	validator *validator.Validate,
	publisher eventbus.EventPublisher,
) *APIHandlers {
	return &APIHandlers{
		logger:     logger,
		repository: repository,
		publishing: publishing,
		comparison: comparison,
		sessions:   sessions,
		store:      store,
		cache:      cache,
		validator:  validator,
		publisher:  publisher,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.repository.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flowstudio API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Flowstudio API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.repository.FetchFiltered(c.Context(),
		c.Query("owner"), models.WorkflowStatus(c.Query("status")))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	found, err := h.repository.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.repository.Create(c.Context(), &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Metadata:    req.Metadata,
		Definition:  req.Definition,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// ImportWorkflow creates a draft from a raw definition document. The
// definition is validated against the JSON schema before anything is stored.
func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	var req struct {
		Name        string          `json:"name"        validate:"required,min=3"`
		Description string          `json:"description" validate:"required"`
		Owner       string          `json:"owner"       validate:"required"`
		Definition  json.RawMessage `json:"definition"  validate:"required"`
	}

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := models.ValidateDefinitionJSON(req.Definition); err != nil {
		return badRequest(c, "Definition failed schema validation: "+err.Error())
	}

	var definition models.Definition
	if err := json.Unmarshal(req.Definition, &definition); err != nil {
		return badRequest(c, "Invalid definition document")
	}

	created, err := h.repository.Create(c.Context(), &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Definition:  &definition,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.repository.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Metadata != nil {
		existing.Metadata = req.Metadata
	}

	if req.Definition != nil {
		existing.Definition = req.Definition
	}

	updated, err := h.repository.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.repository.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	h.publishEvent(c.Context(), id, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, id),
	})

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req PublishWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.publishing.Publish(c.Context(), id, req.PublishedBy, req.Notes)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(version)
}

func (h *APIHandlers) UnpublishWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.publishing.Unpublish(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetVersions(c fiber.Ctx) error {
	versions, err := h.publishing.Versions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"versions": versions})
}

func (h *APIHandlers) GetVersion(c fiber.Ctx) error {
	number, err := strconv.Atoi(c.Params("num"))
	if err != nil {
		return badRequest(c, "Version must be a number")
	}

	version, err := h.publishing.VersionByNumber(c.Context(), c.Params("id"), number)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(version)
}

// CompareVersions diffs two published versions named by from/to query
// parameters.
func (h *APIHandlers) CompareVersions(c fiber.Ctx) error {
	from, err := strconv.Atoi(c.Query("from"))
	if err != nil {
		return badRequest(c, "Query parameter 'from' must be a version number")
	}

	to, err := strconv.Atoi(c.Query("to"))
	if err != nil {
		return badRequest(c, "Query parameter 'to' must be a version number")
	}

	comparison, err := h.comparison.Compare(c.Context(), c.Params("id"), from, to)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(comparison)
}

func (h *APIHandlers) GetLookupTables(c fiber.Ctx) error {
	tables, err := h.store.LookupTables(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"lookup_tables": tables})
}

func (h *APIHandlers) GetLookupTable(c fiber.Ctx) error {
	table, err := h.store.LookupTableByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(table)
}

func (h *APIHandlers) SaveLookupTable(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lookup table ID is required")
	}

	var req SaveLookupTableRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	table := &models.LookupTable{
		ID:        id,
		Name:      req.Name,
		KeyColumn: req.KeyColumn,
		Rows:      req.Rows,
		UpdatedAt: time.Now().UTC(),
	}

	if err := h.store.SaveLookupTable(c.Context(), table); err != nil {
		return handleServiceError(c, err)
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(c.Context(), id); err != nil {
			h.logger.WarnContext(c.Context(), "failed to invalidate lookup table cache",
				"table_id", id, "error", err)
		}
	}

	return c.JSON(table)
}

// CreatePreview opens a preview session from a published version or an
// inline definition. Asking for version 0 of a stored workflow previews its
// current draft definition.
func (h *APIHandlers) CreatePreview(c fiber.Ctx) error {
	var req CreatePreviewRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	definition := req.Definition

	if req.WorkflowID != "" {
		if req.Version > 0 {
			version, err := h.publishing.VersionByNumber(c.Context(), req.WorkflowID, req.Version)
			if err != nil {
				return handleServiceError(c, err)
			}

			definition = version.Definition
		} else {
			draft, err := h.repository.FetchByID(c.Context(), req.WorkflowID)
			if err != nil {
				return handleServiceError(c, err)
			}

			definition = draft.Definition
		}
	}

	if definition == nil {
		return badRequest(c, "Either workflow_id or definition is required")
	}

	session := h.sessions.Create(definition, req.WorkflowID, req.Version)

	return c.Status(fiber.StatusCreated).JSON(previewResponse(session))
}

func (h *APIHandlers) GetPreview(c fiber.Ctx) error {
	session, exists := h.sessions.Get(c.Params("id"))
	if !exists {
		return notFound(c, "Preview session not found")
	}

	return c.JSON(previewResponse(session))
}

func (h *APIHandlers) StartPreview(c fiber.Ctx) error {
	session, exists := h.sessions.Get(c.Params("id"))
	if !exists {
		return notFound(c, "Preview session not found")
	}

	session.Simulator.Start(c.Context())

	return c.JSON(previewResponse(session))
}

func (h *APIHandlers) SetPreviewValues(c fiber.Ctx) error {
	session, exists := h.sessions.Get(c.Params("id"))
	if !exists {
		return notFound(c, "Preview session not found")
	}

	var req PreviewValuesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session.Simulator.SetValues(req.Values)

	return c.JSON(previewResponse(session))
}

func (h *APIHandlers) CompletePreviewStep(c fiber.Ctx) error {
	session, exists := h.sessions.Get(c.Params("id"))
	if !exists {
		return notFound(c, "Preview session not found")
	}

	var req PreviewCompleteRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	session.Simulator.CompleteCurrentStep(c.Context(), req.Decision)

	return c.JSON(previewResponse(session))
}

func (h *APIHandlers) SetPreviewSpeed(c fiber.Ctx) error {
	session, exists := h.sessions.Get(c.Params("id"))
	if !exists {
		return notFound(c, "Preview session not found")
	}

	var req PreviewSpeedRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session.Simulator.SetSpeed(req.Speed)

	return c.JSON(previewResponse(session))
}

func (h *APIHandlers) ResetPreview(c fiber.Ctx) error {
	session, exists := h.sessions.Get(c.Params("id"))
	if !exists {
		return notFound(c, "Preview session not found")
	}

	session.Simulator.Reset()

	return c.JSON(previewResponse(session))
}

func (h *APIHandlers) DeletePreview(c fiber.Ctx) error {
	h.sessions.Delete(c.Params("id"))

	return c.SendStatus(fiber.StatusNoContent)
}

func previewResponse(session *preview.Session) fiber.Map {
	return fiber.Map{
		"id":             session.ID,
		"workflow_id":    session.WorkflowID,
		"version":        session.Version,
		"state":          session.Simulator.State(),
		"active_step_id": session.Simulator.ActiveStepID(),
		"steps":          session.Simulator.Steps(),
		"events":         session.Simulator.Events(),
	}
}

func (h *APIHandlers) publishEvent(ctx context.Context, key string, event eventbus.Event) {
	if h.publisher == nil {
		return
	}

	if err := h.publisher.Publish(ctx, key, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to publish lifecycle event",
			"event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}
