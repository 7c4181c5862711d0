// Package main provides the Flowstudio API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/loopwork/flowstudio/pkg/eventbus"
	"github.com/loopwork/flowstudio/pkg/lookup"
	"github.com/loopwork/flowstudio/pkg/persistence"
	"github.com/loopwork/flowstudio/pkg/preview"
	"github.com/loopwork/flowstudio/pkg/web"
	"github.com/loopwork/flowstudio/pkg/workflow"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	redisClient *redis.Client
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	redisClient *redis.Client,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		redisClient: redisClient,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	repository := workflow.NewRepository(a.persistence, a.validate)
	publishing := workflow.NewPublishingService(a.logger, a.persistence, a.validate, a.eventBus)
	comparison := workflow.NewCompareService(a.persistence, a.tracer)

	// The approver resolver reads lookup tables through redis when a client
	// is configured, straight from persistence otherwise.
	var (
		tables lookup.TableStore = a.persistence
		cache  web.TableCache
	)

	if a.redisClient != nil {
		cached := lookup.NewCachedStore(a.logger, a.persistence, a.redisClient)
		tables = cached
		cache = cached
	}

	sessions := preview.NewSessionManager(a.logger,
		preview.WithSimulatorOptions(preview.WithApproverResolver(lookup.NewResolver(tables))))

	handlers := web.NewAPIHandlers(a.logger, repository, publishing, comparison,
		sessions, a.persistence, cache, a.validate, a.eventBus)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowstudio API")
	})

	app.Get("/health", handlers.HealthCheck)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/import", handlers.ImportWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/publish", handlers.PublishWorkflow)
	w.Post("/:id/unpublish", handlers.UnpublishWorkflow)
	w.Get("/:id/versions", handlers.GetVersions)
	w.Get("/:id/versions/compare", handlers.CompareVersions)
	w.Get("/:id/versions/:num", handlers.GetVersion)

	l := app.Group("/lookup-tables")
	l.Get("/", handlers.GetLookupTables)
	l.Get("/:id", handlers.GetLookupTable)
	l.Put("/:id", handlers.SaveLookupTable)

	p := app.Group("/previews")
	p.Post("/", handlers.CreatePreview)
	p.Get("/:id", handlers.GetPreview)
	p.Post("/:id/start", handlers.StartPreview)
	p.Post("/:id/values", handlers.SetPreviewValues)
	p.Post("/:id/complete", handlers.CompletePreviewStep)
	p.Post("/:id/speed", handlers.SetPreviewSpeed)
	p.Post("/:id/reset", handlers.ResetPreview)
	p.Delete("/:id", handlers.DeletePreview)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
