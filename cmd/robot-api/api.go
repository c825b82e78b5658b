package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dorumake/robot/pkg/eventbus"
	"github.com/dorumake/robot/pkg/events"
	"github.com/dorumake/robot/pkg/intake"
	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/persistence"
	"github.com/dorumake/robot/pkg/portals"
	"github.com/dorumake/robot/pkg/web"
)

type API struct {
	logger    *slog.Logger
	store     persistence.Persistence
	registry  *portals.Registry
	bus       eventbus.EventBus
	validate  *validator.Validate
	uploadDir string
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	registry *portals.Registry,
	bus eventbus.EventBus,
	uploadDir string,
) *API {
	return &API{
		logger:    logger,
		store:     store,
		registry:  registry,
		bus:       bus,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		uploadDir: uploadDir,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.store,
		&queuedPublisher{bus: a.bus},
		a.registry,
		intake.NewParser(a.logger),
		a.validate,
		a.logger,
		a.uploadDir,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Robot API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}

// queuedPublisher announces accepted orders on the bus. A worker picks the
// event up and routes the order to its supplier queue.
type queuedPublisher struct {
	bus eventbus.EventBus
}

func (p *queuedPublisher) Enqueue(ctx context.Context, order *models.Order) error {
	return p.bus.Publish(ctx, events.Topic, events.OrderQueued{
		BaseEvent: events.NewBaseEvent(events.OrderQueuedEvent, order),
	})
}
