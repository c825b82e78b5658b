package web

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/dorumake/robot/pkg/intake"
	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/persistence"
	"github.com/dorumake/robot/pkg/portals"
)

// Enqueuer hands an accepted order to the dispatcher. A failed handover is
// not fatal: the order stays PENDING and the scheduler sweep picks it up.
type Enqueuer interface {
	Enqueue(ctx context.Context, order *models.Order) error
}

type APIHandlers struct {
	store     persistence.Persistence
	enqueuer  Enqueuer
	registry  *portals.Registry
	parser    *intake.Parser
	validator *validator.Validate
	logger    *slog.Logger
	uploadDir string
}

func NewAPIHandlers(
	store persistence.Persistence,
	enqueuer Enqueuer,
	registry *portals.Registry,
	parser *intake.Parser,
	validator *validator.Validate,
	logger *slog.Logger,
	uploadDir string,
) *APIHandlers {
	return &APIHandlers{
		store:     store,
		enqueuer:  enqueuer,
		registry:  registry,
		parser:    parser,
		validator: validator,
		logger:    logger,
		uploadDir: uploadDir,
	}
}

// Register mounts all order routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	orders := app.Group("/orders")
	orders.Post("/", h.CreateOrder)
	orders.Post("/import", h.ImportOrder)
	orders.Get("/", h.GetOrders)
	orders.Get("/:id", h.GetOrder)
	orders.Get("/:id/logs", h.GetOrderLogs)
	orders.Post("/:id/retry", h.RetryOrder)

	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) CreateOrder(c fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if !h.registry.Has(req.SupplierCode) {
		return unprocessable(c, "No portal workflow registered for supplier "+req.SupplierCode)
	}

	order := h.newOrder(req)

	if err := h.store.Orders().Save(c.Context(), order); err != nil {
		return internalError(c, err)
	}

	h.handOver(c.Context(), order)

	return c.Status(fiber.StatusCreated).JSON(order)
}

// ImportOrder accepts an order workbook upload. The supplier is given as a
// form field because workbooks do not carry it.
func (h *APIHandlers) ImportOrder(c fiber.Ctx) error {
	supplierCode := c.FormValue("supplier_code")
	if supplierCode == "" {
		return badRequest(c, "supplier_code form field is required")
	}

	if !h.registry.Has(supplierCode) {
		return unprocessable(c, "No portal workflow registered for supplier "+supplierCode)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file form field is required")
	}

	path := filepath.Join(h.uploadDir, uuid.NewString()+filepath.Ext(fileHeader.Filename))
	if err := c.SaveFile(fileHeader, path); err != nil {
		return internalError(c, err)
	}

	parsed, err := h.parser.ParseWorkbook(path)
	if err != nil {
		return unprocessable(c, "Could not read order workbook: "+err.Error())
	}

	req := CreateOrderRequest{
		OrderCode:    parsed.OrderCode,
		SupplierCode: supplierCode,
		CustomerID:   parsed.CustomerCode,
		CustomerName: parsed.CustomerName,
	}
	for _, item := range parsed.Items {
		req.Items = append(req.Items, OrderItemRequest{
			ProductCode: item.ProductCode,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return unprocessable(c, "Workbook is missing required order data: "+err.Error())
	}

	order := h.newOrder(req)

	if err := h.store.Orders().Save(c.Context(), order); err != nil {
		return internalError(c, err)
	}

	h.handOver(c.Context(), order)

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *APIHandlers) GetOrders(c fiber.Ctx) error {
	var (
		orders []*models.Order
		err    error
	)

	if statusStr := c.Query("status"); statusStr != "" {
		orders, err = h.store.Orders().ListByStatus(c.Context(), models.OrderStatus(statusStr))
	} else {
		orders, err = h.store.Orders().List(c.Context())
	}

	if err != nil {
		return internalError(c, err)
	}

	if orders == nil {
		orders = []*models.Order{}
	}

	return c.JSON(orders)
}

func (h *APIHandlers) GetOrder(c fiber.Ctx) error {
	order, done := h.fetchOrder(c)
	if order == nil {
		return done
	}

	return c.JSON(order)
}

func (h *APIHandlers) GetOrderLogs(c fiber.Ctx) error {
	order, done := h.fetchOrder(c)
	if order == nil {
		return done
	}

	entries, err := h.store.StepLogs().ListByOrder(c.Context(), order.ID)
	if err != nil {
		return internalError(c, err)
	}

	if entries == nil {
		entries = []*models.StepLogEntry{}
	}

	return c.JSON(entries)
}

// RetryOrder resets a terminal order to PENDING and hands it over again.
func (h *APIHandlers) RetryOrder(c fiber.Ctx) error {
	order, done := h.fetchOrder(c)
	if order == nil {
		return done
	}

	if !order.Terminal() {
		return conflict(c, "Order is "+string(order.Status)+"; only COMPLETED or FAILED orders can be retried")
	}

	order.Status = models.OrderStatusPending
	order.PortalRef = ""
	order.ErrorMessage = ""
	order.CompletedAt = nil
	order.UpdatedAt = time.Now().UTC()

	if err := h.store.Orders().Save(c.Context(), order); err != nil {
		return internalError(c, err)
	}

	h.handOver(c.Context(), order)

	return c.JSON(order)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := fiber.StatusOK
	repository := "ok"

	if err := h.store.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = fiber.StatusInternalServerError
		repository = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repository,
			"suppliers":  h.registry.Suppliers(),
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) newOrder(req CreateOrderRequest) *models.Order {
	now := time.Now().UTC()

	order := &models.Order{
		ID:           uuid.NewString(),
		OrderCode:    req.OrderCode,
		SupplierCode: req.SupplierCode,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Status:       models.OrderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductCode: item.ProductCode,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	return order
}

func (h *APIHandlers) handOver(ctx context.Context, order *models.Order) {
	if h.enqueuer == nil {
		return
	}

	if err := h.enqueuer.Enqueue(ctx, order); err != nil {
		h.logger.Warn("order accepted but not handed to dispatcher, sweep will retry",
			"order_id", order.ID, "supplier", order.SupplierCode, "error", err)
	}
}

// fetchOrder resolves the :id param. On failure it writes the problem
// response and returns a nil order; callers return the second value as-is.
func (h *APIHandlers) fetchOrder(c fiber.Ctx) (*models.Order, error) {
	id := c.Params("id")
	if id == "" {
		return nil, badRequest(c, "Order ID is required")
	}

	order, err := h.store.Orders().GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrOrderNotFound) {
			return nil, notFound(c, "Order not found")
		}

		return nil, internalError(c, err)
	}

	return order, nil
}
