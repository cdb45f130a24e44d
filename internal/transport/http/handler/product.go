package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/sakashimaa/inventory-audit/internal/service"
	"github.com/sakashimaa/inventory-audit/pkg/mylogger"
	"go.uber.org/zap"
)

type base struct {
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func (b *base) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), b.timeout)
}

type ProductHandler struct {
	base
	products service.ProductService
	queries  service.QueryService
}

func NewProductHandler(products service.ProductService, queries service.QueryService, logger *zap.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		base: base{
			validate: validator.New(),
			logger:   logger,
			timeout:  timeout,
		},
		products: products,
		queries:  queries,
	}
}

func parseID(c *fiber.Ctx) (int64, error) {
	idStr := c.Params("id")

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid product id %q", domain.ErrInvalidInput, idStr)
	}

	return id, nil
}

func parseOptionalInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is invalid", domain.ErrInvalidInput, key)
	}

	return v, nil
}

func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	limit, err := parseOptionalInt(c, "limit")
	if err != nil {
		return h.errorResponse(c, "limit is invalid", err, nil)
	}

	offset, err := parseOptionalInt(c, "offset")
	if err != nil {
		return h.errorResponse(c, "offset is invalid", err, nil)
	}

	filter := domain.ProductFilter{
		Name:     c.Query("name"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	}

	products, err := h.queries.Search(ctx, filter)
	if err != nil {
		return h.errorResponse(c, "list products failed", err, nil)
	}

	mylogger.Debug(
		ctx,
		h.logger,
		"list products succeeded",
		zap.String("name", filter.Name),
		zap.String("category", filter.Category),
		zap.Int("total", len(products)),
	)

	return c.Status(fiber.StatusOK).JSON(toProductResponses(products))
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id, err := parseID(c)
	if err != nil {
		return h.errorResponse(c, "id is invalid", err, nil)
	}

	product, err := h.products.GetProduct(ctx, id)
	if err != nil {
		return h.errorResponse(c, "find by id failed", err, nil)
	}

	return c.Status(fiber.StatusOK).JSON(toProductResponse(product))
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	input := new(CreateProductRequest)
	if err := c.BodyParser(input); err != nil {
		return h.errorResponse(c, "failed to parse body in create", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err), nil)
	}

	if err := h.validate.Struct(input); err != nil {
		return h.errorResponse(c, "failed to validate create input", err, nil)
	}

	product, err := h.products.CreateProduct(ctx, input.Fields())
	if err != nil {
		return h.errorResponse(c, "create product failed", err, nil)
	}

	mylogger.Info(ctx, h.logger, "create product succeeded", zap.Int64("created_id", product.ID))

	return c.Status(fiber.StatusCreated).JSON(toProductResponse(product))
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id, err := parseID(c)
	if err != nil {
		return h.errorResponse(c, "id is invalid", err, nil)
	}

	input := new(UpdateProductRequest)
	if err := c.BodyParser(input); err != nil {
		return h.errorResponse(c, "failed to parse body in update", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err), nil)
	}

	if err := h.validate.Struct(input); err != nil {
		return h.errorResponse(c, "failed to validate update input", err, nil)
	}

	product, err := h.products.UpdateProduct(ctx, id, input.Input(), input.ChangedBy)
	if err != nil {
		return h.errorResponse(c, "update product failed", err, nil)
	}

	mylogger.Info(
		ctx,
		h.logger,
		"update product succeeded",
		zap.Int64("product_id", id),
		zap.String("changed_by", input.ChangedBy),
	)

	return c.Status(fiber.StatusOK).JSON(toProductResponse(product))
}

func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id, err := parseID(c)
	if err != nil {
		return h.errorResponse(c, "id is invalid", err, nil)
	}

	if err := h.products.DeleteProduct(ctx, id); err != nil {
		return h.errorResponse(c, "delete product failed", err, nil)
	}

	mylogger.Info(ctx, h.logger, "product deleted successfully", zap.Int64("product_id", id))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
	})
}

func (h *ProductHandler) History(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id, err := parseID(c)
	if err != nil {
		return h.errorResponse(c, "id is invalid", err, nil)
	}

	order, err := domain.ParseSortOrder(c.Query("order"))
	if err != nil {
		return h.errorResponse(c, "order is invalid", err, nil)
	}

	entries, err := h.products.History(ctx, id, order)
	if err != nil {
		return h.errorResponse(c, "history failed", err, nil)
	}

	return c.Status(fiber.StatusOK).JSON(toHistoryResponses(entries))
}

func (h *ProductHandler) Categories(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	categories, err := h.queries.Categories(ctx)
	if err != nil {
		return h.errorResponse(c, "list categories failed", err, nil)
	}

	return c.Status(fiber.StatusOK).JSON(categories)
}
