package handler

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/sakashimaa/inventory-audit/internal/service"
	"github.com/sakashimaa/inventory-audit/pkg/mylogger"
	"go.uber.org/zap"
)

const (
	ImportFileField = "file"
	ImportIDHeader  = "X-Import-Id"
)

// CatalogHandler serves the bulk CSV endpoints.
type CatalogHandler struct {
	base
	imports service.ImportService
	queries service.QueryService
}

func NewCatalogHandler(imports service.ImportService, queries service.QueryService, logger *zap.Logger, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		base: base{
			validate: validator.New(),
			logger:   logger,
			timeout:  timeout,
		},
		imports: imports,
		queries: queries,
	}
}

func (h *CatalogHandler) Import(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	mode, err := domain.ParseImportMode(c.Query("mode"))
	if err != nil {
		return h.errorResponse(c, "import mode is invalid", err, nil)
	}

	header, err := c.FormFile(ImportFileField)
	if err != nil {
		return h.errorResponse(c, "import file missing", fmt.Errorf("%w: multipart field %q is required", domain.ErrInvalidInput, ImportFileField), nil)
	}

	file, err := header.Open()
	if err != nil {
		return h.errorResponse(c, "failed to open import file", err, nil)
	}
	defer func() {
		_ = file.Close()
	}()

	opts := domain.ImportOptions{
		ID:    uuid.NewString(),
		Mode:  mode,
		Actor: c.FormValue("changedBy"),
	}
	c.Set(ImportIDHeader, opts.ID)

	mylogger.Info(
		ctx,
		h.logger,
		"import request",
		zap.String("import_id", opts.ID),
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
	)

	summary, err := h.imports.Import(ctx, file, opts)
	if err != nil {
		var extra fiber.Map
		if summary != nil {
			extra = fiber.Map{"summary": summary}
		}
		return h.errorResponse(c, "import failed", err, extra)
	}

	return c.Status(fiber.StatusOK).JSON(summary)
}

func (h *CatalogHandler) Export(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var buf bytes.Buffer
	if err := h.queries.Export(ctx, &buf); err != nil {
		return h.errorResponse(c, "export failed", err, nil)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Attachment("products.csv")

	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}
