package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/sakashimaa/inventory-audit/pkg/mylogger"
	"github.com/sakashimaa/inventory-audit/pkg/utils"
	"go.uber.org/zap"
)

const (
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeMalformedInput = "MALFORMED_INPUT"
	CodeConflict       = "CONFLICT"
	CodeTimeout        = "TIMEOUT"
	CodeInternal       = "INTERNAL"
)

func mapError(err error) (int, string) {
	var validationErrors validator.ValidationErrors

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.As(err, &validationErrors):
		return fiber.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, domain.ErrMalformedInput):
		return fiber.StatusBadRequest, CodeMalformedInput
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, CodeConflict
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, CodeTimeout
	default:
		return fiber.StatusInternalServerError, CodeInternal
	}
}

// errorResponse writes {"error", "code"} for err. extra keys are merged into
// the body.
func (b *base) errorResponse(c *fiber.Ctx, msg string, err error, extra fiber.Map) error {
	ctx := c.UserContext()
	status, code := mapError(err)

	body := fiber.Map{
		"error": err.Error(),
		"code":  code,
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		body["error"] = "validation failed"
		body["fields"] = utils.FormatValidationError(err)
	}

	for k, v := range extra {
		body[k] = v
	}

	if status >= fiber.StatusInternalServerError {
		mylogger.Error(ctx, b.logger, msg, zap.Int("http_status", status), zap.Error(err))
		if status == fiber.StatusInternalServerError {
			body["error"] = "internal error"
		}
	} else {
		mylogger.Warn(ctx, b.logger, msg, zap.Int("http_status", status), zap.Error(err))
	}

	return c.Status(status).JSON(body)
}
