package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/inventory-audit/internal/metrics"
)

// NewMetricsMiddleware records count and latency per matched route, so
// /api/products/7 and /api/products/8 share one series.
func NewMetricsMiddleware(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		m.ObserveHTTP(c.Method(), c.Route().Path, status, time.Since(start))

		return err
	}
}
