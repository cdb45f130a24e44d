package http

import (
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sakashimaa/inventory-audit/internal/metrics"
	"github.com/sakashimaa/inventory-audit/internal/transport/http/handler"
	"github.com/sakashimaa/inventory-audit/internal/transport/http/middleware"
)

type Handlers struct {
	Product *handler.ProductHandler
	Catalog *handler.CatalogHandler
}

type Options struct {
	BodyLimit    int
	AllowOrigins string
	// LimiterMax of 0 disables rate limiting.
	LimiterMax        int
	LimiterExpiration time.Duration
	Metrics           *metrics.Metrics
}

func NewApp(h *Handlers, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             opts.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.NewMetricsMiddleware(opts.Metrics))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  opts.AllowOrigins,
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		ExposeHeaders: handler.ImportIDHeader,
	}))

	if opts.LimiterMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.LimiterMax,
			Expiration: opts.LimiterExpiration,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many requests. Try again later.",
					"code":  "RATE_LIMITED",
				})
			},
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("Inventory service is alive!")
	})

	RegisterRoutes(app, h)

	return app
}

func RegisterRoutes(app *fiber.App, h *Handlers) {
	product := app.Group("/api/products")

	product.Get("", h.Product.ListProducts)
	product.Post("", h.Product.Create)
	product.Get("/categories", h.Product.Categories)
	product.Get("/export", h.Catalog.Export)
	product.Post("/import", h.Catalog.Import)
	product.Get("/:id", h.Product.FindByID)
	product.Put("/:id", h.Product.Update)
	product.Delete("/:id", h.Product.DeleteProduct)
	product.Get("/:id/history", h.Product.History)
}
