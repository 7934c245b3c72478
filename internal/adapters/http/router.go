package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/membermap/membermap/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())

	// Resolve X-Client-ID before anything logs it
	app.Use(ClientIDMiddleware())

	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited",
				"too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 15s per-request timeout
	v1 := app.Group("/v1")

	v1.Get("/map", timeout.NewWithContext(GetMapHandler(deps), requestTimeout))
	v1.Get("/map/layers", timeout.NewWithContext(MapLayersHandler(deps), requestTimeout))
	v1.Get("/map/geojson", timeout.NewWithContext(MapGeoJSONHandler(deps), requestTimeout))
	v1.Post("/map/center", timeout.NewWithContext(CenterMapHandler(deps), requestTimeout))
	v1.Post("/map/reload", timeout.NewWithContext(ReloadMapHandler(deps), requestTimeout))
	v1.Post("/map/export", timeout.NewWithContext(ExportMapHandler(deps), requestTimeout))

	v1.Get("/preferences", timeout.NewWithContext(GetPreferencesHandler(deps), requestTimeout))
	v1.Post("/preferences/theme/toggle", timeout.NewWithContext(ToggleThemeHandler(deps), requestTimeout))
	v1.Post("/preferences/view/toggle", timeout.NewWithContext(ToggleViewHandler(deps), requestTimeout))

	v1.Get("/search", timeout.NewWithContext(SearchHandler(deps), requestTimeout))
	v1.Post("/search/select", timeout.NewWithContext(SelectSearchResultHandler(deps), requestTimeout))

	v1.Get("/tour", timeout.NewWithContext(GetTourHandler(deps), requestTimeout))
	v1.Post("/tour/start", timeout.NewWithContext(StartTourHandler(deps), requestTimeout))
	v1.Post("/tour/next", timeout.NewWithContext(NextTourStepHandler(deps), requestTimeout))
	v1.Post("/tour/exit", timeout.NewWithContext(ExitTourHandler(deps), requestTimeout))

	v1.Get("/members", timeout.NewWithContext(ListMembersHandler(deps), requestTimeout))
	v1.Get("/members/:id", timeout.NewWithContext(GetMemberHandler(deps), requestTimeout))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, DefaultSpecPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
