package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/groupmap/internal/core/geolocate"
	"github.com/samirrijal/groupmap/internal/pkg/metrics"
)

// legacySunset is when the unversioned aliases stop being served.
var legacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// The map page is served from another origin
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,OPTIONS",
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		Next: func(c *fiber.Ctx) bool {
			return websocket.IsWebSocketUpgrade(c)
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness, no timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 15s per-request timeout
	geolocateH := timeout.NewWithContext(GeolocateHandler(deps), 15*time.Second)
	invNearbyH := timeout.NewWithContext(NearbyHandler(deps, geolocate.NearbyInvolvements), 15*time.Second)
	sgNearbyH := timeout.NewWithContext(NearbyHandler(deps, geolocate.NearbySmallGroups), 15*time.Second)

	v1 := app.Group("/v1")
	v1.Get("/geolocate", geolocateH)
	v1.Get("/inv/nearby", invNearbyH)
	v1.Get("/sg/nearby", sgNearbyH)
	v1.Get("/inv/:type/items", timeout.NewWithContext(ListItemsHandler(deps), 15*time.Second))
	v1.Get("/inv/:type/markers.geojson", timeout.NewWithContext(MarkersGeoJSONHandler(deps), 15*time.Second))
	v1.Get("/items/:id", timeout.NewWithContext(GetItemHandler(deps), 15*time.Second))
	v1.Get("/sync/status", timeout.NewWithContext(SyncStatusHandler(deps), 15*time.Second))

	// Unversioned aliases kept for pages embedding the old paths
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/geolocate", SunsetDate: legacySunset, Alternative: "/v1/geolocate"},
		{Path: "/inv/nearby", SunsetDate: legacySunset, Alternative: "/v1/inv/nearby"},
		{Path: "/sg/nearby", SunsetDate: legacySunset, Alternative: "/v1/sg/nearby"},
	}))
	app.Get("/geolocate", geolocateH)
	app.Get("/inv/nearby", invNearbyH)
	app.Get("/sg/nearby", sgNearbyH)

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.SpecPath)

	// WebSocket map sessions
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/map", MapSessionUpgrade(deps), websocket.New(MapSessionHandler(deps)))
}
