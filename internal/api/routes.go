package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/nightdriverserver/nightdriverserver/internal/api/middleware"
)

// SetupRoutes registers every operator-facing route on app. jwtConfig's
// AllowedRoles gates the shutdown endpoint for interactive operators;
// apiKeyStore lets unattended automation (deploy scripts, cron jobs)
// trigger the same endpoint with a long-lived key carrying the
// "shutdown" permission instead of a session JWT. A zero JWTConfig (no
// SecretKey, no AllowedRoles) still requires a bearer token, but checks it
// against the built-in default signing key and accepts any role.
func SetupRoutes(app *fiber.App, svc *Service, jwtConfig middleware.JWTConfig, apiKeyStore *middleware.APIKeyStore) {
	app.Get("/healthz", svc.healthCheck)

	v1 := app.Group("/api/v1")
	v1.Get("/status", svc.getStatus)

	v1.Post("/shutdown", middleware.CombinedAuthMiddleware(jwtConfig, apiKeyStore, []string{"shutdown"}), svc.shutdown)

	app.Use("/ws/status", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(svc.wsHub.HandleWebSocket))
}
