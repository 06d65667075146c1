package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/nightdriverserver/nightdriverserver/internal/status"
)

// healthCheck reports the process-wide health rollup: healthy unless any
// registered check (memory, goroutine count, any site's render loop) is
// degraded or unhealthy.
func (s *Service) healthCheck(c *fiber.Ctx) error {
	results := s.health.RunChecks(context.Background())
	overall := s.health.GetOverallStatus()

	code := fiber.StatusOK
	if overall != "healthy" {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status": overall,
		"checks": results,
	})
}

// getStatus returns a single Snapshot of every site's current state,
// plus the number of clients currently attached to /ws/status.
func (s *Service) getStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"snapshot":   status.Collect(s.reg),
		"ws_clients": s.wsHub.GetClientCount(),
	})
}

// shutdown triggers a graceful process exit, equivalent to an operator
// touching the configured sentinel file. Requires either a JWT carrying
// one of the configured roles or an API key with the "shutdown"
// permission (enforced by the route's middleware, not here).
func (s *Service) shutdown(c *fiber.Ctx) error {
	s.log.Infow("shutdown requested via operator API", "remote_addr", c.IP())
	go s.stopper()
	return c.JSON(fiber.Map{"message": "shutdown initiated"})
}
