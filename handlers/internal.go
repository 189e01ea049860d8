package handlers

import (
	"agent-bounty-market/middleware"
	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// QuotaAdmin is the inspection side of the quota guard.
type QuotaAdmin interface {
	Stats() services.QuotaStats
	Sweep() int
}

func SetupInternalRoutes(app *fiber.App, serviceToken string, quota QuotaAdmin) {
	r := app.Group("/internal", middleware.ServiceTokenAuth(serviceToken))

	r.Get("/quota", func(c *fiber.Ctx) error {
		return ok(c, fiber.StatusOK, fiber.Map{"quota": quota.Stats()})
	})

	r.Post("/quota/sweep", func(c *fiber.Ctx) error {
		return ok(c, fiber.StatusOK, fiber.Map{"removed": quota.Sweep()})
	})
}

func SetupHealthRoutes(app *fiber.App, db *gorm.DB) {
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "status": "database unavailable"})
		}
		return ok(c, fiber.StatusOK, fiber.Map{"status": "ok"})
	})
}
