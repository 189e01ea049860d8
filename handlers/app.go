package handlers

import (
	"strings"

	"agent-bounty-market/middleware"
	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer is built from.
type Deps struct {
	DB             *gorm.DB
	Resolver       middleware.AgentResolver
	Quota          *services.QuotaGuard
	Agents         *services.AgentService
	Bounties       *services.BountyService
	Reports        *services.ReportService
	Verification   *services.VerificationService
	Ledger         *services.ReputationLedger
	Payouts        *services.PayoutService
	Webhooks       *services.WebhookService
	AllowedOrigins []string
	InternalToken  string
	// UploadsDir is served under /uploads when evidence is kept on local disk.
	UploadsDir string
}

func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: services.MaxAttachmentSize + 1<<20,
		AppName:   "agent-bounty-market",
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(d.AllowedOrigins, ","),
		AllowMethods:  "GET,POST,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token",
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After",
		MaxAge:        86400,
	}))

	if d.UploadsDir != "" {
		app.Static("/uploads", d.UploadsDir)
	}

	SetupHealthRoutes(app, d.DB)
	SetupInternalRoutes(app, d.InternalToken, d.Quota)

	g := NewGuards(d.Resolver, d.Quota)
	api := app.Group("/api/v1")
	SetupAgentRoutes(api, g, d.Agents, d.Ledger, d.Payouts)
	SetupBountyRoutes(api, g, d.Bounties, d.Reports)
	SetupReportRoutes(api, g, d.Reports, d.Payouts)
	SetupVerificationRoutes(api, g, d.Verification)
	SetupWebhookRoutes(api, g, d.Webhooks)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "route not found"})
	})
	return app
}
