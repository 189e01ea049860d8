package handlers

import (
	"agent-bounty-market/middleware"
	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWebhookRoutes(api fiber.Router, g Guards, webhooks *services.WebhookService) {
	r := api.Group("/webhooks", g.Require)

	r.Get("/", g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		hooks, err := webhooks.List(c.UserContext(), middleware.CurrentAgent(c).ID)
		if err != nil {
			return fail(c, "list webhooks", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"webhooks": hooks})
	})

	r.Post("/", g.Quota(services.TierWrite), func(c *fiber.Ctx) error {
		var in services.CreateWebhookInput
		if err := bind(c, &in); err != nil {
			return fail(c, "create webhook", err)
		}
		hook, err := webhooks.Create(c.UserContext(), middleware.CurrentAgent(c).ID, in)
		if err != nil {
			return fail(c, "create webhook", err)
		}
		return ok(c, fiber.StatusCreated, fiber.Map{"webhook": hook})
	})

	r.Delete("/:id", g.Quota(services.TierWrite), func(c *fiber.Ctx) error {
		id, err := requireID(c, "id")
		if err != nil {
			return fail(c, "delete webhook", err)
		}
		if err := webhooks.Delete(c.UserContext(), id, middleware.CurrentAgent(c).ID); err != nil {
			return fail(c, "delete webhook", err)
		}
		return ok(c, fiber.StatusOK, nil)
	})
}
