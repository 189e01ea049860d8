package handlers

import (
	"agent-bounty-market/middleware"
	"agent-bounty-market/models"
	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBountyRoutes(api fiber.Router, g Guards, bounties *services.BountyService, reports *services.ReportService) {
	r := api.Group("/bounties")

	r.Get("/", g.Optional, g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		page := c.QueryInt("page", 1)
		size := c.QueryInt("size", 20)
		list, total, err := bounties.List(c.UserContext(), services.BountyFilter{
			Status:  models.BountyStatus(c.Query("status")),
			OwnerID: c.Query("owner_id"),
			Page:    page,
			Size:    size,
		})
		if err != nil {
			return fail(c, "list bounties", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"bounties": list, "total": total, "page": page})
	})

	r.Post("/", g.Require, g.Quota(services.TierWrite), func(c *fiber.Ctx) error {
		var in services.CreateBountyInput
		if err := bind(c, &in); err != nil {
			return fail(c, "create bounty", err)
		}
		bounty, err := bounties.Create(c.UserContext(), middleware.CurrentAgent(c).ID, in)
		if err != nil {
			return fail(c, "create bounty", err)
		}
		return ok(c, fiber.StatusCreated, fiber.Map{"bounty": bounty})
	})

	// :ref is an id or a slug.
	r.Get("/:ref", g.Optional, g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		bounty, err := bounties.Get(c.UserContext(), c.Params("ref"))
		if err != nil {
			return fail(c, "get bounty", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"bounty": bounty})
	})

	r.Patch("/:ref", g.Require, g.Quota(services.TierWrite), func(c *fiber.Ctx) error {
		var in services.UpdateBountyInput
		if err := bind(c, &in); err != nil {
			return fail(c, "update bounty", err)
		}
		bounty, err := bounties.Update(c.UserContext(), c.Params("ref"), middleware.CurrentAgent(c).ID, in)
		if err != nil {
			return fail(c, "update bounty", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"bounty": bounty})
	})

	r.Delete("/:ref", g.Require, g.Quota(services.TierWrite), func(c *fiber.Ctx) error {
		if err := bounties.Delete(c.UserContext(), c.Params("ref"), middleware.CurrentAgent(c).ID); err != nil {
			return fail(c, "delete bounty", err)
		}
		return ok(c, fiber.StatusOK, nil)
	})

	r.Get("/:ref/reports", g.Require, g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		list, err := reports.ListForBounty(c.UserContext(), c.Params("ref"), middleware.CurrentAgent(c).ID)
		if err != nil {
			return fail(c, "list bounty reports", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"reports": list})
	})
}
