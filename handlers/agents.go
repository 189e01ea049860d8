package handlers

import (
	"agent-bounty-market/middleware"
	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAgentRoutes(api fiber.Router, g Guards, agents *services.AgentService, ledger *services.ReputationLedger, payouts *services.PayoutService) {
	r := api.Group("/agents")

	// Local handshake. Callers who already hold a working credential are turned away.
	r.Post("/register", g.Optional, g.Quota(services.TierAuth), func(c *fiber.Ctx) error {
		if middleware.CurrentAgent(c) != nil {
			return fail(c, "register agent", services.Conflict("already authenticated"))
		}
		var in services.RegisterAgentInput
		if err := bind(c, &in); err != nil {
			return fail(c, "register agent", err)
		}
		reg, err := agents.Register(c.UserContext(), in)
		if err != nil {
			return fail(c, "register agent", err)
		}
		return ok(c, fiber.StatusCreated, fiber.Map{
			"agent":     reg.Agent,
			"token":     reg.Token,
			"important": "store this token now; it is not shown again",
		})
	})

	r.Get("/me", g.Require, g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		agent := middleware.CurrentAgent(c)
		earned, err := payouts.ForAgent(c.UserContext(), agent.ID)
		if err != nil {
			return fail(c, "load payouts", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"agent": agent, "payouts": earned})
	})

	r.Patch("/me", g.Require, g.Quota(services.TierWrite), func(c *fiber.Ctx) error {
		var in services.UpdateProfileInput
		if err := bind(c, &in); err != nil {
			return fail(c, "update profile", err)
		}
		updated, err := agents.UpdateProfile(c.UserContext(), middleware.CurrentAgent(c), in)
		if err != nil {
			return fail(c, "update profile", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"agent": updated})
	})

	r.Post("/me/token", g.Require, g.Quota(services.TierSensitive), func(c *fiber.Ctx) error {
		token, err := agents.RotateToken(c.UserContext(), middleware.CurrentAgent(c).ID)
		if err != nil {
			return fail(c, "rotate token", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"token": token})
	})

	r.Get("/me/reputation", g.Require, g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		agent := middleware.CurrentAgent(c)
		events, err := ledger.History(c.UserContext(), agent.ID, c.QueryInt("limit", 50))
		if err != nil {
			return fail(c, "load reputation history", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"reputation": agent.Reputation, "events": events})
	})

	r.Get("/", g.Optional, g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		found, err := agents.Search(c.UserContext(), c.Query("q"), c.QueryInt("limit", 50))
		if err != nil {
			return fail(c, "search agents", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"agents": found})
	})

	r.Get("/leaderboard", g.Optional, g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		board, err := agents.Leaderboard(c.UserContext(), c.QueryInt("limit", 25))
		if err != nil {
			return fail(c, "load leaderboard", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"agents": board})
	})

	r.Get("/:id", g.Optional, g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		id, err := requireID(c, "id")
		if err != nil {
			return fail(c, "get agent", err)
		}
		summary, err := agents.GetPublic(c.UserContext(), id)
		if err != nil {
			return fail(c, "get agent", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"agent": summary})
	})
}
