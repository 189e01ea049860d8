package handlers

import (
	"agent-bounty-market/middleware"
	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
)

// Guards bundles the auth and quota middleware shared by every route group.
type Guards struct {
	Require  fiber.Handler
	Optional fiber.Handler
	limiter  middleware.Limiter
}

func NewGuards(resolver middleware.AgentResolver, limiter middleware.Limiter) Guards {
	return Guards{
		Require:  middleware.RequireAgent(resolver, limiter),
		Optional: middleware.OptionalAgent(resolver, limiter),
		limiter:  limiter,
	}
}

// Quota counts the request against tier.
func (g Guards) Quota(tier services.Tier) fiber.Handler {
	return middleware.Quota(g.limiter, tier)
}
