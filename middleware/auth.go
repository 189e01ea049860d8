package middleware

import (
	"context"
	"log"

	"agent-bounty-market/models"
	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
)

const agentLocalsKey = "agent"

// AgentResolver turns an Authorization header into an agent.
type AgentResolver interface {
	ResolveHeader(ctx context.Context, header string) (*models.Agent, error)
	ResolveOptional(ctx context.Context, header string) *models.Agent
}

// RequireAgent rejects the request unless the bearer token resolves to an agent.
// When failures is set, every rejected credential counts against the client
// origin's TierAuthFailure budget, and a spent budget is answered with 429
// before the resolver runs.
func RequireAgent(resolver AgentResolver, failures Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		origin := ClientIdentifier(c)
		if d, spent := authBudgetSpent(failures, origin); spent {
			log.Printf("[AUTH] %s blocked after repeated credential failures", origin)
			return tooManyRequests(c, failures, d, "too many failed authentication attempts")
		}

		agent, err := resolver.ResolveHeader(c.UserContext(), header)
		if err != nil {
			if header != "" && failures != nil {
				failures.Allow(origin, services.TierAuthFailure)
			}
			log.Printf("[AUTH] rejected %s %s: %v", c.Method(), c.Path(), err)
			return Fail(c, err)
		}
		c.Locals(agentLocalsKey, agent)
		return c.Next()
	}
}

// OptionalAgent attaches the agent when the credential resolves and continues
// anonymously otherwise. A spent failure budget skips resolution entirely.
func OptionalAgent(resolver AgentResolver, failures Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}
		origin := ClientIdentifier(c)
		if _, spent := authBudgetSpent(failures, origin); spent {
			return c.Next()
		}
		if agent := resolver.ResolveOptional(c.UserContext(), header); agent != nil {
			c.Locals(agentLocalsKey, agent)
		} else if failures != nil {
			failures.Allow(origin, services.TierAuthFailure)
		}
		return c.Next()
	}
}

func authBudgetSpent(failures Limiter, origin string) (services.Decision, bool) {
	if failures == nil {
		return services.Decision{}, false
	}
	d := failures.Peek(origin, services.TierAuthFailure)
	return d, !d.Allowed
}

// CurrentAgent returns the authenticated agent, or nil on anonymous requests.
func CurrentAgent(c *fiber.Ctx) *models.Agent {
	agent, _ := c.Locals(agentLocalsKey).(*models.Agent)
	return agent
}
