package middleware

import (
	"strconv"
	"strings"
	"time"

	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
)

// Limiter is the part of the quota guard the middleware needs.
type Limiter interface {
	Allow(identifier string, tier services.Tier) services.Decision
	Peek(identifier string, tier services.Tier) services.Decision
	Now() time.Time
}

// Quota counts the request against tier and rejects it with 429 once the
// identifier's window is spent. Mount it after the auth middleware so
// authenticated callers are keyed by agent id.
func Quota(limiter Limiter, tier services.Tier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := ClientIdentifier(c)
		d := limiter.Allow(id, tier)

		c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			return tooManyRequests(c, limiter, d, "rate limit exceeded")
		}
		return c.Next()
	}
}

func tooManyRequests(c *fiber.Ctx, limiter Limiter, d services.Decision, msg string) error {
	retry := d.RetryAfter(limiter.Now())
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"success":             false,
		"error":               msg,
		"retry_after_seconds": retry,
	})
}

// ClientIdentifier keys quota windows: the agent id when authenticated, else
// the client address reported by the proxy, else a shared unknown bucket.
func ClientIdentifier(c *fiber.Ctx) string {
	if agent := CurrentAgent(c); agent != nil {
		return "agent:" + agent.ID
	}
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return "ip:" + first
		}
	}
	if realIP := strings.TrimSpace(c.Get("X-Real-IP")); realIP != "" {
		return "ip:" + realIP
	}
	return "ip:unknown"
}
