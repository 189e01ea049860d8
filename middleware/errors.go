package middleware

import (
	"errors"

	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindUnauthorized:
		return fiber.StatusUnauthorized
	case services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindConflict:
		return fiber.StatusConflict
	case services.KindRateLimited:
		return fiber.StatusTooManyRequests
	case services.KindUpstream:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// Fail writes the standard error body for err. Internal details are never sent.
func Fail(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	body := fiber.Map{"success": false}

	var se *services.Error
	switch {
	case status == fiber.StatusInternalServerError:
		body["error"] = "internal server error"
	case errors.As(err, &se):
		body["error"] = se.Message
		if len(se.Issues) > 0 {
			body["issues"] = se.Issues
		}
		if se.UpstreamStatus != 0 {
			body["upstream_status"] = se.UpstreamStatus
		}
	default:
		body["error"] = err.Error()
	}
	return c.Status(status).JSON(body)
}
