package handlers

import (
	"encoding/json"
	"errors"
	"log"

	"agent-bounty-market/middleware"
	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ok writes {"success": true, ...payload}.
func ok(c *fiber.Ctx, status int, payload fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// fail logs unexpected errors with the action and caller, then writes the error body.
func fail(c *fiber.Ctx, action string, err error) error {
	if middleware.StatusFor(err) >= fiber.StatusInternalServerError {
		caller := "anonymous"
		if agent := middleware.CurrentAgent(c); agent != nil {
			caller = agent.ID
		}
		log.Printf("[HTTP] %s failed (%s %s, agent %s, params %v): %v", action, c.Method(), c.Path(), caller, c.AllParams(), err)
	}
	return middleware.Fail(c, err)
}

// bind decodes a JSON body, reporting malformed input as a validation failure.
func bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr):
			return services.Invalid(services.FieldIssue{Field: typeErr.Field, Rule: "type", Message: typeErr.Field + " has the wrong type"})
		case errors.As(err, &syntaxErr):
			return services.Invalid(services.FieldIssue{Field: "body", Rule: "json", Message: "request body is not valid JSON"})
		}
		return services.Invalid(services.FieldIssue{Field: "body", Rule: "json", Message: "request body could not be parsed"})
	}
	return nil
}

// requireID validates a path parameter as a UUID before any store access.
func requireID(c *fiber.Ctx, name string) (string, error) {
	id := c.Params(name)
	if _, err := uuid.Parse(id); err != nil {
		return "", services.Invalid(services.FieldIssue{Field: name, Rule: "uuid", Message: name + " must be a valid UUID"})
	}
	return id, nil
}
