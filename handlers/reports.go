package handlers

import (
	"agent-bounty-market/middleware"
	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReportRoutes(api fiber.Router, g Guards, reports *services.ReportService, payouts *services.PayoutService) {
	r := api.Group("/reports")

	r.Post("/", g.Require, g.Quota(services.TierWrite), func(c *fiber.Ctx) error {
		var in services.SubmitReportInput
		if err := bind(c, &in); err != nil {
			return fail(c, "submit report", err)
		}
		report, job, err := reports.Submit(c.UserContext(), middleware.CurrentAgent(c).ID, in)
		if err != nil {
			return fail(c, "submit report", err)
		}
		return ok(c, fiber.StatusCreated, fiber.Map{"report": report, "job": job})
	})

	r.Get("/mine", g.Require, g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		list, err := reports.ListMine(c.UserContext(), middleware.CurrentAgent(c).ID, c.QueryInt("page", 1), c.QueryInt("size", 20))
		if err != nil {
			return fail(c, "list my reports", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"reports": list})
	})

	r.Get("/:id", g.Require, g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		id, err := requireID(c, "id")
		if err != nil {
			return fail(c, "get report", err)
		}
		detail, err := reports.Get(c.UserContext(), id, middleware.CurrentAgent(c).ID)
		if err != nil {
			return fail(c, "get report", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{
			"report":      detail.Report,
			"job":         detail.Job,
			"attachments": detail.Attachments,
		})
	})

	r.Post("/:id/attachments", g.Require, g.Quota(services.TierWrite), func(c *fiber.Ctx) error {
		id, err := requireID(c, "id")
		if err != nil {
			return fail(c, "upload evidence", err)
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return fail(c, "upload evidence", services.Invalid(services.FieldIssue{Field: "file", Rule: "required", Message: "file is required"}))
		}
		file, err := fh.Open()
		if err != nil {
			return fail(c, "upload evidence", err)
		}
		defer file.Close()

		attachment, err := reports.AddAttachment(c.UserContext(), id, middleware.CurrentAgent(c).ID,
			fh.Filename, fh.Header.Get(fiber.HeaderContentType), fh.Size, file)
		if err != nil {
			return fail(c, "upload evidence", err)
		}
		return ok(c, fiber.StatusCreated, fiber.Map{"attachment": attachment})
	})

	r.Post("/:id/payout", g.Require, g.Quota(services.TierSensitive), func(c *fiber.Ctx) error {
		id, err := requireID(c, "id")
		if err != nil {
			return fail(c, "claim payout", err)
		}
		payout, err := payouts.Claim(c.UserContext(), id, middleware.CurrentAgent(c).ID)
		if err != nil {
			return fail(c, "claim payout", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"payout": payout})
	})
}
