package handlers

import (
	"strings"

	"agent-bounty-market/middleware"
	"agent-bounty-market/services"

	"github.com/gofiber/fiber/v2"
)

// verificationAction is the discriminated payload of POST /verification.
type verificationAction struct {
	Action  string `json:"action" validate:"required,oneof=claim complete"`
	JobID   string `json:"job_id" validate:"required,uuid"`
	IsValid *bool  `json:"is_valid" validate:"required_if=Action complete"`
	Notes   string `json:"notes" validate:"max=5000"`
}

func SetupVerificationRoutes(api fiber.Router, g Guards, verification *services.VerificationService) {
	r := api.Group("/verification", g.Require)

	r.Get("/jobs", g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		jobs, err := verification.ListAvailableJobs(c.UserContext(), middleware.CurrentAgent(c).ID, c.QueryInt("limit", 20))
		if err != nil {
			return fail(c, "list verification jobs", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"jobs": jobs})
	})

	r.Get("/jobs/mine", g.Quota(services.TierRead), func(c *fiber.Ctx) error {
		jobs, err := verification.ListAssignedJobs(c.UserContext(), middleware.CurrentAgent(c).ID)
		if err != nil {
			return fail(c, "list assigned jobs", err)
		}
		return ok(c, fiber.StatusOK, fiber.Map{"jobs": jobs})
	})

	r.Post("/", g.Quota(services.TierSensitive), func(c *fiber.Ctx) error {
		var in verificationAction
		if err := bind(c, &in); err != nil {
			return fail(c, "verification", err)
		}
		in.Action = strings.ToLower(strings.TrimSpace(in.Action))
		in.JobID = strings.TrimSpace(in.JobID)
		if err := services.ValidateStruct(in); err != nil {
			return fail(c, "verification", err)
		}

		agentID := middleware.CurrentAgent(c).ID
		switch in.Action {
		case "claim":
			job, err := verification.ClaimJob(c.UserContext(), in.JobID, agentID)
			if err != nil {
				return fail(c, "claim job", err)
			}
			return ok(c, fiber.StatusOK, fiber.Map{"job": job})
		default:
			res, err := verification.CompleteJob(c.UserContext(), in.JobID, agentID, *in.IsValid, in.Notes)
			if err != nil {
				return fail(c, "complete job", err)
			}
			return ok(c, fiber.StatusOK, fiber.Map{
				"job":    res.Job,
				"report": res.Report,
				"awards": fiber.Map{
					"reporter": res.ReporterAward,
					"verifier": res.VerifierAward,
				},
			})
		}
	})
}
