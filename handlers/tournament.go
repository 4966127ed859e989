// handlers/tournament.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app fiber.Router, admin fiber.Router, svc Services) {
	// 🔓 Tournament leaderboard
	app.Get("/events/:event_id/tournament/scores", func(c *fiber.Ctx) error {
		scores, err := svc.Tournaments.FindTournamentScores(c.UserContext(), c.Params("event_id"), queryLimit(c, 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(scores)
	})

	// 🔒 Tournament membership
	admin.Post("/events/:event_id/tournament/entries", func(c *fiber.Ctx) error {
		var body struct {
			EntryID string `json:"entry_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.EntryID == "" {
			return badRequest(c, "entry_id is required")
		}
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.Tournaments.AddEntry(c.UserContext(), event, body.EntryID); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin.Delete("/events/:event_id/tournament/entries/:entry_id", func(c *fiber.Ctx) error {
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.Tournaments.RemoveEntry(c.UserContext(), event, c.Params("entry_id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin.Post("/events/:event_id/tournament/recalculate", func(c *fiber.Ctx) error {
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.Tournaments.RecalculateAllScores(c.UserContext(), event); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
