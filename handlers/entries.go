// handlers/entries.go
package handlers

import (
	"event-ranking-engine/middleware"
	"event-ranking-engine/models"

	"github.com/gofiber/fiber/v2"
)

const defaultScoresPageSize = 50

func SetupEntryRoutes(app fiber.Router, secured fiber.Router, admin fiber.Router, svc Services) {
	// 🔓 Leaderboard
	app.Get("/entries/:entry_id/scores", func(c *fiber.Ctx) error {
		scores, err := svc.HighScores.FindEntryScores(c.UserContext(), c.Params("entry_id"), queryLimit(c, defaultScoresPageSize))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(scores)
	})

	// 🔐 Scores, ratings and karma
	secured.Get("/entries/:entry_id/scores/mine", func(c *fiber.Ctx) error {
		score, err := svc.HighScores.FindUserScore(c.UserContext(), middleware.UserID(c), c.Params("entry_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(score)
	})

	secured.Post("/entries/:entry_id/scores", func(c *fiber.Ctx) error {
		var body struct {
			Score float64 `json:"score"`
			Proof string  `json:"proof"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid score format")
		}
		entry, err := loadEntry(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		submission := &models.EntryScore{UserID: middleware.UserID(c), Score: body.Score, Proof: body.Proof}
		saved, err := svc.HighScores.SubmitEntryScore(c.UserContext(), submission, entry)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(saved)
	})

	secured.Put("/entries/:entry_id/votes", func(c *fiber.Ctx) error {
		var body struct {
			Votes []float64 `json:"votes"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		entry, err := loadEntry(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.Ratings.SaveEntryVote(c.UserContext(), middleware.UserID(c), entry, body.Votes); err != nil {
			return respondError(c, err)
		}
		return c.JSON(entry.Details)
	})

	secured.Post("/entries/:entry_id/karma", func(c *fiber.Ctx) error {
		entry, err := loadEntry(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		event, err := loadEventByID(c, svc, entry.EventID)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.Karma.RefreshEntryKarma(c.UserContext(), entry, event, false); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"entry_id": entry.ID, "feedback_score": entry.FeedbackScore})
	})

	// 🔒 Moderation
	admin.Patch("/scores/:score_id", func(c *fiber.Ctx) error {
		var body struct {
			Active *bool `json:"active"`
		}
		if err := c.BodyParser(&body); err != nil || body.Active == nil {
			return badRequest(c, "active is required")
		}
		if err := svc.HighScores.SetEntryScoreActive(c.UserContext(), c.Params("score_id"), *body.Active); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin.Delete("/scores/:score_id", func(c *fiber.Ctx) error {
		if err := svc.HighScores.DeleteEntryScore(c.UserContext(), c.Params("score_id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin.Delete("/entries/:entry_id/scores", func(c *fiber.Ctx) error {
		entry, err := loadEntry(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.HighScores.DeleteAllEntryScores(c.UserContext(), entry); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin.Post("/entries/:entry_id/rankings/refresh", func(c *fiber.Ctx) error {
		entry, err := loadEntry(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.HighScores.RefreshEntryRankings(c.UserContext(), entry); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin.Post("/entries/:entry_id/ratings/refresh", func(c *fiber.Ctx) error {
		entry, err := loadEntry(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.Ratings.RefreshEntryRatings(c.UserContext(), entry); err != nil {
			return respondError(c, err)
		}
		return c.JSON(entry.Details)
	})

	admin.Post("/events/:event_id/results", func(c *fiber.Ctx) error {
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.Ratings.ComputeEventRankings(c.UserContext(), event); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
