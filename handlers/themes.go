// handlers/themes.go
package handlers

import (
	"time"

	"event-ranking-engine/middleware"
	"event-ranking-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupThemeRoutes(app fiber.Router, secured fiber.Router, admin fiber.Router, svc Services) {
	// 🔓 Shortlist countdown and final tally
	app.Get("/events/:event_id/themes/shortlist", func(c *fiber.Ctx) error {
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		view, err := svc.Shortlist.AdvanceElimination(c.UserContext(), event, time.Now())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	app.Get("/events/:event_id/themes/results", func(c *fiber.Ctx) error {
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		results, err := svc.Shortlist.FindShortlistResults(c.UserContext(), event)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(results)
	})

	// 🔐 Idea submission and voting
	secured.Get("/events/:event_id/themes/mine", func(c *fiber.Ctx) error {
		themes, err := svc.Themes.FindUserThemes(c.UserContext(), middleware.UserID(c), c.Params("event_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(themes)
	})

	secured.Put("/events/:event_id/themes/mine", func(c *fiber.Ctx) error {
		var body struct {
			Ideas []services.ThemeIdea `json:"ideas"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		userID := middleware.UserID(c)
		if err := svc.Themes.SaveThemeIdeas(c.UserContext(), userID, event, body.Ideas); err != nil {
			return respondError(c, err)
		}
		themes, err := svc.Themes.FindUserThemes(c.UserContext(), userID, event.ID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(themes)
	})

	secured.Get("/events/:event_id/themes/to-vote", func(c *fiber.Ctx) error {
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		themes, err := svc.Themes.FindThemesToVoteOn(c.UserContext(), middleware.UserID(c), event)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(themes)
	})

	secured.Post("/events/:event_id/themes/:theme_id/vote", func(c *fiber.Ctx) error {
		var body struct {
			Score int `json:"score"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.Themes.SaveVote(c.UserContext(), middleware.UserID(c), event, c.Params("theme_id"), body.Score); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	secured.Put("/events/:event_id/themes/shortlist/ballot", func(c *fiber.Ctx) error {
		var body struct {
			Scores map[string]int `json:"scores"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.Shortlist.SaveShortlistVotes(c.UserContext(), middleware.UserID(c), event, body.Scores); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// 🔒 Moderation
	admin.Get("/events/:event_id/themes/best", func(c *fiber.Ctx) error {
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		themes, err := svc.Shortlist.FindBestThemes(c.UserContext(), event, queryLimit(c, 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(themes)
	})

	admin.Post("/events/:event_id/themes/shortlist", func(c *fiber.Ctx) error {
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		shortlist, err := svc.Shortlist.ComputeShortlist(c.UserContext(), event)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(shortlist)
	})

	admin.Post("/events/:event_id/themes/shortlist/elimination", func(c *fiber.Ctx) error {
		var body struct {
			StartAt *time.Time `json:"start_at"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return badRequest(c, "invalid request body")
			}
		}
		startAt := time.Now()
		if body.StartAt != nil {
			startAt = *body.StartAt
		}
		event, err := loadEvent(c, svc.DB)
		if err != nil {
			return respondError(c, err)
		}
		if err := svc.Shortlist.StartElimination(c.UserContext(), event, startAt); err != nil {
			return respondError(c, err)
		}
		return c.JSON(event)
	})

	admin.Post("/themes/:theme_id/ban", func(c *fiber.Ctx) error {
		if err := svc.Themes.BanTheme(c.UserContext(), c.Params("theme_id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
