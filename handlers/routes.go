// handlers/routes.go
package handlers

import (
	"event-ranking-engine/middleware"
	"event-ranking-engine/models"
	"event-ranking-engine/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Services groups everything the HTTP layer calls into.
type Services struct {
	DB          *gorm.DB
	Settings    *services.SettingsService
	Karma       *services.KarmaService
	Ratings     *services.RatingService
	Themes      *services.ThemeService
	Shortlist   *services.ThemeShortlistService
	HighScores  *services.HighScoreService
	Tournaments *services.TournamentService
}

// Setup registers every route. Public reads live at the root, user actions
// under /s and moderation under /s/admin.
func Setup(app *fiber.App, svc Services) {
	secured := app.Group("/s", middleware.UserContextMiddleware())
	admin := secured.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))

	SetupThemeRoutes(app, secured, admin, svc)
	SetupEntryRoutes(app, secured, admin, svc)
	SetupTournamentRoutes(app, admin, svc)
	SetupSettingsRoutes(admin, svc.Settings)
}

func loadEvent(c *fiber.Ctx, db *gorm.DB) (*models.Event, error) {
	return services.FindEvent(c.UserContext(), db, c.Params("event_id"))
}

func loadEntry(c *fiber.Ctx, db *gorm.DB) (*models.Entry, error) {
	return services.FindEntry(c.UserContext(), db, c.Params("entry_id"))
}

func loadEventByID(c *fiber.Ctx, svc Services, id string) (*models.Event, error) {
	return services.FindEvent(c.UserContext(), svc.DB, id)
}
