// handlers/settings.go
package handlers

import (
	"strconv"

	"event-ranking-engine/config"
	"event-ranking-engine/services"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

var editableSettings = map[string]bool{
	services.SettingMinRatingVotes:     true,
	services.SettingMaxCategoryCount:   true,
	services.SettingShortlistSize:      true,
	services.SettingEliminationMinutes: true,
	services.SettingPointsDistribution: true,
	services.SettingHighScoreProofTop:  true,
}

func SetupSettingsRoutes(admin fiber.Router, settings *services.SettingsService) {
	admin.Put("/settings/:key", func(c *fiber.Ctx) error {
		key := c.Params("key")
		if !editableSettings[key] {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown setting"})
		}
		var body struct {
			Value string `json:"value"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		if err := checkSettingValue(key, body.Value); err != nil {
			return badRequest(c, err.Error())
		}
		if err := settings.Set(c.UserContext(), key, body.Value); err != nil {
			return respondError(c, err)
		}
		log.WithFields(log.Fields{"key": key, "value": body.Value}).Info("⚙️ [SETTINGS] override saved")
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func checkSettingValue(key, value string) error {
	if key == services.SettingPointsDistribution {
		_, err := config.ParsePointsDistribution(value)
		return err
	}
	_, err := strconv.Atoi(value)
	return err
}
