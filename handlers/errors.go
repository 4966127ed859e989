// handlers/errors.go
package handlers

import (
	"errors"
	"strconv"

	"event-ranking-engine/services"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// respondError renders a service error with the matching status code.
func respondError(c *fiber.Ctx, err error) error {
	var ve *services.ValidationError
	var ce *services.ConfigurationError
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrScoresDisabled):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrProofRequired):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error(), "proof_required": true})
	case errors.Is(err, services.ErrThemeVotingClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &ce):
		log.WithError(err).WithField("path", c.Path()).Error("❌ [CONFIG] engine misconfigured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "engine misconfigured", "setting": ce.Setting})
	}

	log.WithError(err).WithField("path", c.Path()).Error("❌ request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// queryLimit reads ?limit=, falling back to def. Non-numeric values are ignored.
func queryLimit(c *fiber.Ctx, def int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 0 {
		return def
	}
	return limit
}
