package server

import (
	"errors"
	"strings"

	"gatehouse/internal/middleware"
	"gatehouse/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseUUID extracts a route parameter as a UUID.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// The message is derived from the parameter name ("id" -> "Invalid ID",
// "messageId" -> "Invalid message ID").
func parseUUID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil || id == uuid.Nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+paramLabel(param)))
		return uuid.Nil, errResponseWritten
	}
	return id, nil
}

func paramLabel(param string) string {
	name := strings.TrimSuffix(param, "Id")
	if name == "" || name == "id" || name == param {
		return "ID"
	}
	return strings.ToLower(name) + " ID"
}

// parseBodyID parses an optional UUID from a request body field. Empty means unset.
func parseBodyID(raw, field string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, models.NewValidationError("Invalid " + field)
	}
	return id, nil
}

// currentParticipant returns the authenticated participant id set by AuthRequired.
func currentParticipant(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.ParticipantID(c)
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
		return uuid.Nil, errResponseWritten
	}
	return id, nil
}
