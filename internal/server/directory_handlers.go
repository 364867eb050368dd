package server

import (
	"strings"

	"gatehouse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListGuards handles GET /api/guard-messages/security-list
func (s *Server) ListGuards(c *fiber.Ctx) error {
	guards, err := s.directory.ListGuards(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(guards)
}

// ListResidents handles GET /api/guard-messages/tenant-list?search=
func (s *Server) ListResidents(c *fiber.Ctx) error {
	residents, err := s.directory.ListResidents(c.UserContext(), strings.TrimSpace(c.Query("search")))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(residents)
}
