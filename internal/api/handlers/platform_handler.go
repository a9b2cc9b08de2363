package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postify/internal/platform"
)

type PlatformHandler struct {
	registry *platform.Registry
}

func NewPlatformHandler(registry *platform.Registry) *PlatformHandler {
	return &PlatformHandler{registry: registry}
}

func (h *PlatformHandler) ListPlatforms(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"platforms": h.registry.All(),
	})
}
