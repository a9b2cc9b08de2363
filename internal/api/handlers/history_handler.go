package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postify/internal/service"
)

type HistoryHandler struct {
	s service.HistoryService
}

func NewHistoryHandler(service service.HistoryService) *HistoryHandler {
	return &HistoryHandler{s: service}
}

func (h *HistoryHandler) ListHistory(c *fiber.Ctx) error {
	userID := GetUserID(c)

	records, err := h.s.List(c.Context(), userID, c.QueryInt("limit", 50))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"posts": records,
	})
}
