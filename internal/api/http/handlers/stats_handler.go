package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/service"
)

// StatsHandler serves pipeline statistics.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: statsService}
}

// GetStats GET /api/stats.
func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.stats.Compute(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsResponse{
		Marketing: stats.Marketing,
		Sales:     stats.Sales,
		Orders:    stats.Orders,
		Support:   stats.Support,
		Total:     stats.Total,
	}})
}
