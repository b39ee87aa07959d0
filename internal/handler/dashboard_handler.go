package handler

import (
	"strconv"

	"go-pos-api/internal/service"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	service service.DashboardService
}

func NewDashboardHandler(s service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

func days(c *fiber.Ctx) int {
	days, err := strconv.Atoi(c.Query("days", "7"))
	if err != nil || days <= 0 {
		days = 7
	}
	return days
}

// GetStockMovement returns stock movement data for charts
// Query params: days (default 7)
func (h *DashboardHandler) GetStockMovement(c *fiber.Ctx) error {
	period := days(c)
	data, err := h.service.GetStockMovement(c.UserContext(), actor(c).TenantID, period)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"period": period,
		"data":   data,
	})
}

// GetDashboardStats returns overview statistics
func (h *DashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := h.service.GetDashboardStats(c.UserContext(), actor(c).TenantID, days(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}
