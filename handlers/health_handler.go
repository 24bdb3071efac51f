package handlers

import (
	"time"

	"github.com/fenilmodi00/govdash-backend/services"
	"github.com/gofiber/fiber/v2"
)

// HealthHandler serves liveness and cache counters.
type HealthHandler struct {
	Service *services.GovernanceService
}

func NewHealthHandler(service *services.GovernanceService) *HealthHandler {
	return &HealthHandler{Service: service}
}

func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	report := h.Service.HealthReport(c.UserContext())
	status := fiber.StatusOK
	if !report.Healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"success": report.Healthy,
		"data":    report,
	})
}

func (h *HealthHandler) GetCacheStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":   true,
		"data":      h.Service.CacheStats(),
		"timestamp": time.Now().Unix(),
	})
}
