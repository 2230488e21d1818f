package handlers

import (
	"time"

	"atendai/internal/services"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	memory *services.ConversationMemoryService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(memory *services.ConversationMemoryService) *HealthHandler {
	return &HealthHandler{memory: memory}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	stats := h.memory.GetCacheStats()
	return c.JSON(fiber.Map{
		"status":          "healthy",
		"cached_contexts": stats.Size,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}
