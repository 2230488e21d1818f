package handlers

import (
	"strconv"

	"atendai/internal/models"
	"atendai/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ContextHandler exposes the conversation memory and enrichment API
type ContextHandler struct {
	memory     *services.ConversationMemoryService
	enrichment *services.ContextEnrichmentService
}

// NewContextHandler creates the handler
func NewContextHandler(memory *services.ConversationMemoryService, enrichment *services.ContextEnrichmentService) *ContextHandler {
	return &ContextHandler{memory: memory, enrichment: enrichment}
}

// GetContext returns the live conversation context for a phone
// GET /api/context/:phone
func (h *ContextHandler) GetContext(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if phone == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Phone is required"})
	}

	context := h.memory.GetContext(c.Context(), phone, c.Query("user_id"))
	return c.JSON(context)
}

// AddMessage ingests one message into a conversation
// POST /api/context/:phone/messages
func (h *ContextHandler) AddMessage(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if phone == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Phone is required"})
	}

	var req models.AddMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Role == "" || req.Content == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Role and content are required"})
	}
	switch req.Role {
	case models.RoleUser, models.RoleAssistant, models.RoleSystem:
	default:
		return c.Status(400).JSON(fiber.Map{"error": "Invalid role"})
	}

	msg := models.Message{
		Role:      req.Role,
		Content:   req.Content,
		Intent:    req.Intent,
		Sentiment: req.Sentiment,
		Metadata:  req.Metadata,
	}

	var context *models.ConversationContext
	if req.Persist != nil {
		context = h.memory.AddMessageWithPersistence(c.Context(), phone, msg, *req.Persist)
	} else {
		context = h.memory.AddMessage(c.Context(), phone, msg)
	}
	return c.JSON(context)
}

// GetEnrichedContext returns the enriched context composition
// GET /api/context/:phone/enriched
func (h *ContextHandler) GetEnrichedContext(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if phone == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Phone is required"})
	}

	opts := models.DefaultEnrichmentOptions()
	if depth := c.Query("depth"); depth != "" {
		switch depth {
		case models.DepthMinimal, models.DepthStandard, models.DepthDeep:
			opts.Depth = depth
		default:
			return c.Status(400).JSON(fiber.Map{"error": "Invalid depth"})
		}
	}
	opts.IncludeSubscription = c.QueryBool("subscription", true)
	opts.IncludeSupportHistory = c.QueryBool("support_history", true)
	opts.IncludeBehaviorAnalysis = c.QueryBool("behavior", true)
	opts.IncludeSessionData = c.QueryBool("session", true)

	enriched := h.enrichment.GetEnrichedContext(c.Context(), phone, c.Query("user_id"), &opts)
	return c.JSON(enriched)
}

// GenerateLLMContext returns the plain-text prompt synopsis
// GET /api/context/:phone/llm
func (h *ContextHandler) GenerateLLMContext(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if phone == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Phone is required"})
	}

	enriched := h.enrichment.GetEnrichedContext(c.Context(), phone, c.Query("user_id"), nil)
	return c.JSON(fiber.Map{
		"phone":   phone,
		"context": services.GenerateLLMContext(enriched),
	})
}

// GetFormattedHistory returns the trailing messages in generator shape
// GET /api/context/:phone/history
func (h *ContextHandler) GetFormattedHistory(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if phone == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Phone is required"})
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid limit"})
		}
		limit = parsed
	}

	history := h.memory.GetFormattedHistory(c.Context(), phone, limit)
	return c.JSON(fiber.Map{"phone": phone, "messages": history})
}

// GetConversationSummary returns the write-once or computed summary
// GET /api/context/:phone/summary
func (h *ContextHandler) GetConversationSummary(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if phone == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Phone is required"})
	}

	summary := h.memory.GetConversationSummary(c.Context(), phone)
	return c.JSON(fiber.Map{"phone": phone, "summary": summary})
}

// GetTopics returns the extracted conversation topics
// GET /api/context/:phone/topics
func (h *ContextHandler) GetTopics(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if phone == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Phone is required"})
	}

	topics := h.memory.GetTopics(c.Context(), phone)
	return c.JSON(fiber.Map{"phone": phone, "topics": topics})
}

// ClearContext invalidates the cached context for a phone
// DELETE /api/context/:phone
func (h *ContextHandler) ClearContext(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if phone == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Phone is required"})
	}

	h.memory.ClearContext(phone)
	return c.JSON(fiber.Map{"cleared": true, "phone": phone})
}

// GetCacheStats exposes the cache snapshot for operators
// GET /api/context/stats
func (h *ContextHandler) GetCacheStats(c *fiber.Ctx) error {
	return c.JSON(h.memory.GetCacheStats())
}
