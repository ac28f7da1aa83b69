package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
)

const defaultEventListLimit = 50

// WebhookEventsHandler exposes the inbound notification audit trail for
// debugging delivery issues.
type WebhookEventsHandler struct {
	logger *zap.Logger
	events domainRepo.WebhookEventRepository
}

func NewWebhookEventsHandler(logger *zap.Logger, events domainRepo.WebhookEventRepository) *WebhookEventsHandler {
	return &WebhookEventsHandler{
		logger: logger,
		events: events,
	}
}

// ListEvents returns the most recent webhook events, newest first.
func (h *WebhookEventsHandler) ListEvents(c echo.Context) error {
	limit := defaultEventListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.events.ListRecent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list webhook events", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list events"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"events": events,
		"count":  len(events),
	})
}
