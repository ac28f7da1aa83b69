package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/gestorhub/billing/internal/usecase"
)

// SubscriptionHandler exposes read access to a tenant's subscription.
type SubscriptionHandler struct {
	logger        *zap.Logger
	subscriptions *usecase.SubscriptionService
}

func NewSubscriptionHandler(logger *zap.Logger, subscriptions *usecase.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		logger:        logger,
		subscriptions: subscriptions,
	}
}

// GetCurrentSubscription returns the tenant's non-cancelled subscription.
func (h *SubscriptionHandler) GetCurrentSubscription(c echo.Context) error {
	tenantID, err := uuid.Parse(c.QueryParam("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id must be a valid uuid"})
	}

	sub, err := h.subscriptions.CurrentForTenant(c.Request().Context(), tenantID)
	if err != nil {
		h.logger.Error("Failed to load current subscription",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load subscription"})
	}
	if sub == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active subscription"})
	}

	return c.JSON(http.StatusOK, sub)
}
