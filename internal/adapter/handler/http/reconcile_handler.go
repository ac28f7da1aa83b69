package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/gestorhub/billing/internal/usecase"
)

// ReconcileHandler triggers the reconciliation sweep on demand.
type ReconcileHandler struct {
	logger    *zap.Logger
	reconcile *usecase.ReconcileService
}

func NewReconcileHandler(logger *zap.Logger, reconcile *usecase.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{
		logger:    logger,
		reconcile: reconcile,
	}
}

// Reconcile runs a sweep over payments still pending inside the lookback
// window. The "dias" query parameter selects the window in days; it is
// clamped to [1, 90] and defaults when absent or malformed.
func (h *ReconcileHandler) Reconcile(c echo.Context) error {
	days := 0
	if raw := c.QueryParam("dias"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.logger.Warn("Invalid dias parameter, using default", zap.String("dias", raw))
		} else {
			days = parsed
		}
	}

	report, err := h.reconcile.Reconcile(c.Request().Context(), days)
	if err != nil {
		h.logger.Error("Reconciliation sweep failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reconciliation failed"})
	}

	return c.JSON(http.StatusOK, report)
}
