package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/gestorhub/billing/internal/platform/errors"

	"github.com/gestorhub/billing/internal/usecase"
)

// PaymentHandler exposes single-payment synchronization, used by support
// tooling to force a refresh of one payment.
type PaymentHandler struct {
	logger *zap.Logger
	syncer usecase.PaymentSyncer
}

func NewPaymentHandler(logger *zap.Logger, syncer usecase.PaymentSyncer) *PaymentHandler {
	return &PaymentHandler{
		logger: logger,
		syncer: syncer,
	}
}

// GetPaymentStatus re-fetches the provider state for one payment and
// returns the resulting ledger row.
func (h *PaymentHandler) GetPaymentStatus(c echo.Context) error {
	paymentID := c.QueryParam("payment_id")
	if paymentID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_id is required"})
	}

	result, err := h.syncer.Sync(c.Request().Context(), paymentID, nil)
	if err != nil {
		code := apperrors.CodeOf(err)
		h.logger.Error("Payment status sync failed",
			zap.String("payment_id", paymentID),
			zap.String("code", code),
			zap.Error(err))
		return c.JSON(apperrors.HTTPStatus(code), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, result)
}
