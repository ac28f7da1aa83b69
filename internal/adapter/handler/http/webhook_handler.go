package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/gestorhub/billing/internal/domain/model"
	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
	"github.com/gestorhub/billing/internal/usecase"
)

// WebhookHandler ingests provider payment notifications. Every event is
// audited; only payment events with a resolvable id run the pipeline. The
// endpoint always acknowledges with 200 once the event is recorded, so
// the provider never retries an event we already hold.
type WebhookHandler struct {
	logger          *zap.Logger
	syncer          usecase.PaymentSyncer
	events          domainRepo.WebhookEventRepository
	pipelineTimeout time.Duration
}

func NewWebhookHandler(logger *zap.Logger, syncer usecase.PaymentSyncer, events domainRepo.WebhookEventRepository, pipelineTimeout time.Duration) *WebhookHandler {
	if pipelineTimeout <= 0 {
		pipelineTimeout = 30 * time.Second
	}
	return &WebhookHandler{
		logger:          logger,
		syncer:          syncer,
		events:          events,
		pipelineTimeout: pipelineTimeout,
	}
}

// HandleWebhook accepts both delivery styles: GET with query parameters
// and POST with a JSON body.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	var (
		notification Notification
		rawPayload   model.JSONB
	)

	switch c.Request().Method {
	case http.MethodGet:
		notification = notificationFromQuery(c.QueryParams())
		rawPayload = queryAsJSONB(c)
	default:
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			h.logger.Error("Error reading webhook body", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error reading request body"})
		}
		notification = notificationFromBody(body)
		rawPayload = bodyAsJSONB(body)
	}

	h.logger.Info("Webhook event received",
		zap.String("type", notification.RawType),
		zap.String("kind", string(notification.Kind)),
		zap.String("payment_id", notification.PaymentID))

	event := &model.WebhookEvent{
		EventKind: string(notification.Kind),
		Status:    model.WebhookEventStatusReceived,
		Payload:   rawPayload,
	}
	if notification.PaymentID != "" {
		event.ProviderPaymentID = &notification.PaymentID
	}
	if err := h.events.SaveEvent(c.Request().Context(), event); err != nil {
		h.logger.Error("Failed to record webhook event", zap.Error(err))
	}

	if notification.Kind != EventKindPayment || notification.PaymentID == "" {
		h.finishEvent(c.Request().Context(), event, model.WebhookEventStatusIgnored, nil)
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.pipelineTimeout)
	defer cancel()

	result, err := h.syncer.Sync(ctx, notification.PaymentID, rawPayload)
	if err != nil {
		// Acknowledge anyway. The event is audited and the
		// reconciliation sweep will retry the payment; a non-2xx here
		// only triggers provider-side redelivery of the same snapshot.
		h.logger.Error("Webhook pipeline failed",
			zap.String("payment_id", notification.PaymentID),
			zap.Error(err))
		h.finishEvent(c.Request().Context(), event, model.WebhookEventStatusFailed, err)
		return c.JSON(http.StatusOK, echo.Map{
			"received":   true,
			"payment_id": notification.PaymentID,
		})
	}

	h.finishEvent(c.Request().Context(), event, model.WebhookEventStatusProcessed, nil)
	return c.JSON(http.StatusOK, echo.Map{
		"received":   true,
		"payment_id": notification.PaymentID,
		"status":     result.Payment.Status,
	})
}

func (h *WebhookHandler) finishEvent(ctx context.Context, event *model.WebhookEvent, status model.WebhookEventStatus, procErr error) {
	if event.ID == uuid.Nil {
		return
	}
	if err := h.events.Finish(ctx, event.ID, status, procErr); err != nil {
		h.logger.Error("Failed to finish webhook event",
			zap.String("event_id", event.ID.String()),
			zap.Error(err))
	}
}

func queryAsJSONB(c echo.Context) model.JSONB {
	params := c.QueryParams()
	if len(params) == 0 {
		return nil
	}
	flat := make(map[string]interface{}, len(params))
	for key, values := range params {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	return model.JSONB(flat)
}

func bodyAsJSONB(body []byte) model.JSONB {
	if len(body) == 0 {
		return nil
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.JSONB{"raw": string(body)}
	}
	return model.JSONB(parsed)
}
