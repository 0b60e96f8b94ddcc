package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/movonte/deskbridge/internal/whatsapp"
)

// WhatsAppWebhookHandler serves the Cloud API verification handshake and
// inbound message webhook.
type WhatsAppWebhookHandler struct {
	client    *whatsapp.Client
	processor *whatsapp.Processor
	capture   WebhookCapture
	logger    *slog.Logger

	defaultUserID string
}

// NewWhatsAppWebhookHandler creates the handler. capture may be nil.
func NewWhatsAppWebhookHandler(log *slog.Logger, client *whatsapp.Client, processor *whatsapp.Processor, capture WebhookCapture, defaultUserID string) *WhatsAppWebhookHandler {
	return &WhatsAppWebhookHandler{
		client:        client,
		processor:     processor,
		capture:       capture,
		logger:        log.With(slog.String("handler", "whatsapp_webhook")),
		defaultUserID: defaultUserID,
	}
}

// Register mounts the verification and message routes.
func (h *WhatsAppWebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhooks/whatsapp", h.Verify)
	e.POST("/webhooks/whatsapp", h.Receive)
}

// Verify answers the subscription handshake: echo the challenge on a token
// match, 403 otherwise.
func (h *WhatsAppWebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if echoed, ok := h.client.VerifyToken(mode, token, challenge); ok {
		return c.String(http.StatusOK, echoed)
	}
	h.logger.Warn("webhook verification rejected", slog.String("mode", mode))
	return c.NoContent(http.StatusForbidden)
}

// Receive always acknowledges with 200. Processing failures are logged,
// never surfaced; a non-200 would only trigger redelivery.
func (h *WhatsAppWebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		h.logger.Error("read webhook body failed", slog.Any("error", err))
		return c.JSON(http.StatusOK, map[string]any{"success": true, "status": "error"})
	}

	if h.capture != nil {
		if err := h.capture.Save(c.Request().Context(), h.defaultUserID, "whatsapp", body); err != nil {
			h.logger.Warn("save webhook failed", slog.Any("error", err))
		}
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Error("decode webhook failed", slog.Any("error", err))
		return c.JSON(http.StatusOK, map[string]any{"success": true, "status": "error"})
	}

	inbound := whatsapp.ExtractInbound(payload)
	for _, in := range inbound {
		h.processor.HandleInbound(c.Request().Context(), h.defaultUserID, in)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"status":    "received",
		"processed": len(inbound),
	})
}
