package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/movonte/deskbridge/internal/intake"
	"github.com/movonte/deskbridge/internal/jira"
)

// WebhookCapture persists raw inbound webhook bodies for later inspection.
// *forwarder.Capture satisfies it.
type WebhookCapture interface {
	Save(ctx context.Context, userID, source string, payload []byte) error
}

// JiraWebhookHandler receives tracker webhook events and exposes the
// intake statistics.
type JiraWebhookHandler struct {
	intake  *intake.Service
	capture WebhookCapture
	logger  *slog.Logger
}

// NewJiraWebhookHandler creates the Jira webhook handler. capture may be nil.
func NewJiraWebhookHandler(log *slog.Logger, intakeService *intake.Service, capture WebhookCapture) *JiraWebhookHandler {
	return &JiraWebhookHandler{
		intake:  intakeService,
		capture: capture,
		logger:  log.With(slog.String("handler", "jira_webhook")),
	}
}

// Register mounts the webhook and stats routes.
func (h *JiraWebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/jira", h.Receive)
	e.POST("/webhooks/jira/:userId", h.Receive)
	e.GET("/webhooks/jira/stats", h.Stats)
	e.POST("/webhooks/jira/stats/reset", h.ResetStats)
}

// Receive acknowledges every event with 200; the outcome field tells the
// sender what happened. Failing here would only trigger tracker retries.
func (h *JiraWebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		h.logger.Error("read webhook body failed", slog.Any("error", err))
		return c.JSON(http.StatusOK, intake.Result{Success: true, Outcome: intake.OutcomeError, Detail: "unreadable body"})
	}

	userID := c.Param("userId")
	if h.capture != nil {
		if err := h.capture.Save(c.Request().Context(), userID, "jira", body); err != nil {
			h.logger.Warn("save webhook failed", slog.Any("error", err))
		}
	}

	var event jira.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("decode webhook failed", slog.Any("error", err))
		return c.JSON(http.StatusOK, intake.Result{Success: true, Outcome: intake.OutcomeError, Detail: "malformed payload"})
	}

	result := h.intake.HandleCommentEvent(c.Request().Context(), userID, event)
	return c.JSON(http.StatusOK, result)
}

// Stats returns the process-lifetime intake counters.
func (h *JiraWebhookHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.intake.Guard().Snapshot())
}

// ResetStats clears the counters. Dedup and throttle state are preserved.
func (h *JiraWebhookHandler) ResetStats(c echo.Context) error {
	h.intake.Guard().Reset()
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}
