package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/movonte/deskbridge/internal/auth"
	"github.com/movonte/deskbridge/internal/conversation"
	"github.com/movonte/deskbridge/internal/services"
)

// TicketCommenter posts widget turns onto the linked issue. *jira.Client
// satisfies it.
type TicketCommenter interface {
	AddComment(ctx context.Context, issueKey, text string) (string, error)
}

// ChatEngine runs one conversation turn. *conversation.Service satisfies it.
type ChatEngine interface {
	ProcessForService(ctx context.Context, req conversation.Request) (conversation.Response, error)
}

// ChatHandler serves the synchronous chat endpoints (direct service chat
// and the web widget). Unlike the webhook routes, failures here propagate
// to the caller.
type ChatHandler struct {
	engine           ChatEngine
	tickets          TicketCommenter
	defaultServiceID string
	logger           *slog.Logger
}

func NewChatHandler(log *slog.Logger, engine ChatEngine, tickets TicketCommenter, defaultServiceID string) *ChatHandler {
	return &ChatHandler{
		engine:           engine,
		tickets:          tickets,
		defaultServiceID: defaultServiceID,
		logger:           log.With(slog.String("handler", "chat")),
	}
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.POST("/api/chat/service/:serviceId", h.ServiceChat)
	e.POST("/api/chat/widget", h.WidgetChat)
}

// ServiceChatRequest is the direct chat body.
type ServiceChatRequest struct {
	Message  string         `json:"message"`
	ThreadID string         `json:"threadId,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
}

// ChatResponse is the synchronous chat reply envelope.
type ChatResponse struct {
	Success       bool   `json:"success"`
	Response      string `json:"response,omitempty"`
	ThreadID      string `json:"threadId,omitempty"`
	AssistantID   string `json:"assistantId,omitempty"`
	AssistantName string `json:"assistantName,omitempty"`
	IsReport      bool   `json:"isReport,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ServiceChat runs one turn against a named service.
func (h *ChatHandler) ServiceChat(c echo.Context) error {
	serviceID := strings.TrimSpace(c.Param("serviceId"))
	if serviceID == "" {
		return c.JSON(http.StatusBadRequest, ChatResponse{Success: false, Error: "service id is required"})
	}

	var req ServiceChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ChatResponse{Success: false, Error: err.Error()})
	}

	resp, err := h.engine.ProcessForService(c.Request().Context(), conversation.Request{
		Message:   req.Message,
		ServiceID: serviceID,
		UserID:    auth.UserID(c),
		ThreadID:  req.ThreadID,
		Context:   req.Context,
	})
	if err != nil {
		return h.chatError(c, serviceID, err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Success:       true,
		Response:      resp.Response,
		ThreadID:      resp.ThreadID,
		AssistantID:   resp.AssistantID,
		AssistantName: resp.AssistantName,
		IsReport:      resp.IsReport,
	})
}

// WidgetChatRequest is the web widget body.
type WidgetChatRequest struct {
	IssueKey     string         `json:"issueKey"`
	Message      string         `json:"message"`
	ServiceID    string         `json:"serviceId,omitempty"`
	CustomerInfo map[string]any `json:"customerInfo,omitempty"`
}

// WidgetChat runs one turn for a widget visitor and records the exchange on
// the linked issue.
func (h *ChatHandler) WidgetChat(c echo.Context) error {
	var req WidgetChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ChatResponse{Success: false, Error: err.Error()})
	}
	if strings.TrimSpace(req.IssueKey) == "" {
		return c.JSON(http.StatusBadRequest, ChatResponse{Success: false, Error: "issueKey is required"})
	}
	if req.ServiceID == "" {
		req.ServiceID = h.defaultServiceID
	}

	reqCtx := map[string]any{"source": "widget"}
	for k, v := range req.CustomerInfo {
		reqCtx[k] = v
	}

	resp, err := h.engine.ProcessForService(c.Request().Context(), conversation.Request{
		Message:   req.Message,
		ServiceID: req.ServiceID,
		UserID:    auth.UserID(c),
		ThreadID:  "widget-" + req.IssueKey,
		TicketKey: req.IssueKey,
		Context:   reqCtx,
	})
	if err != nil {
		return h.chatError(c, req.ServiceID, err)
	}

	if h.tickets != nil {
		comment := "Widget message:\n" + req.Message + "\n\nAI response:\n" + resp.Response
		if _, err := h.tickets.AddComment(c.Request().Context(), req.IssueKey, comment); err != nil {
			h.logger.Error("record widget turn on issue failed",
				slog.String("issue", req.IssueKey),
				slog.Any("error", err))
		}
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Success:       true,
		Response:      resp.Response,
		ThreadID:      resp.ThreadID,
		AssistantID:   resp.AssistantID,
		AssistantName: resp.AssistantName,
	})
}

func (h *ChatHandler) chatError(c echo.Context, serviceID string, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrServiceNotFound), errors.Is(err, services.ErrServiceNotConfigured):
		status = http.StatusNotFound
	case errors.Is(err, conversation.ErrTicketDisabled):
		status = http.StatusForbidden
	case errors.Is(err, conversation.ErrProviderUnavailable):
		status = http.StatusBadGateway
	}
	h.logger.Error("chat turn failed",
		slog.String("service_id", serviceID),
		slog.Int("status", status),
		slog.Any("error", err))
	return c.JSON(status, ChatResponse{Success: false, Error: err.Error()})
}
