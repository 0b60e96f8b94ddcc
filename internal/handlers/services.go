package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/movonte/deskbridge/internal/auth"
	"github.com/movonte/deskbridge/internal/forwarder"
	"github.com/movonte/deskbridge/internal/services"
	"github.com/movonte/deskbridge/internal/tickets"
)

// ServicesHandler is the JWT-protected admin surface: service registry,
// forwarding configs, disabled tickets, and captured webhooks.
type ServicesHandler struct {
	registry *services.Service
	tickets  *tickets.Service
	capture  *forwarder.Capture
	logger   *slog.Logger
}

func NewServicesHandler(log *slog.Logger, registry *services.Service, ticketService *tickets.Service, capture *forwarder.Capture) *ServicesHandler {
	return &ServicesHandler{
		registry: registry,
		tickets:  ticketService,
		capture:  capture,
		logger:   log.With(slog.String("handler", "services")),
	}
}

func (h *ServicesHandler) Register(e *echo.Echo) {
	group := e.Group("/api/services")
	group.GET("", h.List)
	group.POST("", h.Upsert)
	group.GET("/:serviceId", h.Get)
	group.DELETE("/:serviceId", h.Delete)
	group.PUT("/:serviceId/active", h.SetActive)
	group.GET("/:serviceId/webhook", h.GetWebhookConfig)
	group.PUT("/:serviceId/webhook", h.PutWebhookConfig)

	ticketGroup := e.Group("/api/tickets")
	ticketGroup.GET("/disabled", h.ListDisabled)
	ticketGroup.POST("/:issueKey/disable", h.DisableTicket)
	ticketGroup.DELETE("/:issueKey/disable", h.EnableTicket)

	e.GET("/api/webhooks/saved", h.ListSavedWebhooks)
}

func (h *ServicesHandler) List(c echo.Context) error {
	list, err := h.registry.List(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

func (h *ServicesHandler) Get(c echo.Context) error {
	cfg, err := h.registry.Get(c.Request().Context(), auth.UserID(c), c.Param("serviceId"))
	if err != nil {
		if errors.Is(err, services.ErrServiceNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "service not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *ServicesHandler) Upsert(c echo.Context) error {
	var cfg services.ServiceConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(cfg.ServiceID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "service_id is required")
	}
	cfg.UserID = auth.UserID(c)

	saved, err := h.registry.Upsert(c.Request().Context(), cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *ServicesHandler) Delete(c echo.Context) error {
	err := h.registry.Delete(c.Request().Context(), auth.UserID(c), c.Param("serviceId"))
	if err != nil {
		if errors.Is(err, services.ErrServiceNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "service not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

func (h *ServicesHandler) SetActive(c echo.Context) error {
	var req setActiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.registry.SetActive(c.Request().Context(), auth.UserID(c), c.Param("serviceId"), req.IsActive)
	if err != nil {
		if errors.Is(err, services.ErrServiceNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "service not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"service_id": c.Param("serviceId"), "is_active": req.IsActive})
}

func (h *ServicesHandler) GetWebhookConfig(c echo.Context) error {
	cfg, err := h.registry.GetWebhookConfig(c.Request().Context(), auth.UserID(c), c.Param("serviceId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *ServicesHandler) PutWebhookConfig(c echo.Context) error {
	var cfg services.WebhookConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg.UserID = auth.UserID(c)
	cfg.ServiceID = c.Param("serviceId")

	saved, err := h.registry.UpsertWebhookConfig(c.Request().Context(), cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, saved)
}

type disableTicketRequest struct {
	Reason string `json:"reason"`
}

func (h *ServicesHandler) DisableTicket(c echo.Context) error {
	var req disableTicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := auth.UserID(c)
	issueKey := c.Param("issueKey")

	disabled, err := h.tickets.Disable(c.Request().Context(), userID, issueKey, req.Reason, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, disabled)
}

func (h *ServicesHandler) EnableTicket(c echo.Context) error {
	err := h.tickets.Enable(c.Request().Context(), auth.UserID(c), c.Param("issueKey"))
	if err != nil {
		if errors.Is(err, tickets.ErrNotDisabled) {
			return echo.NewHTTPError(http.StatusNotFound, "ticket is not disabled")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ServicesHandler) ListDisabled(c echo.Context) error {
	list, err := h.tickets.List(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

func (h *ServicesHandler) ListSavedWebhooks(c echo.Context) error {
	if h.capture == nil {
		return c.JSON(http.StatusOK, []forwarder.SavedWebhook{})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	list, err := h.capture.List(c.Request().Context(), auth.UserID(c), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}
