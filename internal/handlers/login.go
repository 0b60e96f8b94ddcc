package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/movonte/deskbridge/internal/auth"
)

// LoginHandler issues JWTs for the admin API.
type LoginHandler struct {
	jwtSecret     string
	adminUser     string
	adminPassword string
	expiry        time.Duration
	logger        *slog.Logger
}

func NewLoginHandler(log *slog.Logger, jwtSecret, adminUser, adminPassword string, expiry time.Duration) *LoginHandler {
	return &LoginHandler{
		jwtSecret:     jwtSecret,
		adminUser:     adminUser,
		adminPassword: adminPassword,
		expiry:        expiry,
		logger:        log.With(slog.String("handler", "login")),
	}
}

func (h *LoginHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Login checks the operator credentials and returns a signed token.
func (h *LoginHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if h.adminUser == "" || h.adminPassword == "" {
		return echo.NewHTTPError(http.StatusForbidden, "login is not configured")
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.adminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.adminPassword)) == 1
	if !userOK || !passOK {
		h.logger.Warn("login rejected", slog.String("username", req.Username))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, err := auth.IssueToken(h.jwtSecret, req.Username, h.expiry)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresIn: int64(h.expiry.Seconds()),
	})
}
