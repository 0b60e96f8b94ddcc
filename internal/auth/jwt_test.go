package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestJWTMiddleware(t *testing.T) {
	const secret = "test-secret"

	e := echo.New()
	e.Use(JWTMiddleware(secret, func(c echo.Context) bool {
		return c.Request().URL.Path == "/public"
	}))
	e.GET("/public", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/private", func(c echo.Context) error {
		return c.String(http.StatusOK, UserID(c))
	})

	t.Run("public path skips auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/public", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("private path without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("private path with valid token", func(t *testing.T) {
		token, err := IssueToken(secret, "u1", time.Hour)
		if err != nil {
			t.Fatalf("IssueToken: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if rec.Body.String() != "u1" {
			t.Fatalf("user id = %q", rec.Body.String())
		}
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token, err := IssueToken(secret, "u1", -time.Minute)
		if err != nil {
			t.Fatalf("IssueToken: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}
