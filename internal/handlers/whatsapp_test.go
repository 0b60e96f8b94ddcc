package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/movonte/deskbridge/internal/whatsapp"
)

func newWhatsAppHandler() *WhatsAppWebhookHandler {
	client := whatsapp.NewClient(newTestLogger(), "https://graph.example.com", "tok", "12345", "verify-secret")
	return NewWhatsAppWebhookHandler(newTestLogger(), client, nil, nil, "")
}

func TestWhatsAppVerifyEchoesChallenge(t *testing.T) {
	h := newWhatsAppHandler()
	e := echo.New()
	h.Register(e)

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", "verify-secret")
	q.Set("hub.challenge", "1158201444")

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "1158201444" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestWhatsAppVerifyRejectsBadToken(t *testing.T) {
	h := newWhatsAppHandler()
	e := echo.New()
	h.Register(e)

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", "wrong")
	q.Set("hub.challenge", "1158201444")

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWhatsAppReceiveAlways200(t *testing.T) {
	h := newWhatsAppHandler()
	e := echo.New()
	h.Register(e)

	// Malformed bodies are acknowledged too.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader("{broken"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var ack map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack["success"] != true || ack["status"] != "error" {
		t.Fatalf("ack = %v", ack)
	}
}

func TestWhatsAppReceiveAckBody(t *testing.T) {
	h := newWhatsAppHandler()
	e := echo.New()
	h.Register(e)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(`{"object":"whatsapp_business_account","entry":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var ack map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack["success"] != true || ack["status"] != "received" || ack["processed"] != float64(0) {
		t.Fatalf("ack = %v", ack)
	}
}
