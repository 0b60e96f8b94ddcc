package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyToken(t *testing.T) {
	c := NewClient(nil, "https://graph.example.com/v19.0", "tok", "12345", "secret")

	if ch, ok := c.VerifyToken("subscribe", "secret", "challenge-1"); !ok || ch != "challenge-1" {
		t.Fatalf("valid handshake rejected: %q %v", ch, ok)
	}
	if _, ok := c.VerifyToken("subscribe", "wrong", "challenge-1"); ok {
		t.Fatal("wrong token accepted")
	}
	if _, ok := c.VerifyToken("unsubscribe", "secret", "challenge-1"); ok {
		t.Fatal("wrong mode accepted")
	}
	if _, ok := c.VerifyToken("subscribe", "", "challenge-1"); ok {
		t.Fatal("empty token accepted")
	}
}

func TestSendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(nil, srv.URL, "tok", "12345", "secret")
	if err := c.SendText(context.Background(), "+15551234567", "hola"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	if gotPath != "/12345/messages" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["to"] != "15551234567" {
		t.Fatalf("to = %v", gotBody["to"])
	}
	if gotBody["messaging_product"] != "whatsapp" {
		t.Fatalf("messaging_product = %v", gotBody["messaging_product"])
	}
	text, _ := gotBody["text"].(map[string]any)
	if text["body"] != "hola" {
		t.Fatalf("text = %v", gotBody["text"])
	}
}

func TestSendTextErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(nil, srv.URL, "tok", "12345", "secret")
	if err := c.SendText(context.Background(), "+15551234567", "hola"); err == nil {
		t.Fatal("expected error for 401 response")
	}
}
