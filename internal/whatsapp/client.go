package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to the WhatsApp Cloud API (Graph).
type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	verifyToken   string
	httpClient    *http.Client
	logger        *slog.Logger
}

func NewClient(log *slog.Logger, baseURL, accessToken, phoneNumberID, verifyToken string) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		verifyToken:   verifyToken,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        log.With(slog.String("service", "whatsapp_client")),
	}
}

// VerifyToken checks the subscription handshake. The challenge is echoed
// back only when the mode and token both match.
func (c *Client) VerifyToken(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token != "" && token == c.verifyToken {
		return challenge, true
	}
	return "", false
}

type sendTextRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// SendText delivers a plain text message to a phone number.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload := sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(to, "+"),
		Type:             "text",
	}
	payload.Text.Body = body

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph api status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
