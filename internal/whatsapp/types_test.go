package whatsapp

import (
	"encoding/json"
	"testing"
)

const webhookBody = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "100",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"metadata": {"display_phone_number": "15550000000", "phone_number_id": "12345"},
				"contacts": [{"wa_id": "15551234567", "profile": {"name": "Ana"}}],
				"messages": [
					{"from": "15551234567", "id": "wamid.1", "timestamp": "1714700000", "type": "text", "text": {"body": "hola, tengo un problema"}},
					{"from": "15551234567", "id": "wamid.2", "timestamp": "1714700001", "type": "image"},
					{"from": "15551234567", "id": "wamid.3", "timestamp": "1714700002", "type": "text", "text": {"body": ""}}
				]
			}
		}]
	}]
}`

func TestExtractInbound(t *testing.T) {
	var payload WebhookPayload
	if err := json.Unmarshal([]byte(webhookBody), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	got := ExtractInbound(payload)
	if len(got) != 1 {
		t.Fatalf("inbound messages = %d, want 1", len(got))
	}
	in := got[0]
	if in.Phone != "+15551234567" {
		t.Errorf("phone = %q", in.Phone)
	}
	if in.ProfileName != "Ana" {
		t.Errorf("profile name = %q", in.ProfileName)
	}
	if in.Body != "hola, tengo un problema" {
		t.Errorf("body = %q", in.Body)
	}
	if in.MessageID != "wamid.1" {
		t.Errorf("message id = %q", in.MessageID)
	}
}

func TestExtractInboundEmptyPayload(t *testing.T) {
	if got := ExtractInbound(WebhookPayload{}); len(got) != 0 {
		t.Fatalf("inbound = %v", got)
	}
}
