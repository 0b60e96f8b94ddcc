package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/movonte/deskbridge/internal/conversation"
)

type recordingCommenter struct {
	comments []string
}

func (r *recordingCommenter) AddComment(_ context.Context, issueKey, text string) (string, error) {
	r.comments = append(r.comments, issueKey+": "+text)
	return "1", nil
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServiceChatSuccess(t *testing.T) {
	engine := &stubEngine{resp: conversation.Response{
		Response:      "Aquí tienes.",
		ThreadID:      "t-1",
		AssistantID:   "asst_1",
		AssistantName: "Support Bot",
	}}
	h := NewChatHandler(newTestLogger(), engine, nil, "")
	e := echo.New()
	h.Register(e)

	rec := postJSON(e, "/api/chat/service/support", `{"message":"hola"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Response != "Aquí tienes." || resp.ThreadID != "t-1" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestServiceChatPropagatesError(t *testing.T) {
	engine := &stubEngine{err: conversation.ErrProviderUnavailable}
	h := NewChatHandler(newTestLogger(), engine, nil, "")
	e := echo.New()
	h.Register(e)

	rec := postJSON(e, "/api/chat/service/support", `{"message":"hola"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestServiceChatEmptyMessage(t *testing.T) {
	engine := &stubEngine{err: conversation.ErrEmptyMessage}
	h := NewChatHandler(newTestLogger(), engine, nil, "")
	e := echo.New()
	h.Register(e)

	rec := postJSON(e, "/api/chat/service/support", `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWidgetChatRecordsComment(t *testing.T) {
	engine := &stubEngine{resp: conversation.Response{Response: "Entendido.", ThreadID: "widget-SUP-1"}}
	commenter := &recordingCommenter{}
	h := NewChatHandler(newTestLogger(), engine, commenter, "support")
	e := echo.New()
	h.Register(e)

	rec := postJSON(e, "/api/chat/widget", `{"issueKey":"SUP-1","message":"ayuda","customerInfo":{"name":"Ana"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(commenter.comments) != 1 || !strings.HasPrefix(commenter.comments[0], "SUP-1:") {
		t.Fatalf("comments = %v", commenter.comments)
	}
}

func TestWidgetChatRequiresIssueKey(t *testing.T) {
	h := NewChatHandler(newTestLogger(), &stubEngine{}, nil, "support")
	e := echo.New()
	h.Register(e)

	rec := postJSON(e, "/api/chat/widget", `{"message":"ayuda"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
