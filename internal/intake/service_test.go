package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/movonte/deskbridge/internal/conversation"
	"github.com/movonte/deskbridge/internal/forwarder"
	"github.com/movonte/deskbridge/internal/jira"
	"github.com/movonte/deskbridge/internal/threads"
)

type fakeEngine struct {
	requests []conversation.Request
	resp     conversation.Response
	err      error
}

func (f *fakeEngine) ProcessForService(_ context.Context, req conversation.Request) (conversation.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return conversation.Response{}, f.err
	}
	return f.resp, nil
}

type fakeGateway struct {
	comments []string
	err      error
}

func (f *fakeGateway) AddComment(_ context.Context, issueKey, text string) (string, error) {
	f.comments = append(f.comments, issueKey+": "+text)
	return "9001", f.err
}

type fakeThreads struct {
	byTicket map[string]threads.Thread
	bound    map[string]string
}

func (f *fakeThreads) FindByTicket(_ context.Context, ticketKey string) (threads.Thread, error) {
	if t, ok := f.byTicket[ticketKey]; ok {
		return t, nil
	}
	return threads.Thread{}, threads.ErrThreadNotFound
}

func (f *fakeThreads) BindTicket(_ context.Context, threadID, ticketKey string) error {
	if f.bound == nil {
		f.bound = make(map[string]string)
	}
	f.bound[ticketKey] = threadID
	return nil
}

type captureForwarder struct {
	payloads []forwarder.Payload
}

func (f *captureForwarder) ForwardResponse(_ context.Context, _, _ string, p forwarder.Payload) {
	f.payloads = append(f.payloads, p)
}

func commentEvent(issueKey, commentID, author, body string) jira.WebhookEvent {
	var ev jira.WebhookEvent
	ev.WebhookEvent = jira.EventCommentCreated
	ev.Issue.Key = issueKey
	ev.Issue.Fields.Summary = "Login failure"
	ev.Issue.Fields.Status.Name = "Open"
	ev.Comment.ID = commentID
	ev.Comment.Body = body
	ev.Comment.Created = "2024-05-03T10:15:32.000-0600"
	ev.Comment.Author = jira.Author{AccountID: "acc-" + author, DisplayName: author, EmailAddress: author + "@cliente.com"}
	return ev
}

func newTestService(engine *fakeEngine, gateway *fakeGateway, store *fakeThreads) *Service {
	guard := NewGuard(100, 50, 10*time.Second)
	return NewService(nil, guard, engine, gateway, store, nil, []string{"bot-account-1"}, "support", 5*time.Second)
}

func TestHandleCommentEventProcessed(t *testing.T) {
	engine := &fakeEngine{resp: conversation.Response{Response: "Claro, reviso el problema.", ThreadID: "jira-SUP-1"}}
	gateway := &fakeGateway{}
	store := &fakeThreads{}
	svc := newTestService(engine, gateway, store)

	res := svc.HandleCommentEvent(context.Background(), "u1", commentEvent("SUP-1", "1001", "Carlos", "El login sigue fallando"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s (%s)", res.Outcome, res.Detail)
	}
	if len(engine.requests) != 1 {
		t.Fatalf("engine calls = %d", len(engine.requests))
	}
	req := engine.requests[0]
	if req.ThreadID != "jira-SUP-1" || req.TicketKey != "SUP-1" || req.ServiceID != "support" {
		t.Fatalf("request = %+v", req)
	}
	if req.Message != "From Carlos on Jira issue SUP-1: El login sigue fallando" {
		t.Fatalf("message = %q", req.Message)
	}
	if len(gateway.comments) != 1 {
		t.Fatalf("posted comments = %d", len(gateway.comments))
	}
	if store.bound["SUP-1"] != "jira-SUP-1" {
		t.Fatalf("ticket binding = %q", store.bound["SUP-1"])
	}
	if s := svc.Guard().Snapshot(); s.Responses != 1 || s.Received != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestHandleCommentEventDuplicate(t *testing.T) {
	engine := &fakeEngine{resp: conversation.Response{Response: "ok", ThreadID: "jira-SUP-1"}}
	svc := newTestService(engine, &fakeGateway{}, &fakeThreads{})

	ev := commentEvent("SUP-1", "1001", "Carlos", "hola")
	first := svc.HandleCommentEvent(context.Background(), "u1", ev)
	if first.Outcome != OutcomeProcessed {
		t.Fatalf("first outcome = %s", first.Outcome)
	}
	second := svc.HandleCommentEvent(context.Background(), "u1", ev)
	if second.Outcome != OutcomeDuplicate {
		t.Fatalf("second outcome = %s", second.Outcome)
	}
	if len(engine.requests) != 1 {
		t.Fatalf("duplicate reached engine, calls = %d", len(engine.requests))
	}
	if s := svc.Guard().Snapshot(); s.Duplicates != 1 {
		t.Fatalf("duplicates = %d", s.Duplicates)
	}
}

func TestHandleCommentEventSkipsAIAuthor(t *testing.T) {
	engine := &fakeEngine{}
	svc := newTestService(engine, &fakeGateway{}, &fakeThreads{})

	res := svc.HandleCommentEvent(context.Background(), "u1",
		commentEvent("SUP-1", "1002", "Movonte Assistant Bot", "Aquí tienes la información."))
	if res.Outcome != OutcomeSkippedAI {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(engine.requests) != 0 {
		t.Fatal("ai comment reached engine")
	}
}

func TestHandleCommentEventSkipsAIBody(t *testing.T) {
	engine := &fakeEngine{}
	svc := newTestService(engine, &fakeGateway{}, &fakeThreads{})

	res := svc.HandleCommentEvent(context.Background(), "u1",
		commentEvent("SUP-1", "1003", "Carlos", "¡Hola! Soy el asistente de Movonte, ¿en qué puedo ayudarte?"))
	if res.Outcome != OutcomeSkippedAI {
		t.Fatalf("outcome = %s", res.Outcome)
	}
}

func TestHandleCommentEventThrottled(t *testing.T) {
	engine := &fakeEngine{resp: conversation.Response{Response: "ok", ThreadID: "t"}}
	svc := newTestService(engine, &fakeGateway{}, &fakeThreads{})

	now := time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)
	svc.guard.now = func() time.Time { return now }

	if res := svc.HandleCommentEvent(context.Background(), "u1", commentEvent("SUP-1", "1", "Carlos", "primero")); res.Outcome != OutcomeProcessed {
		t.Fatalf("first outcome = %s", res.Outcome)
	}

	now = now.Add(2 * time.Second)
	res := svc.HandleCommentEvent(context.Background(), "u1", commentEvent("SUP-1", "2", "Carlos", "segundo"))
	if res.Outcome != OutcomeThrottled {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if res.RemainingSeconds != 8 {
		t.Fatalf("remaining = %d, want 8", res.RemainingSeconds)
	}
	if len(engine.requests) != 1 {
		t.Fatalf("throttled event reached engine")
	}
}

func TestHandleCommentEventIgnoresOtherEvents(t *testing.T) {
	engine := &fakeEngine{}
	svc := newTestService(engine, &fakeGateway{}, &fakeThreads{})

	ev := commentEvent("SUP-1", "1", "Carlos", "hola")
	ev.WebhookEvent = "jira:issue_updated"
	if res := svc.HandleCommentEvent(context.Background(), "u1", ev); res.Outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s", res.Outcome)
	}
}

func TestHandleCommentEventDisabledTicket(t *testing.T) {
	engine := &fakeEngine{err: conversation.ErrTicketDisabled}
	svc := newTestService(engine, &fakeGateway{}, &fakeThreads{})

	res := svc.HandleCommentEvent(context.Background(), "u1", commentEvent("SUP-1", "1", "Carlos", "hola"))
	if res.Outcome != OutcomeDisabled {
		t.Fatalf("outcome = %s", res.Outcome)
	}
}

func TestHandleCommentEventEngineError(t *testing.T) {
	engine := &fakeEngine{err: errors.New("provider down")}
	svc := newTestService(engine, &fakeGateway{}, &fakeThreads{})

	res := svc.HandleCommentEvent(context.Background(), "u1", commentEvent("SUP-1", "1", "Carlos", "hola"))
	if res.Outcome != OutcomeError {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if s := svc.Guard().Snapshot(); s.Errors != 1 {
		t.Fatalf("errors = %d", s.Errors)
	}
}

func TestHandleCommentEventReusesBoundThread(t *testing.T) {
	engine := &fakeEngine{resp: conversation.Response{Response: "sigo aquí", ThreadID: "existing-thread"}}
	store := &fakeThreads{byTicket: map[string]threads.Thread{
		"SUP-1": {ThreadID: "existing-thread", ServiceID: "billing", TicketKey: "SUP-1"},
	}}
	svc := newTestService(engine, &fakeGateway{}, store)

	res := svc.HandleCommentEvent(context.Background(), "u1", commentEvent("SUP-1", "1", "Carlos", "y ahora?"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	req := engine.requests[0]
	if req.ThreadID != "existing-thread" || req.ServiceID != "billing" {
		t.Fatalf("request = %+v", req)
	}
}

func TestHandleCommentEventPostFailureStillProcessed(t *testing.T) {
	engine := &fakeEngine{resp: conversation.Response{Response: "respuesta", ThreadID: "t"}}
	gateway := &fakeGateway{err: errors.New("tracker unavailable")}
	svc := newTestService(engine, gateway, &fakeThreads{})

	res := svc.HandleCommentEvent(context.Background(), "u1", commentEvent("SUP-1", "1", "Carlos", "hola"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s", res.Outcome)
	}
}

func TestHandleCommentEventEmptyResponseNotCounted(t *testing.T) {
	engine := &fakeEngine{resp: conversation.Response{Response: "", ThreadID: "jira-SUP-1"}}
	gateway := &fakeGateway{}
	svc := newTestService(engine, gateway, &fakeThreads{})

	res := svc.HandleCommentEvent(context.Background(), "u1", commentEvent("SUP-1", "1", "Carlos", "hola"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(gateway.comments) != 0 {
		t.Fatalf("posted comments = %d", len(gateway.comments))
	}
	if s := svc.Guard().Snapshot(); s.Responses != 0 {
		t.Fatalf("responses = %d, want 0", s.Responses)
	}
}

func TestHandleCommentEventAcknowledgesEveryOutcome(t *testing.T) {
	engine := &fakeEngine{resp: conversation.Response{Response: "ok", ThreadID: "t"}}
	svc := newTestService(engine, &fakeGateway{}, &fakeThreads{})

	ev := commentEvent("SUP-1", "1", "Carlos", "hola")
	if res := svc.HandleCommentEvent(context.Background(), "u1", ev); !res.Success {
		t.Fatalf("processed ack success = false")
	}
	if res := svc.HandleCommentEvent(context.Background(), "u1", ev); !res.Success || res.Outcome != OutcomeDuplicate {
		t.Fatalf("duplicate ack = %+v", res)
	}
}

func TestHandleCommentEventForwardsContext(t *testing.T) {
	engine := &fakeEngine{resp: conversation.Response{Response: "listo", ThreadID: "jira-SUP-1", AssistantID: "asst-1"}}
	fwd := &captureForwarder{}
	guard := NewGuard(100, 50, 10*time.Second)
	svc := NewService(nil, guard, engine, &fakeGateway{}, &fakeThreads{}, fwd, nil, "support", 5*time.Second)

	res := svc.HandleCommentEvent(context.Background(), "u1", commentEvent("SUP-1", "1", "Carlos", "hola"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(fwd.payloads) != 1 {
		t.Fatalf("forwarded payloads = %d", len(fwd.payloads))
	}
	p := fwd.payloads[0]
	if p.IssueKey != "SUP-1" || p.ThreadID != "jira-SUP-1" || p.Source != "jira" {
		t.Fatalf("payload = %+v", p)
	}
	if p.Context["issue"] != "SUP-1" || p.Context["summary"] != "Login failure" || p.Context["author"] != "Carlos" {
		t.Fatalf("context = %v", p.Context)
	}
}
