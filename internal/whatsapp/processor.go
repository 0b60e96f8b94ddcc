package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/movonte/deskbridge/internal/conversation"
	"github.com/movonte/deskbridge/internal/routing"
	"github.com/movonte/deskbridge/internal/services"
)

// Sender delivers outbound messages. *Client satisfies it.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// MappingStore is the phone-to-ticket mapper. *Store satisfies it.
type MappingStore interface {
	Get(ctx context.Context, phone string) (Mapping, error)
	Set(ctx context.Context, m Mapping) error
}

// TicketCreator opens and comments tracker issues. *jira.Client satisfies it.
type TicketCreator interface {
	CreateIssue(ctx context.Context, projectKey, summary, description string) (string, error)
	AddComment(ctx context.Context, issueKey, text string) (string, error)
}

// Registry lists the services a new conversation can be routed to.
// *services.Service satisfies it.
type Registry interface {
	ListActive(ctx context.Context, userID string) ([]services.ServiceConfig, error)
}

// Engine runs one conversation turn. *conversation.Service satisfies it.
type Engine interface {
	ProcessForService(ctx context.Context, req conversation.Request) (conversation.Response, error)
}

// pendingSelection remembers a numbered service list presented to a phone
// that is waiting for the user to pick one.
type pendingSelection struct {
	presented []services.ServiceConfig
	message   string
	expires   time.Time
}

const pendingTTL = 10 * time.Minute

// Processor turns inbound WhatsApp messages into ticketed conversations.
type Processor struct {
	store    MappingStore
	sender   Sender
	tickets  TicketCreator
	registry Registry
	engine   Engine
	logger   *slog.Logger

	defaultServiceID string
	defaultProject   string

	mu      sync.Mutex
	pending map[string]pendingSelection
	now     func() time.Time
}

func NewProcessor(log *slog.Logger, store MappingStore, sender Sender, tickets TicketCreator, registry Registry, engine Engine, defaultServiceID, defaultProject string) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		store:            store,
		sender:           sender,
		tickets:          tickets,
		registry:         registry,
		engine:           engine,
		logger:           log.With(slog.String("service", "whatsapp_processor")),
		defaultServiceID: defaultServiceID,
		defaultProject:   defaultProject,
		pending:          make(map[string]pendingSelection),
		now:              time.Now,
	}
}

// HandleInbound processes one inbound text message end to end. Errors are
// logged and answered with a fallback message; the webhook acknowledgement
// never depends on them.
func (p *Processor) HandleInbound(ctx context.Context, userID string, in Inbound) {
	if pending, ok := p.takePending(in.Phone); ok {
		if chosen, ok := routing.ParseSelection(in.Body, pending.presented); ok {
			p.openConversation(ctx, userID, in, chosen, pending.message)
			return
		}
		// Unrecognized reply: present the list again and keep waiting.
		p.setPending(in.Phone, pending)
		p.reply(ctx, in.Phone, serviceListPrompt(pending.presented))
		return
	}

	mapping, err := p.store.Get(ctx, in.Phone)
	switch {
	case err == nil:
		p.continueConversation(ctx, userID, in, mapping)
	case errors.Is(err, ErrMappingNotFound):
		p.routeNewConversation(ctx, userID, in)
	default:
		p.logger.Error("mapping lookup failed", slog.String("phone", in.Phone), slog.Any("error", err))
		p.reply(ctx, in.Phone, fallbackReply)
	}
}

const fallbackReply = "Lo sentimos, no pudimos procesar tu mensaje en este momento. Por favor intenta de nuevo más tarde."

// continueConversation runs a turn on the ticket already mapped to the phone.
func (p *Processor) continueConversation(ctx context.Context, userID string, in Inbound, mapping Mapping) {
	owner := mapping.UserID
	if owner == "" {
		owner = userID
	}

	resp, err := p.engine.ProcessForService(ctx, conversation.Request{
		Message:   in.Body,
		ServiceID: mapping.ServiceID,
		UserID:    owner,
		ThreadID:  threadIDForPhone(in.Phone),
		TicketKey: mapping.IssueKey,
		Context: map[string]any{
			"source": "whatsapp",
			"phone":  in.Phone,
			"name":   in.ProfileName,
		},
	})
	if err != nil {
		p.logger.Error("whatsapp turn failed",
			slog.String("phone", in.Phone),
			slog.String("issue", mapping.IssueKey),
			slog.Any("error", err))
		p.reply(ctx, in.Phone, fallbackReply)
		return
	}

	if _, err := p.tickets.AddComment(ctx, mapping.IssueKey, commentForInbound(in, resp.Response)); err != nil {
		p.logger.Error("record whatsapp turn on issue failed",
			slog.String("issue", mapping.IssueKey),
			slog.Any("error", err))
	}
	p.reply(ctx, in.Phone, resp.Response)
}

// routeNewConversation decides the service for a first message. A decisive
// route opens a ticket immediately; an arbitrary one with several candidates
// asks the user to choose.
func (p *Processor) routeNewConversation(ctx context.Context, userID string, in Inbound) {
	active, err := p.registry.ListActive(ctx, userID)
	if err != nil {
		p.logger.Error("list active services failed", slog.String("user_id", userID), slog.Any("error", err))
		p.reply(ctx, in.Phone, fallbackReply)
		return
	}

	decision, ok := routing.Route(in.Body, active, p.defaultServiceID)
	if !ok {
		p.reply(ctx, in.Phone, "No hay servicios disponibles en este momento.")
		return
	}

	if decision.Source == routing.SourceFirst && len(active) > 1 {
		p.setPending(in.Phone, pendingSelection{presented: active, message: in.Body})
		p.reply(ctx, in.Phone, serviceListPrompt(active))
		return
	}

	for _, svc := range active {
		if svc.ServiceID == decision.ServiceID {
			p.openConversation(ctx, userID, in, svc, in.Body)
			return
		}
	}
}

// openConversation creates the ticket, saves the mapping, and runs the
// first turn.
func (p *Processor) openConversation(ctx context.Context, userID string, in Inbound, svc services.ServiceConfig, message string) {
	name := in.ProfileName
	if name == "" {
		name = in.Phone
	}
	summary := fmt.Sprintf("WhatsApp: %s", truncate(message, 80))
	description := fmt.Sprintf("Conversation opened from WhatsApp by %s (%s).\n\nFirst message:\n%s", name, in.Phone, message)

	project := svc.ProjectKey
	if project == "" {
		project = p.defaultProject
	}
	issueKey, err := p.tickets.CreateIssue(ctx, project, summary, description)
	if err != nil {
		p.logger.Error("create issue failed",
			slog.String("phone", in.Phone),
			slog.String("project", project),
			slog.Any("error", err))
		p.reply(ctx, in.Phone, fallbackReply)
		return
	}

	if err := p.store.Set(ctx, Mapping{
		Phone:     in.Phone,
		IssueKey:  issueKey,
		ServiceID: svc.ServiceID,
		UserID:    userID,
	}); err != nil {
		p.logger.Error("save mapping failed", slog.String("phone", in.Phone), slog.Any("error", err))
	}

	resp, err := p.engine.ProcessForService(ctx, conversation.Request{
		Message:   message,
		ServiceID: svc.ServiceID,
		UserID:    userID,
		ThreadID:  threadIDForPhone(in.Phone),
		TicketKey: issueKey,
		Context: map[string]any{
			"source": "whatsapp",
			"phone":  in.Phone,
			"name":   in.ProfileName,
		},
	})
	if err != nil {
		p.logger.Error("first whatsapp turn failed",
			slog.String("phone", in.Phone),
			slog.String("issue", issueKey),
			slog.Any("error", err))
		p.reply(ctx, in.Phone, fmt.Sprintf("Hemos creado el ticket %s para tu solicitud. Un agente te responderá pronto.", issueKey))
		return
	}

	if _, err := p.tickets.AddComment(ctx, issueKey, commentForInbound(in, resp.Response)); err != nil {
		p.logger.Error("record whatsapp turn on issue failed", slog.String("issue", issueKey), slog.Any("error", err))
	}
	p.reply(ctx, in.Phone, fmt.Sprintf("Ticket %s creado.\n\n%s", issueKey, resp.Response))
}

func (p *Processor) reply(ctx context.Context, phone, body string) {
	if body == "" {
		return
	}
	if err := p.sender.SendText(ctx, phone, body); err != nil {
		p.logger.Error("send reply failed", slog.String("phone", phone), slog.Any("error", err))
	}
}

func (p *Processor) takePending(phone string) (pendingSelection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, ok := p.pending[phone]
	if !ok {
		return pendingSelection{}, false
	}
	delete(p.pending, phone)
	if p.now().After(sel.expires) {
		return pendingSelection{}, false
	}
	return sel, true
}

func (p *Processor) setPending(phone string, sel pendingSelection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel.expires = p.now().Add(pendingTTL)
	p.pending[phone] = sel
}

func threadIDForPhone(phone string) string {
	return "wa-" + strings.TrimPrefix(phone, "+")
}

func serviceListPrompt(presented []services.ServiceConfig) string {
	var b strings.Builder
	b.WriteString("¿Con qué servicio deseas hablar? Responde con el número o el nombre:\n")
	for i, svc := range presented {
		name := svc.ServiceName
		if name == "" {
			name = svc.ServiceID
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	return strings.TrimRight(b.String(), "\n")
}

func commentForInbound(in Inbound, response string) string {
	name := in.ProfileName
	if name == "" {
		name = in.Phone
	}
	return fmt.Sprintf("WhatsApp message from %s (%s):\n%s\n\nAI response:\n%s", name, in.Phone, in.Body, response)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
