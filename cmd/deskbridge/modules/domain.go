package modules

import (
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/movonte/deskbridge/internal/config"
	"github.com/movonte/deskbridge/internal/conversation"
	"github.com/movonte/deskbridge/internal/forwarder"
	"github.com/movonte/deskbridge/internal/intake"
	"github.com/movonte/deskbridge/internal/jira"
	"github.com/movonte/deskbridge/internal/openai"
	"github.com/movonte/deskbridge/internal/services"
	"github.com/movonte/deskbridge/internal/threads"
	"github.com/movonte/deskbridge/internal/tickets"
)

var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		threads.NewService,
		services.NewService,
		tickets.NewService,
		provideOpenAIClient,
		provideJiraClient,
		provideConversationEngine,
		provideForwarder,
		forwarder.NewCapture,
		provideIntakeGuard,
		provideIntakeService,
	),
)

func provideOpenAIClient(log *slog.Logger, cfg config.Config) (*openai.Client, error) {
	client, err := openai.NewClient(log, cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey,
		cfg.OpenAI.PollInterval(), cfg.OpenAI.RunTimeout())
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return client, nil
}

func provideJiraClient(log *slog.Logger, cfg config.Config) (*jira.Client, error) {
	client, err := jira.NewClient(log, cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken)
	if err != nil {
		return nil, fmt.Errorf("jira client: %w", err)
	}
	return client, nil
}

func provideConversationEngine(log *slog.Logger, client *openai.Client, registry *services.Service, store *threads.Service, disabled *tickets.Service, cfg config.Config) *conversation.Service {
	return conversation.NewService(log, client, registry, store, disabled, cfg.OpenAI.FallbackModel)
}

func provideForwarder(log *slog.Logger, registry *services.Service, cfg config.Config) *forwarder.Service {
	return forwarder.NewService(log, registry, cfg.Forwarder.Timeout())
}

func provideIntakeGuard(cfg config.Config) *intake.Guard {
	return intake.NewGuard(cfg.Intake.ProcessedCap, cfg.Intake.ProcessedKeep, cfg.Intake.Throttle())
}

func provideIntakeService(log *slog.Logger, guard *intake.Guard, engine *conversation.Service, gateway *jira.Client, store *threads.Service, fwd *forwarder.Service, cfg config.Config) *intake.Service {
	return intake.NewService(log, guard, engine, gateway, store, fwd,
		cfg.Jira.BotAccountIDs, cfg.WhatsApp.DefaultServiceID, cfg.Intake.RecencyWarning())
}
