package modules

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/movonte/deskbridge/internal/config"
	"github.com/movonte/deskbridge/internal/conversation"
	"github.com/movonte/deskbridge/internal/jira"
	"github.com/movonte/deskbridge/internal/services"
	"github.com/movonte/deskbridge/internal/whatsapp"
)

var ChannelModule = fx.Module(
	"channel",
	fx.Provide(
		provideWhatsAppStore,
		provideWhatsAppClient,
		provideWhatsAppProcessor,
	),
)

func provideWhatsAppStore(log *slog.Logger, pool *pgxpool.Pool) *whatsapp.Store {
	return whatsapp.NewStore(log, pool)
}

func provideWhatsAppClient(log *slog.Logger, cfg config.Config) *whatsapp.Client {
	return whatsapp.NewClient(log, cfg.WhatsApp.GraphBaseURL, cfg.WhatsApp.AccessToken,
		cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.VerifyToken)
}

func provideWhatsAppProcessor(log *slog.Logger, store *whatsapp.Store, client *whatsapp.Client, tickets *jira.Client, registry *services.Service, engine *conversation.Service, cfg config.Config) *whatsapp.Processor {
	return whatsapp.NewProcessor(log, store, client, tickets, registry, engine, cfg.WhatsApp.DefaultServiceID, cfg.Jira.DefaultProject)
}
