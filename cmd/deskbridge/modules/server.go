package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/movonte/deskbridge/internal/config"
	"github.com/movonte/deskbridge/internal/conversation"
	"github.com/movonte/deskbridge/internal/forwarder"
	"github.com/movonte/deskbridge/internal/handlers"
	"github.com/movonte/deskbridge/internal/intake"
	"github.com/movonte/deskbridge/internal/jira"
	"github.com/movonte/deskbridge/internal/server"
	"github.com/movonte/deskbridge/internal/services"
	"github.com/movonte/deskbridge/internal/threads"
	"github.com/movonte/deskbridge/internal/tickets"
	"github.com/movonte/deskbridge/internal/version"
	"github.com/movonte/deskbridge/internal/whatsapp"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideHandler(handlers.NewPingHandler),
		provideHandler(provideLoginHandler),
		provideHandler(provideJiraWebhookHandler),
		provideHandler(provideWhatsAppWebhookHandler),
		provideHandler(provideChatHandler),
		provideHandler(provideServicesHandler),
		provideServer,
	),
	fx.Invoke(
		startRetentionSweep,
		startServer,
	),
)

func provideHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideLoginHandler(log *slog.Logger, cfg config.Config) *handlers.LoginHandler {
	return handlers.NewLoginHandler(log, cfg.Auth.JWTSecret,
		cfg.Auth.AdminUser, cfg.Auth.AdminPassword, cfg.Auth.JWTExpiry())
}

func provideJiraWebhookHandler(log *slog.Logger, intakeService *intake.Service, capture *forwarder.Capture) *handlers.JiraWebhookHandler {
	return handlers.NewJiraWebhookHandler(log, intakeService, capture)
}

func provideWhatsAppWebhookHandler(log *slog.Logger, client *whatsapp.Client, processor *whatsapp.Processor, capture *forwarder.Capture) *handlers.WhatsAppWebhookHandler {
	return handlers.NewWhatsAppWebhookHandler(log, client, processor, capture, "")
}

func provideChatHandler(log *slog.Logger, engine *conversation.Service, tickets *jira.Client, cfg config.Config) *handlers.ChatHandler {
	return handlers.NewChatHandler(log, engine, tickets, cfg.WhatsApp.DefaultServiceID)
}

func provideServicesHandler(log *slog.Logger, registry *services.Service, ticketService *tickets.Service, capture *forwarder.Capture) *handlers.ServicesHandler {
	return handlers.NewServicesHandler(log, registry, ticketService, capture)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr,
		params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

// startRetentionSweep deletes threads whose last activity is older than the
// configured TTL, on the configured cron schedule.
func startRetentionSweep(lc fx.Lifecycle, logger *slog.Logger, store *threads.Service, cfg config.Config) error {
	ttl := time.Duration(cfg.Retention.ThreadTTLDays) * 24 * time.Hour
	if ttl <= 0 {
		logger.Info("thread retention sweep disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.Retention.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		cutoff := time.Now().Add(-ttl)
		deleted, err := store.DeleteInactiveBefore(ctx, cutoff)
		if err != nil {
			logger.Error("thread retention sweep failed", slog.Any("error", err))
			return
		}
		if deleted > 0 {
			logger.Info("thread retention sweep",
				slog.Int64("deleted", deleted),
				slog.Time("cutoff", cutoff))
		}
	})
	if err != nil {
		return fmt.Errorf("retention schedule %q: %w", cfg.Retention.SweepSchedule, err)
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting deskbridge", slog.String("version", version.String()))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
