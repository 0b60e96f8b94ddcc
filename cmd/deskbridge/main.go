// Command deskbridge runs the integration backend that bridges Jira
// support workflows with AI assistants over the web widget, WhatsApp, and
// Jira webhook channels.
package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/movonte/deskbridge/cmd/deskbridge/modules"
	embedded "github.com/movonte/deskbridge/db"
	"github.com/movonte/deskbridge/internal/config"
	"github.com/movonte/deskbridge/internal/db"
	"github.com/movonte/deskbridge/internal/logger"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fx.New(
		modules.InfraModule,
		modules.DomainModule,
		modules.ChannelModule,
		modules.ServerModule,
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func runMigrate(args []string) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	migrations, err := fs.Sub(embedded.MigrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	return db.RunMigrate(logger.L, cfg.Postgres, migrations, command, args)
}
