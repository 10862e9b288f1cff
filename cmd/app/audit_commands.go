package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/compliance/cmd/app/commands"
	"github.com/allisson/compliance/internal/app"
	"github.com/allisson/compliance/internal/config"
)

func getAuditCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "verify-audit-logs",
			Usage: "Verify the checksums of audit log entries",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "start-date",
					Aliases: []string{"s"},
					Usage:   "Start date in YYYY-MM-DD or YYYY-MM-DD HH:MM:SS format (omit for no lower bound)",
				},
				&cli.StringFlag{
					Name:    "end-date",
					Aliases: []string{"e"},
					Usage:   "End date in YYYY-MM-DD or YYYY-MM-DD HH:MM:SS format (omit for no upper bound)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				auditUseCase, err := container.AuditUseCase()
				if err != nil {
					return err
				}

				return commands.RunVerifyAuditLogs(
					ctx,
					auditUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("start-date"),
					cmd.String("end-date"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "clean-audit-logs",
			Usage: "Delete audit logs older than specified days",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "days",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Delete audit logs older than this many days",
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Value:   false,
					Usage:   "Show how many logs would be deleted without deleting",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				auditUseCase, err := container.AuditUseCase()
				if err != nil {
					return err
				}

				return commands.RunCleanAuditLogs(
					ctx,
					auditUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
	}
}
