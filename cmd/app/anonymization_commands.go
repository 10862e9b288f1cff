package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/compliance/cmd/app/commands"
	"github.com/allisson/compliance/internal/app"
	"github.com/allisson/compliance/internal/config"
)

func getAnonymizationCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "check-inactive-accounts",
			Usage: "Warn parents of inactive students and schedule anonymization past the horizon",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				anonymizationUseCase, err := container.AnonymizationUseCase()
				if err != nil {
					return err
				}

				return commands.RunCheckInactiveAccounts(
					ctx,
					anonymizationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "schedule-anonymization",
			Usage: "Schedule the anonymization of one entity",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "entity-type",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Entity type (student, parent, session)",
				},
				&cli.StringFlag{Name: "entity-id", Aliases: []string{"i"}, Required: true, Usage: "Entity ID (UUID)"},
				&cli.StringFlag{
					Name:    "reason",
					Aliases: []string{"r"},
					Value:   "gdpr_request",
					Usage:   "Reason (gdpr_request, consent_withdrawal, account_deletion, retention_policy, inactivity)",
				},
				&cli.BoolFlag{Name: "preserve-statistics", Usage: "Keep coarse statistical fields"},
				&cli.StringFlag{Name: "scheduled-for", Usage: "Run at YYYY-MM-DD or YYYY-MM-DD HH:MM:SS (UTC)"},
				&cli.StringFlag{Name: "requested-by", Usage: "Operator recorded on the job"},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				// Shutdown waits for jobs dispatched to run now.
				defer func() { _ = container.Shutdown(context.Background()) }()

				anonymizationUseCase, err := container.AnonymizationUseCase()
				if err != nil {
					return err
				}

				return commands.RunScheduleAnonymization(
					ctx,
					anonymizationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("entity-type"),
					cmd.String("entity-id"),
					cmd.String("reason"),
					cmd.Bool("preserve-statistics"),
					cmd.String("scheduled-for"),
					cmd.String("requested-by"),
					cmd.String("format"),
				)
			},
		},
	}
}
