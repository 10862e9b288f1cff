package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/compliance/cmd/app/commands"
	"github.com/allisson/compliance/internal/app"
	"github.com/allisson/compliance/internal/config"
)

func getRetentionCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-retention-policy",
			Usage: "Create a retention policy",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Unique policy name"},
				&cli.StringFlag{
					Name:     "entity-type",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Entity type (student, parent, parental_consent, session, user_session, audit_log)",
				},
				&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Required: true, Usage: "Retention period in days"},
				&cli.StringFlag{
					Name:     "action",
					Aliases:  []string{"a"},
					Required: true,
					Usage:    "Action when the period ends (delete, anonymize, archive, notify_only)",
				},
				&cli.StringFlag{Name: "trigger", Value: "last_activity", Usage: "Timestamp that starts the period"},
				&cli.IntFlag{Name: "priority", Value: 100, Usage: "Execution order, lower runs first"},
				&cli.StringFlag{Name: "legal-basis", Usage: "Legal basis recorded with the policy"},
				&cli.StringFlag{
					Name:  "exceptions",
					Usage: "Comma-separated exceptions (active_legal_case, ongoing_audit, premium_account, recent_activity, regulatory_requirement)",
				},
				&cli.IntFlag{Name: "notification-days", Usage: "Notice period before the action, 0 for none"},
				&cli.BoolFlag{Name: "inactive", Usage: "Create the policy disabled"},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				retentionUseCase, err := container.RetentionUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateRetentionPolicy(
					ctx,
					retentionUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.PolicyFlags{
						Name:                cmd.String("name"),
						EntityType:          cmd.String("entity-type"),
						RetentionPeriodDays: int(cmd.Int("days")),
						TriggerCondition:    cmd.String("trigger"),
						Action:              cmd.String("action"),
						Priority:            int(cmd.Int("priority")),
						LegalBasis:          cmd.String("legal-basis"),
						Exceptions:          cmd.String("exceptions"),
						NotificationDays:    int(cmd.Int("notification-days")),
						Inactive:            cmd.Bool("inactive"),
					},
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "seed-retention-policies",
			Usage: "Create the default retention policies that do not exist yet",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				retentionUseCase, err := container.RetentionUseCase()
				if err != nil {
					return err
				}

				return commands.RunSeedRetentionPolicies(
					ctx,
					retentionUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "execute-retention-policies",
			Usage: "Run every active retention policy, or a single one",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "policy-id", Aliases: []string{"p"}, Usage: "Run only this policy (UUID)"},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				retentionUseCase, err := container.RetentionUseCase()
				if err != nil {
					return err
				}

				return commands.RunExecuteRetentionPolicies(
					ctx,
					retentionUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("policy-id"),
					cmd.String("format"),
				)
			},
		},
	}
}
