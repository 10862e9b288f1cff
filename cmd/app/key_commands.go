package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/compliance/cmd/app/commands"
	"github.com/allisson/compliance/internal/app"
	"github.com/allisson/compliance/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-data-key",
			Usage: "Generate the data key used for audit encryption, checksums and pseudonyms",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Value: "",
					Usage: "KMS key URI used to wrap the key (e.g., hashivault://compliance, base64key://...)",
				},
				&cli.StringFlag{
					Name:    "algorithm",
					Aliases: []string{"alg"},
					Value:   "aes-gcm",
					Usage:   "Encryption algorithm to use (aes-gcm or chacha20-poly1305)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateDataKey(
					ctx,
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("kms-key-uri"),
					cmd.String("algorithm"),
				)
			},
		},
	}
}
