package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/usecase/speech"
	"github.com/urfave/cli/v3"
)

func sayCommand() *cli.Command {
	var (
		cfg    config
		noPlay bool
	)

	flags := globalFlags(&cfg)
	flags = append(flags, deviceFlags(&cfg)...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "no-play",
		Usage:       "Only print the audio URL",
		Destination: &noPlay,
	})

	return &cli.Command{
		Name:      "say",
		Usage:     "Read text aloud in the configured language",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, closeLog, err := cfg.setup(ctx, c)
			defer closeLog()
			if err != nil {
				return err
			}

			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return goerr.Wrap(model.ErrEmptyInput, "text is required")
			}

			assistant, err := cfg.newAssistant()
			if err != nil {
				return err
			}
			locale := cfg.newLocale()

			if noPlay {
				url, err := assistant.Synthesize(ctx, text, locale)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.Root().Writer, url)
				return nil
			}

			narrator := speech.New(assistant, cfg.newPlayer())
			defer narrator.Stop(ctx)

			url, err := narrator.Narrate(ctx, text, locale)
			if url != "" {
				fmt.Fprintln(c.Root().Writer, url)
			}
			if err != nil {
				return err
			}

			return narrator.Wait(ctx)
		},
	}
}
