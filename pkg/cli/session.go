package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/sahayak/pkg/usecase/identity"
	"github.com/urfave/cli/v3"
)

const healthTimeout = 5 * time.Second

func sessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Inspect or reset the persisted session identifier",
		Commands: []*cli.Command{
			sessionShowCommand(),
			sessionResetCommand(),
		},
	}
}

func sessionShowCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "show",
		Usage: "Show the session identifier and backend status",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, closeLog, err := cfg.setup(ctx, c)
			defer closeLog()
			if err != nil {
				return err
			}

			w := c.Root().Writer

			store, err := cfg.newStore()
			if err != nil {
				return err
			}
			id, found, err := store.GetSessionID(ctx)
			switch {
			case err != nil:
				fmt.Fprintf(w, "Session:  unavailable (%v)\n", err)
			case !found:
				fmt.Fprintf(w, "Session:  none (created on next chat)\n")
			default:
				fmt.Fprintf(w, "Session:  %s\n", id)
			}
			fmt.Fprintf(w, "Stored in: %s\n", store.Path())

			assistant, err := cfg.newAssistant()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Endpoint: %s\n", assistant.Endpoint())

			hctx, cancel := context.WithTimeout(ctx, healthTimeout)
			defer cancel()
			status, err := assistant.Health(hctx)
			if err != nil {
				fmt.Fprintf(w, "Backend:  unreachable (%v)\n", err)
				return nil
			}
			fmt.Fprintf(w, "Backend:  %s\n", status)
			return nil
		},
	}
}

func sessionResetCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "reset",
		Usage: "Forget the session identifier so the next chat starts a new conversation",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, closeLog, err := cfg.setup(ctx, c)
			defer closeLog()
			if err != nil {
				return err
			}

			store, err := cfg.newStore()
			if err != nil {
				return err
			}
			if err := identity.New(store).Clear(ctx); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Session identifier removed from %s\n", store.Path())
			return nil
		},
	}
}
