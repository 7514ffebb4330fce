package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/flashsol"
	"github.com/aretw0/flashsol/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot from the terminal",
	Long: `Runs the conversational flows interactively as the given user.
Type /buy, /sell, /wallet and so on to start a command; other lines answer
the pending prompt. Passkeys and private keys are read without echo.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		plain, _ := cmd.Flags().GetBool("plain")

		app, _, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		renderer := tui.NewRenderer()
		if plain {
			renderer = tui.PlainRenderer
		} else {
			tui.PrintBanner(cmd.OutOrStdout(), flashsol.Version)
		}

		console := tui.NewConsole(app.Orchestrator, user, os.Stdin, cmd.OutOrStdout(), tui.WithRenderer(renderer))
		if err := console.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("user", "u", "", "User id to act as")
	chatCmd.Flags().Bool("plain", false, "Disable markdown rendering and the banner")
	_ = chatCmd.MarkFlagRequired("user")
}
