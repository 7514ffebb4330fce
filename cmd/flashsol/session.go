package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and repair per-user session state",
	Long: `Inspect the ephemeral state kept for a user (pending flow, passkey entry,
processing lock, secure session) and clear it when a user is stuck.
Only meaningful with a shared Redis store.`,
}

// sessionReport is what inspect prints. Sealed secrets are never included.
type sessionReport struct {
	UserID        string                `json:"userId"`
	Flow          *domain.FlowState     `json:"flow,omitempty"`
	Passkey       domain.PasskeyContext `json:"passkey,omitempty"`
	Locked        bool                  `json:"locked"`
	SecureSession bool                  `json:"secureSession"`
	Wallet        string                `json:"wallet,omitempty"`
	MenuMessageID int64                 `json:"menuMessageId,omitempty"`
	Trades        []domain.TradeRecord  `json:"trades,omitempty"`
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <user-id>",
	Short: "Show a user's session state and recent trades",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		limit, _ := cmd.Flags().GetInt("trades")

		app, logger, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		if !app.Config.Redis.Enabled() {
			logger.Warn("Inspecting a process-local store: it is always empty")
		}

		ctx := cmd.Context()
		status, err := app.Orchestrator.Status(ctx, userID)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", userID, err)
		}
		report := sessionReport{
			UserID:        userID,
			Flow:          status.Flow,
			Passkey:       status.Passkey,
			Locked:        status.Locked,
			SecureSession: status.SecureSession,
			Wallet:        status.Wallet,
		}
		if report.MenuMessageID, err = app.State.MenuMessageID(ctx, userID); err != nil {
			return err
		}
		if limit > 0 {
			if report.Trades, err = app.Wallets.List(ctx, userID, limit); err != nil {
				return fmt.Errorf("error listing trades: %w", err)
			}
		}

		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionUnlockCmd = &cobra.Command{
	Use:   "unlock <user-id>...",
	Short: "Release processing locks and abandon pending flows",
	Long: `Clears the processing lock, pending flow and passkey entry of each user.
A lock held by a trade still in flight is released too, so only use this
for users whose lock outlived a crashed process.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		endSession, _ := cmd.Flags().GetBool("end-session")

		app, _, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		var failed bool
		for _, userID := range args {
			err := app.State.ReleaseLock(ctx, userID)
			if err == nil {
				err = app.State.ClearFlow(ctx, userID)
			}
			if err == nil {
				err = app.State.ClearPasskey(ctx, userID)
			}
			if err == nil && endSession {
				err = app.Sessions.End(ctx, userID)
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error unlocking '%s': %v\n", userID, err)
				failed = true
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unlocked '%s'\n", userID)
		}
		if failed {
			return fmt.Errorf("some users could not be unlocked")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionUnlockCmd)

	sessionInspectCmd.Flags().Int("trades", 10, "Number of recent trades to include (0 for none)")
	sessionUnlockCmd.Flags().Bool("end-session", false, "Also end the secure session so the passkey is asked again")
}
