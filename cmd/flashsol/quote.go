package main

import (
	"fmt"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/solana"
	"github.com/aretw0/flashsol/pkg/units"
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <mint> <sol-amount>",
	Short: "Price a buy of a token without trading",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mint, amount := args[0], args[1]
		if !solana.IsMintAddress(mint) {
			return fmt.Errorf("invalid token address %q", mint)
		}
		lamports, err := units.ParseUnits(amount, domain.SOLDecimals)
		if err != nil || lamports == 0 {
			return fmt.Errorf("invalid SOL amount %q", amount)
		}
		slippage, err := units.ParsePercentBps(mustString(cmd, "slippage"))
		if err != nil {
			return fmt.Errorf("invalid slippage: %w", err)
		}

		app, _, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		q, err := app.Router.Quote(ctx, domain.WrappedSOLMint, mint, lamports, slippage)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		decimals, err := app.Chain.TokenDecimals(ctx, mint)
		if err != nil {
			fmt.Fprintf(out, "Out:       %d base units (decimals unavailable: %v)\n", q.OutAmount, err)
		} else {
			fmt.Fprintf(out, "Out:       %s\n", units.FormatUnits(q.OutAmount, decimals))
			fmt.Fprintf(out, "Min out:   %s\n", units.FormatUnits(q.MinOutAmount, decimals))
		}
		fmt.Fprintf(out, "In:        %s SOL\n", units.FormatUnits(q.InAmount, domain.SOLDecimals))
		fmt.Fprintf(out, "Slippage:  %s%%\n", units.FormatBps(q.SlippageBps))
		if q.PriceImpactPct != "" {
			fmt.Fprintf(out, "Impact:    %s%%\n", q.PriceImpactPct)
		}
		return nil
	},
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().String("slippage", "5", "Slippage tolerance in percent")
}
