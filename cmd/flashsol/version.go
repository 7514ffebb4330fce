package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/flashsol"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of flashsol",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "flashsol version %s\n", strings.TrimSpace(flashsol.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
