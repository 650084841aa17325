package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayasync/backend/internal/handlers"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ayasync server %s (api v1)\n", handlers.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
