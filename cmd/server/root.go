package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayasync/backend/internal/config"
	"github.com/ayasync/backend/pkg/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "AyaSync backend: REST API and realtime gateway",
	Long: `AyaSync backend serves the team, task, messaging and board REST API and
the realtime websocket gateway.

Configuration is read from the environment and an optional .env file.

  server            Start the HTTP server (same as "server serve")
  server migrate    Apply database migrations and seed the admin account
  server version    Print the server version`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init()
		cfg = config.Load()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
