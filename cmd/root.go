// Package cmd defines the concierge CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Concierge - AI guest assistant for property management",
	Long: `Concierge answers guest messages for a short-term rental business.
It retrieves business knowledge, replays conversation history, calls the
configured model with booking tools, and serves the result over HTTP.

Run "concierge serve" to start the API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default ~/.concierge/config.yaml)")
}
