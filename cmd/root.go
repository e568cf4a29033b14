// Package cmd provides the CLI commands for dataquay.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - version: build and configuration information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dataquay",
	Short: "Dataquay - conversational analytics over your data",
	Long: `Dataquay turns natural-language questions into SQL, runs them against
a query service and streams back a chart or table artifact built by the model.

Run 'dataquay serve' to start the HTTP API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
