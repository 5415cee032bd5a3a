// Package cli wires the lifestream commands: the API server, one-shot
// mining, memory questions, and storage stats.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lifestream",
	Short: "Life-event pattern mining and memory queries",
	Long:  "Lifestream ingests life events (GPS, purchases, meetings, health), mines them for behavioral patterns, and answers natural-language questions about your own history.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statsCmd)
}
