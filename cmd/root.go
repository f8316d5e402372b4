// Package cmd contains the eassistant command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eassistant",
	Short: "Conversation-aware question answering over a document corpus",
	Long: `eassistant answers questions grounded in a PostgreSQL document corpus.

It retrieves candidate documents by vector similarity, reranks them with a
secondary embedding model, and generates answers with conversation history
as context. Run "eassistant serve" to expose the HTTP API or
"eassistant ask" for a one-shot question.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
