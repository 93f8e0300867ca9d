package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root webjudge command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "webjudge",
		Short: "LLM-as-a-judge evaluation of web agent trajectories",
		Long: `webjudge evaluates recorded browser-agent trajectories with an LLM judge.
It extracts the key points of each task, scores the trajectory's screenshots for
relevance, and synthesizes a success/failure verdict from the promoted evidence.`,
	}

	// Add subcommands
	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewStatsCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
