package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/unclevikram/TripMind/pkg/results"
)

// NewStatsCmd creates the stats command for summarizing an existing results log.
func NewStatsCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "stats <results-log>",
		Short: "Summarize an existing results log",
		Long: `Compute aggregate statistics over a results log produced by "webjudge run".

Examples:
  webjudge stats out/webjudge_gpt-4o_score_threshold_3_results.jsonl
  webjudge stats -o json out/webjudge_gpt-4o_score_threshold_3_results.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := results.CalculateStats(args[0])
			if err != nil {
				return err
			}

			switch outputFormat {
			case "json":
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(stats)
			case "text":
				displayStats(stats)
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", outputFormat)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func displayStats(stats results.Stats) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	bold := color.New(color.Bold)

	bold.Println("=== Results Summary ===")
	fmt.Printf("Results log: %s\n", stats.ResultsFile)
	fmt.Printf("Total Tasks: %d\n", stats.TasksTotal)
	if stats.TasksErrored > 0 {
		red.Printf("Errored: %d\n", stats.TasksErrored)
	}
	if stats.TasksPassed == stats.TasksTotal {
		green.Printf("Passed: %d/%d\n", stats.TasksPassed, stats.TasksTotal)
	} else {
		fmt.Printf("Passed: %d/%d\n", stats.TasksPassed, stats.TasksTotal)
	}
	fmt.Printf("Success Rate: %.1f%%\n", stats.SuccessRate*100)
}
