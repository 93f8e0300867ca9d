package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/unclevikram/TripMind/pkg/config"
	"github.com/unclevikram/TripMind/pkg/observability"
	"github.com/unclevikram/TripMind/pkg/runner"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var (
		configFile       string
		trajectoriesDir  string
		outputDir        string
		mode             string
		model            string
		baseURL          string
		apiKey           string
		scoreThreshold   int
		maxEvidence      int
		capPolicy        string
		scoreConcurrency int
		workers          int
		lastK            int
		rpm              int
		logFile          string
		verbose          bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch evaluation",
		Long: `Run a batch evaluation over a directory of recorded trajectories.
Tasks already present in the results log are skipped, so an interrupted run can
be resumed by re-running the same command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configFile != "" {
				loaded, err := config.FromFile(configFile)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Flags override file values when explicitly set.
			flags := cmd.Flags()
			if flags.Changed("trajectories-dir") || cfg.TrajectoriesDir == "" {
				cfg.TrajectoriesDir = trajectoriesDir
			}
			if flags.Changed("output-dir") || cfg.OutputDir == "" {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("mode") {
				cfg.Mode = mode
			}
			if flags.Changed("model") {
				cfg.Judge.Model = model
			}
			if flags.Changed("base-url") {
				cfg.Judge.BaseURL = baseURL
			}
			if flags.Changed("score-threshold") {
				cfg.ScoreThreshold = scoreThreshold
			}
			if flags.Changed("max-evidence") {
				cfg.MaxEvidence = maxEvidence
			}
			if flags.Changed("cap-policy") {
				cfg.CapPolicy = capPolicy
			}
			if flags.Changed("score-concurrency") {
				cfg.ScoreConcurrency = scoreConcurrency
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if flags.Changed("last-k") {
				cfg.LastKScreenshots = lastK
			}
			if flags.Changed("rpm") {
				cfg.Judge.RequestsPerMinute = rpm
			}
			if flags.Changed("log-file") {
				cfg.Logger.LogFile = logFile
			}
			if verbose {
				cfg.Logger.Level = "debug"
			}

			// The credential is resolved here, once; nothing downstream reads
			// the environment.
			if apiKey != "" {
				cfg.Judge.APIKey = apiKey
			} else if cfg.Judge.APIKey == "" {
				cfg.Judge.APIKey = os.Getenv("OPENAI_API_KEY")
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			display := newProgressDisplay(verbose)
			r := runner.New(cfg, logger, runner.WithProgress(display.handleProgress))

			display.bold.Println("\n=== Starting Evaluation ===")
			display.cyan.Printf("Mode: %s  Model: %s  Threshold: %d\n",
				cfg.Mode, cfg.Judge.Model, cfg.ScoreThreshold)

			summary, err := r.Run(context.Background())
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}

			displaySummary(display, summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	cmd.Flags().StringVarP(&trajectoriesDir, "trajectories-dir", "t", "", "Directory of recorded trajectories (one subdirectory per task)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the results log")
	cmd.Flags().StringVar(&mode, "mode", config.ModeWebJudge, "Evaluator mode (webjudge, final-response, transcript)")
	cmd.Flags().StringVar(&model, "model", "gpt-4o", "Judge model name")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Judge API base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Judge API key (falls back to OPENAI_API_KEY)")
	cmd.Flags().IntVar(&scoreThreshold, "score-threshold", 3, "Minimum relevance score for a screenshot to be promoted")
	cmd.Flags().IntVar(&maxEvidence, "max-evidence", 50, "Maximum promoted screenshots in the verdict prompt")
	cmd.Flags().StringVar(&capPolicy, "cap-policy", config.CapPolicyPositional, "Evidence cap policy (positional, top-score)")
	cmd.Flags().IntVar(&scoreConcurrency, "score-concurrency", 8, "Concurrent scoring calls per trajectory")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel batch workers (default: number of CPUs)")
	cmd.Flags().IntVar(&lastK, "last-k", 0, "Final-response mode: judge only the last K screenshots (0 = all)")
	cmd.Flags().IntVar(&rpm, "rpm", 0, "Judge requests per minute (0 = unlimited)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Rotating JSON log file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	return cmd
}

// progressDisplay handles interactive progress display
type progressDisplay struct {
	verbose bool
	green   *color.Color
	red     *color.Color
	yellow  *color.Color
	cyan    *color.Color
	bold    *color.Color
}

func newProgressDisplay(verbose bool) *progressDisplay {
	return &progressDisplay{
		verbose: verbose,
		green:   color.New(color.FgGreen),
		red:     color.New(color.FgRed),
		yellow:  color.New(color.FgYellow),
		cyan:    color.New(color.FgCyan),
		bold:    color.New(color.Bold),
	}
}

func (d *progressDisplay) handleProgress(event runner.ProgressEvent) {
	prefix := fmt.Sprintf("[%d/%d] %s", event.Done, event.Total, event.TaskID)
	switch {
	case event.Err != nil:
		d.red.Printf("%s ✗ errored\n", prefix)
		if d.verbose {
			fmt.Printf("    Error: %v\n", event.Err)
		}
	case event.Label == 1:
		d.green.Printf("%s ✓ success\n", prefix)
	default:
		d.yellow.Printf("%s ✗ failure\n", prefix)
	}
}

func displaySummary(d *progressDisplay, summary *runner.Summary) {
	fmt.Println()
	d.bold.Println("=== Evaluation Complete ===")
	fmt.Printf("Results log: %s\n", summary.ResultsFile)
	fmt.Printf("Total Tasks: %d (skipped %d already done)\n", summary.Total, summary.Skipped)
	if summary.Evaluated == 0 {
		fmt.Println("Nothing to evaluate.")
		return
	}

	if summary.Errored > 0 {
		d.red.Printf("Errored: %d\n", summary.Errored)
	}
	if summary.Passed == summary.Evaluated {
		d.green.Printf("Passed: %d/%d\n", summary.Passed, summary.Evaluated)
	} else {
		fmt.Printf("Passed: %d/%d\n", summary.Passed, summary.Evaluated)
	}
	fmt.Printf("Success Rate: %.1f%%\n", summary.SuccessRate*100)
}
