// Package config defines the explicit configuration object threaded through
// the evaluator. Nothing in the pipeline reads environment variables or other
// ambient state; the CLI resolves everything into a Config up front.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/unclevikram/TripMind/pkg/observability"
)

// Evaluator modes. WebJudge is the key-point pipeline; the other two are the
// simpler single-prompt variants that share its judge and label contracts.
const (
	ModeWebJudge      = "webjudge"
	ModeFinalResponse = "final-response"
	ModeTranscript    = "transcript"
)

// Evidence-cap truncation policies for promoted screenshots.
const (
	CapPolicyPositional = "positional"
	CapPolicyTopScore   = "top-score"
)

// JudgeConfig carries everything one judge client instance needs. Each batch
// worker constructs its own client from a copy of this, so credentials are
// never shared mutable state.
type JudgeConfig struct {
	Model       string  `json:"model"`
	BaseURL     string  `json:"baseUrl"`
	APIKey      string  `json:"apiKey"`
	MaxTokens   int64   `json:"maxTokens"`
	Temperature float64 `json:"temperature"`

	// RequestsPerMinute throttles calls to the judge service. Zero disables
	// throttling.
	RequestsPerMinute int `json:"requestsPerMinute"`

	// RetryInitialInterval seeds the exponential backoff between retry
	// attempts. Zero selects the backoff library default.
	RetryInitialInterval time.Duration `json:"retryInitialInterval"`
}

// Config is the full evaluation configuration.
type Config struct {
	TrajectoriesDir string `json:"trajectoriesDir"`
	OutputDir       string `json:"outputDir"`
	Mode            string `json:"mode"`

	Judge JudgeConfig `json:"judge"`

	// ScoreThreshold is the minimum relevance score a screenshot must reach
	// to be promoted into the verdict prompt.
	ScoreThreshold int `json:"scoreThreshold"`
	// MaxEvidence caps how many promoted screenshots reach the verdict
	// prompt.
	MaxEvidence int    `json:"maxEvidence"`
	CapPolicy   string `json:"capPolicy"`
	// ScoreConcurrency bounds concurrent relevance-scoring calls within one
	// trajectory.
	ScoreConcurrency int `json:"scoreConcurrency"`
	// Workers is the number of parallel batch workers, each owning a judge
	// client.
	Workers int `json:"workers"`
	// LastKScreenshots limits the final-response variant to the last K
	// screenshots. Zero means all (up to MaxEvidence).
	LastKScreenshots int `json:"lastKScreenshots"`

	Logger observability.LoggerConfig `json:"logger"`
}

// Default returns a Config with the reference defaults filled in.
func Default() *Config {
	return &Config{
		Mode: ModeWebJudge,
		Judge: JudgeConfig{
			Model:       "gpt-4o",
			BaseURL:     "https://api.openai.com/v1",
			MaxTokens:   512,
			Temperature: 0,
		},
		ScoreThreshold:   3,
		MaxEvidence:      50,
		CapPolicy:        CapPolicyPositional,
		ScoreConcurrency: 8,
		Workers:          runtime.NumCPU(),
		Logger: observability.LoggerConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// FromFile loads a YAML config file on top of the defaults.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	return cfg, nil
}

// Validate reports the first problem that would make a run unusable.
func (c *Config) Validate() error {
	if c.TrajectoriesDir == "" {
		return fmt.Errorf("trajectoriesDir must be set")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("outputDir must be set")
	}
	switch c.Mode {
	case ModeWebJudge, ModeFinalResponse, ModeTranscript:
	default:
		return fmt.Errorf("unknown evaluator mode: %s", c.Mode)
	}
	switch c.CapPolicy {
	case CapPolicyPositional, CapPolicyTopScore:
	default:
		return fmt.Errorf("unknown evidence cap policy: %s", c.CapPolicy)
	}
	if c.Judge.Model == "" {
		return fmt.Errorf("judge model must be set")
	}
	if c.Judge.APIKey == "" {
		return fmt.Errorf("judge API key must be set")
	}
	if c.ScoreThreshold < 1 || c.ScoreThreshold > 5 {
		return fmt.Errorf("scoreThreshold must be between 1 and 5, got %d", c.ScoreThreshold)
	}
	if c.MaxEvidence <= 0 {
		return fmt.Errorf("maxEvidence must be positive, got %d", c.MaxEvidence)
	}
	if c.ScoreConcurrency <= 0 {
		return fmt.Errorf("scoreConcurrency must be positive, got %d", c.ScoreConcurrency)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}
