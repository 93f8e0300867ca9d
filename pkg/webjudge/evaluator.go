// Package webjudge scores recorded browser-agent trajectories with an LLM
// judge. The main pipeline extracts the task's key points, rates every
// screenshot for relevance, and synthesizes a success/failure verdict from
// the promoted evidence. Two simpler sibling evaluators share its judge and
// label contracts.
package webjudge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unclevikram/TripMind/pkg/config"
	"github.com/unclevikram/TripMind/pkg/judge"
	"github.com/unclevikram/TripMind/pkg/trajectory"
)

// Outcome is the full result of evaluating one trajectory. PromptText and
// SystemMsg are recorded so a verdict can be audited without replaying the
// judge call. ImageJudgments and KeyPoints are only set by the key-point
// pipeline.
type Outcome struct {
	Response       string
	PredictedLabel int
	PromptText     string
	SystemMsg      string
	ImageJudgments []ImageJudgment
	KeyPoints      string
}

// Evaluator runs one of the evaluation modes against trajectories using a
// single judge client.
type Evaluator struct {
	client judge.Client
	cfg    *config.Config
	logger *zap.Logger
}

func New(client judge.Client, cfg *config.Config, logger *zap.Logger) *Evaluator {
	return &Evaluator{client: client, cfg: cfg, logger: logger}
}

// Evaluate dispatches on the configured mode.
func (e *Evaluator) Evaluate(ctx context.Context, traj *trajectory.Trajectory) (*Outcome, error) {
	switch e.cfg.Mode {
	case config.ModeWebJudge:
		return e.evaluateWebJudge(ctx, traj)
	case config.ModeFinalResponse:
		return e.evaluateFinalResponse(ctx, traj)
	case config.ModeTranscript:
		return e.evaluateTranscript(ctx, traj)
	default:
		return nil, fmt.Errorf("unknown evaluator mode: %s", e.cfg.Mode)
	}
}

// evaluateWebJudge runs the key-point pipeline: key points, per-screenshot
// relevance scores, threshold promotion, one verdict call.
func (e *Evaluator) evaluateWebJudge(ctx context.Context, traj *trajectory.Trajectory) (*Outcome, error) {
	inputImages, err := encodeAll(traj.InputImages)
	if err != nil {
		return nil, err
	}

	keyPoints, err := extractKeyPoints(ctx, e.client, traj.Description, inputImages)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("extracted key points", zap.String("task_id", traj.TaskID))

	judgments, err := scoreScreenshots(ctx, e.client, e.cfg, e.logger,
		traj.Description, keyPoints, traj.Screenshots, inputImages)
	if err != nil {
		return nil, err
	}

	promoted := promote(judgments, e.cfg.ScoreThreshold, e.cfg.MaxEvidence, e.cfg.CapPolicy)
	e.logger.Debug("promoted screenshots",
		zap.String("task_id", traj.TaskID),
		zap.Int("scored", len(judgments)),
		zap.Int("promoted", len(promoted)),
	)

	conv, text, err := buildVerdictConversation(traj, keyPoints, promoted, inputImages)
	if err != nil {
		return nil, err
	}

	response, err := synthesizeVerdict(ctx, e.client, conv)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Response:       response,
		PredictedLabel: ExtractLabel(response, e.cfg.Mode),
		PromptText:     text,
		SystemMsg:      verdictSystemMsg,
		ImageJudgments: judgments,
		KeyPoints:      keyPoints,
	}, nil
}

func encodeAll(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	urls := make([]string, 0, len(paths))
	for _, path := range paths {
		url, err := trajectory.EncodeImage(path)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
