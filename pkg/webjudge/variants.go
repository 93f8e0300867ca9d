package webjudge

import (
	"context"
	"fmt"
	"strings"

	"github.com/unclevikram/TripMind/pkg/judge"
	"github.com/unclevikram/TripMind/pkg/trajectory"
)

// evaluateFinalResponse judges the agent's final textual answer against the
// trailing screenshots in a single call. LastKScreenshots limits how many of
// the trailing screenshots are attached; zero attaches them all, up to the
// evidence cap.
func (e *Evaluator) evaluateFinalResponse(ctx context.Context, traj *trajectory.Trajectory) (*Outcome, error) {
	screenshots := traj.Screenshots
	if len(screenshots) > e.cfg.MaxEvidence {
		screenshots = screenshots[:e.cfg.MaxEvidence]
	}

	k := e.cfg.LastKScreenshots
	num := len(screenshots)
	if k > 0 {
		num = k
		if k < len(screenshots) {
			screenshots = screenshots[len(screenshots)-k:]
		}
	}

	text, err := renderTemplate(finalResponsePromptTemplate, finalResponsePromptData{
		Task:           traj.Description,
		Response:       traj.FinalResponse,
		NumScreenshots: num,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render final-response prompt: %w", err)
	}

	segments := []judge.Segment{judge.TextSegment(text)}
	for _, screenshot := range screenshots {
		url, err := trajectory.EncodeImage(screenshot)
		if err != nil {
			return nil, err
		}
		segments = append(segments, judge.ImageSegment(url))
	}
	segments = append(segments, judge.TextSegment("Your verdict:\n"))

	conv := judge.Conversation{
		judge.SystemTurn(finalResponseSystemMsg),
		judge.UserTurn(segments...),
	}

	response, err := synthesizeVerdict(ctx, e.client, conv)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Response:       response,
		PredictedLabel: ExtractLabel(response, e.cfg.Mode),
		PromptText:     text,
		SystemMsg:      finalResponseSystemMsg,
	}, nil
}

// evaluateTranscript judges a rendered thought/action transcript against the
// final screenshot.
func (e *Evaluator) evaluateTranscript(ctx context.Context, traj *trajectory.Trajectory) (*Outcome, error) {
	if len(traj.Screenshots) == 0 {
		return nil, fmt.Errorf("task '%s' has no screenshots", traj.TaskID)
	}

	text, err := renderTemplate(transcriptPromptTemplate, transcriptPromptData{
		Task:       traj.Description,
		Transcript: formatTranscript(traj.Thoughts, traj.ActionHistory),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render transcript prompt: %w", err)
	}

	lastShot, err := trajectory.EncodeImage(traj.Screenshots[len(traj.Screenshots)-1])
	if err != nil {
		return nil, err
	}

	conv := judge.Conversation{
		judge.SystemTurn(transcriptSystemMsg),
		judge.UserTurn(judge.TextSegment(text), judge.ImageSegment(lastShot)),
	}

	response, err := synthesizeVerdict(ctx, e.client, conv)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Response:       response,
		PredictedLabel: ExtractLabel(response, e.cfg.Mode),
		PromptText:     text,
		SystemMsg:      transcriptSystemMsg,
	}, nil
}

// formatTranscript pairs each thought with its action. Paragraph breaks
// inside a step are collapsed so every step renders as exactly two lines.
func formatTranscript(thoughts, actions []string) string {
	var b strings.Builder
	n := min(len(thoughts), len(actions))
	for i := 0; i < n; i++ {
		thought := strings.ReplaceAll(thoughts[i], "\n\n", " ")
		action := strings.ReplaceAll(actions[i], "\n\n", " ")
		fmt.Fprintf(&b, "Thought %d: %s\nAction %d: %s\n\n", i+1, thought, i+1, action)
	}
	return strings.Trim(b.String(), "\n")
}
