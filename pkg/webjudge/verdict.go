package webjudge

import (
	"context"
	"fmt"
	"strings"

	"github.com/unclevikram/TripMind/pkg/judge"
	"github.com/unclevikram/TripMind/pkg/trajectory"
)

// buildVerdictConversation assembles the single verdict request: system
// instructions, an optional leading turn with the task's reference images,
// and a final turn carrying the prompt text plus the promoted screenshots.
// It returns the conversation and the rendered prompt text for the results
// log.
func buildVerdictConversation(traj *trajectory.Trajectory, keyPoints string,
	promotedShots []ImageJudgment, inputImages []string) (judge.Conversation, string, error) {

	reasons := make([]string, 0, len(promotedShots))
	for _, shot := range promotedShots {
		if shot.reasoning != "" {
			reasons = append(reasons, shot.reasoning)
		}
	}

	data := verdictPromptData{
		Task:          traj.Description,
		KeyPoints:     keyPoints,
		ActionHistory: formatActionHistory(traj.ActionHistory, traj.Thoughts),
		Reasons:       numberLines(reasons),
	}

	tmpl := verdictPromptTemplate
	if len(promotedShots) == 0 {
		tmpl = verdictReducedPromptTemplate
	}
	text, err := renderTemplate(tmpl, data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render verdict prompt: %w", err)
	}

	conv := judge.Conversation{judge.SystemTurn(verdictSystemMsg)}

	if len(inputImages) > 0 {
		segments := []judge.Segment{judge.TextSegment("The input images are:")}
		for _, url := range inputImages {
			segments = append(segments, judge.ImageSegment(url))
		}
		conv = append(conv, judge.UserTurn(segments...))
	}

	segments := []judge.Segment{judge.TextSegment(text)}
	for _, shot := range promotedShots {
		segments = append(segments, judge.ImageSegment(shot.dataURL))
	}
	conv = append(conv, judge.UserTurn(segments...))

	return conv, text, nil
}

// synthesizeVerdict makes the one verdict call.
func synthesizeVerdict(ctx context.Context, client judge.Client, conv judge.Conversation) (string, error) {
	response, err := client.Generate(ctx, conv)
	if err != nil {
		return "", fmt.Errorf("verdict synthesis failed: %w", err)
	}
	return response, nil
}

// formatActionHistory numbers the agent's actions, interleaving per-action
// reasoning when the trajectory recorded it. Actions without a matching
// thought are dropped in that case, mirroring a pairwise walk of the two
// lists.
func formatActionHistory(actions, thoughts []string) string {
	var lines []string
	if len(thoughts) > 0 {
		n := min(len(actions), len(thoughts))
		lines = make([]string, 0, n)
		for i := 0; i < n; i++ {
			lines = append(lines, fmt.Sprintf("%d. %s. Reasoning: %s", i+1, actions[i], thoughts[i]))
		}
	} else {
		lines = make([]string, 0, len(actions))
		for i, action := range actions {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, action))
		}
	}
	return strings.Join(lines, "\n")
}

func numberLines(items []string) string {
	lines := make([]string, 0, len(items))
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))
	}
	return strings.Join(lines, "\n")
}
