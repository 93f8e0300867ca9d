package webjudge

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/unclevikram/TripMind/pkg/judge"
)

const (
	keyPointsMarkerBold  = "**Key Points**:"
	keyPointsMarkerPlain = "Key Points:"
)

// extractKeyPoints asks the judge for the task's key points and normalizes
// the answer. inputImages are pre-encoded reference-image data URLs.
func extractKeyPoints(ctx context.Context, client judge.Client, task string, inputImages []string) (string, error) {
	text, err := renderTemplate(keyPointsPromptTemplate, keyPointsPromptData{Task: task})
	if err != nil {
		return "", fmt.Errorf("failed to render key-points prompt: %w", err)
	}

	segments := []judge.Segment{judge.TextSegment(text)}
	for _, url := range inputImages {
		segments = append(segments, judge.ImageSegment(url))
	}

	conv := judge.Conversation{
		judge.SystemTurn(keyPointsSystemMsg),
		judge.UserTurn(segments...),
	}

	response, err := client.Generate(ctx, conv)
	if err != nil {
		return "", fmt.Errorf("key-point extraction failed: %w", err)
	}

	return parseKeyPoints(response), nil
}

// parseKeyPoints pulls the list out of the judge's response. It prefers the
// bold marker, falls back to the text after the last plain marker, and when
// neither appears keeps the whole response so a sloppy judge still yields a
// usable list.
func parseKeyPoints(raw string) string {
	s := strings.ReplaceAll(raw, "\n\n", "\n")

	if _, after, ok := strings.Cut(s, keyPointsMarkerBold); ok {
		return stripLineIndent(after)
	}

	if idx := strings.LastIndex(s, keyPointsMarkerPlain); idx >= 0 {
		s = s[idx+len(keyPointsMarkerPlain):]
	}
	return stripLineIndent(s)
}

func stripLineIndent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeftFunc(line, unicode.IsSpace)
	}
	return strings.Join(lines, "\n")
}
