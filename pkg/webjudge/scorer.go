package webjudge

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclevikram/TripMind/pkg/config"
	"github.com/unclevikram/TripMind/pkg/judge"
	"github.com/unclevikram/TripMind/pkg/trajectory"
)

const (
	scoreMarker     = "### Score"
	reasoningMarker = "### Reasoning:"
)

var scoreDigitRe = regexp.MustCompile(`[1-5]`)

// ImageJudgment records the judge's relevance assessment of one screenshot.
// A zero score means the response could not be parsed; such screenshots are
// never promoted.
type ImageJudgment struct {
	Screenshot string `json:"screenshot"`
	Response   string `json:"response"`
	Score      int    `json:"score"`

	reasoning string
	dataURL   string
}

// scoreScreenshots fans out one relevance-scoring call per screenshot,
// bounded by the configured concurrency, and returns judgments in screenshot
// order. A parse miss costs the screenshot its promotion, not the task its
// evaluation.
func scoreScreenshots(ctx context.Context, client judge.Client, cfg *config.Config, logger *zap.Logger,
	task, keyPoints string, screenshots, inputImages []string) ([]ImageJudgment, error) {

	text, err := renderTemplate(scorePromptTemplate, scorePromptData{Task: task, KeyPoints: keyPoints})
	if err != nil {
		return nil, fmt.Errorf("failed to render score prompt: %w", err)
	}

	judgments := make([]ImageJudgment, len(screenshots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.ScoreConcurrency)

	for i, screenshot := range screenshots {
		i, screenshot := i, screenshot
		g.Go(func() error {
			dataURL, err := trajectory.EncodeImage(screenshot)
			if err != nil {
				return err
			}

			conv := judge.Conversation{judge.SystemTurn(scoreSystemMsg)}
			if len(inputImages) > 0 {
				segments := []judge.Segment{judge.TextSegment("The input images are:")}
				for _, url := range inputImages {
					segments = append(segments, judge.ImageSegment(url))
				}
				conv = append(conv, judge.UserTurn(segments...))
			}
			conv = append(conv, judge.UserTurn(judge.TextSegment(text), judge.ImageSegment(dataURL)))

			response, err := client.Generate(gctx, conv)
			if err != nil {
				return fmt.Errorf("relevance scoring for '%s' failed: %w", screenshot, err)
			}

			score, reasoning, ok := parseScoreResponse(response)
			if !ok {
				logger.Warn("could not parse relevance score, treating as irrelevant",
					zap.String("screenshot", screenshot))
			}

			judgments[i] = ImageJudgment{
				Screenshot: screenshot,
				Response:   response,
				Score:      score,
				reasoning:  reasoning,
				dataURL:    dataURL,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return judgments, nil
}

// parseScoreResponse extracts the 1-5 score and the reasoning text. The score
// is the first digit after the score marker; the reasoning is the text after
// the last reasoning marker, cut at the score marker and collapsed onto one
// line.
func parseScoreResponse(response string) (int, string, bool) {
	_, scoreText, ok := strings.Cut(response, scoreMarker)
	if !ok {
		return 0, "", false
	}
	digit := scoreDigitRe.FindString(scoreText)
	if digit == "" {
		return 0, "", false
	}
	score, err := strconv.Atoi(digit)
	if err != nil {
		return 0, "", false
	}

	reasoning := response
	if idx := strings.LastIndex(reasoning, reasoningMarker); idx >= 0 {
		reasoning = reasoning[idx+len(reasoningMarker):]
	}
	reasoning = strings.TrimSpace(reasoning)
	if before, _, found := strings.Cut(reasoning, scoreMarker); found {
		reasoning = before
	}
	reasoning = strings.TrimSpace(strings.ReplaceAll(reasoning, "\n", " "))

	return score, reasoning, true
}

// promote selects the screenshots whose score reaches the threshold and
// applies the evidence cap. The positional policy keeps the first maxEvidence
// promoted screenshots in trajectory order; the top-score policy keeps the
// highest-scored ones, still presented in trajectory order.
func promote(judgments []ImageJudgment, threshold, maxEvidence int, capPolicy string) []ImageJudgment {
	selected := make([]ImageJudgment, 0, len(judgments))
	for _, j := range judgments {
		if j.Score >= threshold {
			selected = append(selected, j)
		}
	}

	if len(selected) <= maxEvidence {
		return selected
	}

	switch capPolicy {
	case config.CapPolicyTopScore:
		order := make([]int, len(selected))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return selected[order[a]].Score > selected[order[b]].Score
		})
		keep := order[:maxEvidence]
		sort.Ints(keep)
		capped := make([]ImageJudgment, 0, maxEvidence)
		for _, idx := range keep {
			capped = append(capped, selected[idx])
		}
		return capped
	default:
		return selected[:maxEvidence]
	}
}
