package webjudge

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclevikram/TripMind/pkg/config"
	"github.com/unclevikram/TripMind/pkg/judge"
	"github.com/unclevikram/TripMind/pkg/trajectory"
)

// fakeJudge answers by inspecting the system instruction of each request.
// Score requests are answered per screenshot, keyed by the image data URL.
type fakeJudge struct {
	mu sync.Mutex

	keyPointsResponse string
	scoreResponses    map[string]string
	verdictResponse   string

	verdictConv judge.Conversation
	calls       int
}

func (f *fakeJudge) ModelName() string { return "fake-judge" }

func (f *fakeJudge) Generate(_ context.Context, conv judge.Conversation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	switch conv[0].Segments[0].Text {
	case keyPointsSystemMsg:
		return f.keyPointsResponse, nil
	case scoreSystemMsg:
		last := conv[len(conv)-1]
		url := last.Segments[len(last.Segments)-1].ImageURL
		resp, ok := f.scoreResponses[url]
		if !ok {
			return "", fmt.Errorf("no canned score response for screenshot")
		}
		return resp, nil
	default:
		f.verdictConv = conv
		return f.verdictResponse, nil
	}
}

func writePNG(t *testing.T, path string, withAlpha bool) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	c := color.RGBA{R: 200, G: 100, B: 50, A: 255}
	if withAlpha {
		c.A = 128
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, c)
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func makeScreenshots(t *testing.T, n int) []string {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("step_%d.png", i+1))
		writePNG(t, paths[i], false)
	}
	return paths
}

func scoreResponse(score int) string {
	return fmt.Sprintf("### Reasoning: observation for score %d\n### Score: %d", score, score)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Mode = config.ModeWebJudge
	return cfg
}

func TestEvaluateWebJudge(t *testing.T) {
	screenshots := makeScreenshots(t, 3)

	scoreResponses := map[string]string{}
	for i, path := range screenshots {
		url, err := trajectory.EncodeImage(path)
		require.NoError(t, err)
		scoreResponses[url] = scoreResponse([]int{4, 2, 5}[i])
	}

	fj := &fakeJudge{
		keyPointsResponse: "**Key Points**:\n1. Filter by lowest price\n2. Select dates",
		scoreResponses:    scoreResponses,
		verdictResponse:   "Thoughts: all key points are satisfied\nStatus: \"success\"",
	}

	traj := &trajectory.Trajectory{
		TaskID:        "task-1",
		Description:   "Find the cheapest hotel",
		ActionHistory: []string{"open site", "apply price filter", "select result"},
		Screenshots:   screenshots,
	}

	evaluator := New(fj, testConfig(), zap.NewNop())
	outcome, err := evaluator.Evaluate(context.Background(), traj)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.PredictedLabel)
	assert.Equal(t, fj.verdictResponse, outcome.Response)
	assert.Equal(t, verdictSystemMsg, outcome.SystemMsg)
	assert.Contains(t, outcome.KeyPoints, "Filter by lowest price")

	// One key-point call, one per screenshot, one verdict.
	assert.Equal(t, 5, fj.calls)

	require.Len(t, outcome.ImageJudgments, 3)
	assert.Equal(t, 4, outcome.ImageJudgments[0].Score)
	assert.Equal(t, 2, outcome.ImageJudgments[1].Score)
	assert.Equal(t, 5, outcome.ImageJudgments[2].Score)

	// Default threshold 3: screenshots 1 and 3 are promoted.
	assert.Contains(t, outcome.PromptText, "The potentially important snapshots")
	assert.Contains(t, outcome.PromptText, "1. observation for score 4")
	assert.Contains(t, outcome.PromptText, "2. observation for score 5")
	assert.Contains(t, outcome.PromptText, "1. open site\n2. apply price filter\n3. select result")

	// Verdict request: system turn plus one user turn with text and the two
	// promoted screenshots.
	require.Len(t, fj.verdictConv, 2)
	userTurn := fj.verdictConv[1]
	require.Len(t, userTurn.Segments, 3)
	assert.Equal(t, outcome.PromptText, userTurn.Segments[0].Text)
	assert.NotEmpty(t, userTurn.Segments[1].ImageURL)
	assert.NotEmpty(t, userTurn.Segments[2].ImageURL)
}

func TestEvaluateWebJudgeNothingPromoted(t *testing.T) {
	screenshots := makeScreenshots(t, 2)

	scoreResponses := map[string]string{}
	for _, path := range screenshots {
		url, err := trajectory.EncodeImage(path)
		require.NoError(t, err)
		scoreResponses[url] = scoreResponse(1)
	}

	fj := &fakeJudge{
		keyPointsResponse: "**Key Points**:\n1. Submit the form",
		scoreResponses:    scoreResponses,
		verdictResponse:   "Thoughts: no evidence of submission\nStatus: \"failure\"",
	}

	traj := &trajectory.Trajectory{
		TaskID:        "task-2",
		Description:   "Submit the contact form",
		ActionHistory: []string{"type message"},
		Screenshots:   screenshots,
	}

	evaluator := New(fj, testConfig(), zap.NewNop())
	outcome, err := evaluator.Evaluate(context.Background(), traj)
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.PredictedLabel)
	// The reduced prompt drops the snapshot section entirely.
	assert.NotContains(t, outcome.PromptText, "The potentially important snapshots")

	// The verdict user turn carries no images.
	userTurn := fj.verdictConv[len(fj.verdictConv)-1]
	require.Len(t, userTurn.Segments, 1)
	assert.Equal(t, outcome.PromptText, userTurn.Segments[0].Text)
}

func TestEvaluateWebJudgeUnparseableScore(t *testing.T) {
	screenshots := makeScreenshots(t, 1)

	url, err := trajectory.EncodeImage(screenshots[0])
	require.NoError(t, err)

	fj := &fakeJudge{
		keyPointsResponse: "**Key Points**:\n1. Anything",
		scoreResponses:    map[string]string{url: "I cannot assess this image."},
		verdictResponse:   "Thoughts: nothing usable\nStatus: \"failure\"",
	}

	traj := &trajectory.Trajectory{
		TaskID:      "task-3",
		Description: "Do something",
		Screenshots: screenshots,
	}

	evaluator := New(fj, testConfig(), zap.NewNop())
	outcome, err := evaluator.Evaluate(context.Background(), traj)
	require.NoError(t, err)

	// A parse miss is recorded as score 0 and the pipeline continues.
	require.Len(t, outcome.ImageJudgments, 1)
	assert.Equal(t, 0, outcome.ImageJudgments[0].Score)
	assert.Equal(t, "I cannot assess this image.", outcome.ImageJudgments[0].Response)
	assert.Equal(t, 0, outcome.PredictedLabel)
}

func TestEvaluateWebJudgeWithInputImages(t *testing.T) {
	screenshots := makeScreenshots(t, 1)
	inputDir := t.TempDir()
	inputImage := filepath.Join(inputDir, "reference.png")
	writePNG(t, inputImage, true)

	url, err := trajectory.EncodeImage(screenshots[0])
	require.NoError(t, err)

	fj := &fakeJudge{
		keyPointsResponse: "**Key Points**:\n1. Match the reference image",
		scoreResponses:    map[string]string{url: scoreResponse(5)},
		verdictResponse:   "Thoughts: matches\nStatus: \"success\"",
	}

	traj := &trajectory.Trajectory{
		TaskID:      "task-4",
		Description: "Find the product shown in the image",
		InputImages: []string{inputImage},
		Screenshots: screenshots,
	}

	evaluator := New(fj, testConfig(), zap.NewNop())
	outcome, err := evaluator.Evaluate(context.Background(), traj)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.PredictedLabel)

	// Reference images ride in a dedicated turn before the verdict prompt.
	require.Len(t, fj.verdictConv, 3)
	refTurn := fj.verdictConv[1]
	require.Len(t, refTurn.Segments, 2)
	assert.Equal(t, "The input images are:", refTurn.Segments[0].Text)
	assert.NotEmpty(t, refTurn.Segments[1].ImageURL)
}

func TestFormatActionHistory(t *testing.T) {
	tt := map[string]struct {
		actions  []string
		thoughts []string
		expected string
	}{
		"actions only": {
			actions:  []string{"click", "type"},
			expected: "1. click\n2. type",
		},
		"thoughts interleaved": {
			actions:  []string{"click", "type"},
			thoughts: []string{"need the menu", "fill the field"},
			expected: "1. click. Reasoning: need the menu\n2. type. Reasoning: fill the field",
		},
		"pairing stops at shorter list": {
			actions:  []string{"click", "type", "submit"},
			thoughts: []string{"need the menu"},
			expected: "1. click. Reasoning: need the menu",
		},
		"empty": {
			expected: "",
		},
	}

	for name, tc := range tt {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, formatActionHistory(tc.actions, tc.thoughts))
		})
	}
}
