package tests

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclevikram/TripMind/e2e/servers/openai"
	"github.com/unclevikram/TripMind/pkg/config"
	"github.com/unclevikram/TripMind/pkg/runner"
)

// startServer boots a mock judge endpoint and returns it with its base URL.
func startServer(t *testing.T) (*openai.MockOpenAIServer, string) {
	t.Helper()

	server := openai.NewMockOpenAIServer()
	baseURL, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Stop() })
	return server, baseURL
}

func writeTrajectory(t *testing.T, dir, taskID, task string, screenshots int) {
	t.Helper()

	taskDir := filepath.Join(dir, taskID)
	require.NoError(t, os.MkdirAll(filepath.Join(taskDir, "trajectory"), 0o755))

	result := map[string]any{
		"task":           task,
		"action_history": []string{"type query into search box", "click the price filter"},
		"thoughts":       []string{"need to search first", "now narrow the results"},
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(taskDir, "result.json"), data, 0o644))

	for i := 1; i <= screenshots; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		f, err := os.Create(filepath.Join(taskDir, "trajectory", fmt.Sprintf("step_%d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
}

func pipelineConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.TrajectoriesDir = t.TempDir()
	cfg.OutputDir = t.TempDir()
	cfg.Workers = 1
	cfg.ScoreConcurrency = 2
	cfg.Judge.BaseURL = baseURL
	cfg.Judge.APIKey = "test-key"
	cfg.Judge.RetryInitialInterval = time.Millisecond
	return cfg
}

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}
	require.NoError(t, scanner.Err())
	return records
}

// The full key-point pipeline against a scripted judge: one key-point call,
// one score call per screenshot, and a verdict call that carries the
// screenshots which cleared the threshold.
func TestKeyPointPipelinePasses(t *testing.T) {
	server, baseURL := startServer(t)
	cfg := pipelineConfig(t, baseURL)
	writeTrajectory(t, cfg.TrajectoriesDir, "hotel-task", "Find the cheapest hotel in Boston", 2)

	server.Expect(&openai.Expectation{
		Name:     "key-points",
		Matcher:  openai.KeyPointCall(),
		Response: openai.KeyPointsCompletion("Search for hotels in Boston", "Filter by lowest price"),
	})
	server.Expect(&openai.Expectation{
		Name:     "scores",
		Matcher:  openai.ScoreCall(),
		Response: openai.ScoreCompletion("the price filter is visibly applied", 4),
	})
	server.Expect(&openai.Expectation{
		Name:     "verdict",
		Matcher:  openai.VerdictCall(),
		Response: openai.VerdictCompletion("every key point is satisfied", "success"),
	})

	summary, err := runner.New(cfg, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 0, summary.Errored)

	// One key-point call, two score calls, one verdict call.
	assert.Equal(t, 4, server.RequestCount())
	assert.Len(t, server.RequestsMatchedBy("key-points"), 1)
	assert.Len(t, server.RequestsMatchedBy("scores"), 2)

	verdicts := server.RequestsMatchedBy("verdict")
	require.Len(t, verdicts, 1)
	verdict := verdicts[0].Raw
	assert.Equal(t, 2, verdict.ImageCount())
	assert.Contains(t, verdict.Text(), "Filter by lowest price")
	assert.Contains(t, verdict.Text(), "the price filter is visibly applied")
	assert.Contains(t, verdict.Text(), "The potentially important snapshots")

	records := readRecords(t, summary.ResultsFile)
	require.Len(t, records, 1)
	record := records[0]
	assert.Equal(t, "hotel-task", record["task_id"])
	assert.Equal(t, float64(1), record["predicted_label"])
	assert.Contains(t, record["key_points"], "Filter by lowest price")

	judgeRecord, ok := record["image_judge_record"].([]any)
	require.True(t, ok)
	require.Len(t, judgeRecord, 2)
	first, ok := judgeRecord[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4), first["score"])
}

// When no screenshot clears the threshold the verdict call carries no images
// and drops the snapshot section of the prompt.
func TestKeyPointPipelineNothingPromoted(t *testing.T) {
	server, baseURL := startServer(t)
	cfg := pipelineConfig(t, baseURL)
	writeTrajectory(t, cfg.TrajectoriesDir, "login-task", "Log into the account page", 2)

	server.Expect(&openai.Expectation{
		Name:     "key-points",
		Matcher:  openai.KeyPointCall(),
		Response: openai.KeyPointsCompletion("Open the account page"),
	})
	server.Expect(&openai.Expectation{
		Name:     "scores",
		Matcher:  openai.ScoreCall(),
		Response: openai.ScoreCompletion("nothing task-related is visible", 1),
	})
	server.Expect(&openai.Expectation{
		Name:     "verdict",
		Matcher:  openai.VerdictCall(),
		Response: openai.VerdictCompletion("no evidence the agent made progress", "failure"),
	})

	summary, err := runner.New(cfg, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Passed)
	assert.Equal(t, 0, summary.Errored)

	verdicts := server.RequestsMatchedBy("verdict")
	require.Len(t, verdicts, 1)
	verdict := verdicts[0].Raw
	assert.Equal(t, 0, verdict.ImageCount())
	assert.NotContains(t, verdict.Text(), "The potentially important snapshots")

	records := readRecords(t, summary.ResultsFile)
	require.Len(t, records, 1)
	assert.Equal(t, float64(0), records[0]["predicted_label"])
}

// A transient rate limit on a score call is retried and does not fail the task.
func TestKeyPointPipelineRetriesRateLimit(t *testing.T) {
	server, baseURL := startServer(t)
	cfg := pipelineConfig(t, baseURL)
	writeTrajectory(t, cfg.TrajectoriesDir, "retry-task", "Find the newest laptop listing", 1)

	server.Expect(&openai.Expectation{
		Name:     "key-points",
		Matcher:  openai.KeyPointCall(),
		Response: openai.KeyPointsCompletion("Sort by newest"),
	})
	// First score call is rate limited; the retry succeeds.
	server.Expect(&openai.Expectation{
		Name:     "rate-limit",
		Matcher:  openai.ScoreCall(),
		Response: openai.RateLimited(),
		Times:    1,
	})
	server.Expect(&openai.Expectation{
		Name:     "scores",
		Matcher:  openai.ScoreCall(),
		Response: openai.ScoreCompletion("the newest-first sort is applied", 5),
	})
	server.Expect(&openai.Expectation{
		Name:     "verdict",
		Matcher:  openai.VerdictCall(),
		Response: openai.VerdictCompletion("sort order matches the request", "success"),
	})

	summary, err := runner.New(cfg, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 0, summary.Errored)
	// key points + rate-limited score + retried score + verdict
	assert.Equal(t, 4, server.RequestCount())
}

// Transcript mode makes a single judge call carrying only the last screenshot.
func TestTranscriptModePipeline(t *testing.T) {
	server, baseURL := startServer(t)
	cfg := pipelineConfig(t, baseURL)
	cfg.Mode = config.ModeTranscript
	writeTrajectory(t, cfg.TrajectoriesDir, "settings-task", "Change the display name", 3)

	server.Expect(&openai.Expectation{
		Name:     "transcript",
		Matcher:  openai.TranscriptCall(),
		Response: openai.VerdictCompletion("the rename flow completes", "success"),
	})

	summary, err := runner.New(cfg, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, server.RequestCount())

	calls := server.RequestsMatchedBy("transcript")
	require.Len(t, calls, 1)
	req := calls[0].Raw
	assert.Equal(t, 1, req.ImageCount())
	assert.Contains(t, req.Text(), "Thought 1: need to search first")
	assert.Contains(t, req.Text(), "Action 2: click the price filter")
}
