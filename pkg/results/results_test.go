package results

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclevikram/TripMind/pkg/trajectory"
	"github.com/unclevikram/TripMind/pkg/webjudge"
)

func TestLogFileName(t *testing.T) {
	assert.Equal(t,
		"webjudge_gpt-4o_score_threshold_3_results.jsonl",
		LogFileName("webjudge", "gpt-4o", 3))
}

func TestBuildRecord(t *testing.T) {
	traj := &trajectory.Trajectory{
		TaskID:      "task-1",
		Description: "Find the cheapest hotel",
		Record: map[string]any{
			"task":        "Find the cheapest hotel",
			"extra_field": "survives",
		},
	}
	outcome := &webjudge.Outcome{
		Response:       "Thoughts: ok\nStatus: success",
		PredictedLabel: 1,
		PromptText:     "User Task: ...",
		SystemMsg:      "You are an expert...",
		ImageJudgments: []webjudge.ImageJudgment{{Screenshot: "s1.png", Response: "### Score: 4", Score: 4}},
		KeyPoints:      "1. Filter by lowest price",
	}

	record := BuildRecord(traj, outcome)

	assert.Equal(t, "survives", record["extra_field"])
	assert.Equal(t, "task-1", record["task_id"])
	assert.Equal(t, "User Task: ...", record["input_text"])
	assert.Equal(t, "You are an expert...", record["system_msg"])
	assert.Equal(t, 1, record["predicted_label"])
	assert.Equal(t, "1. Filter by lowest price", record["key_points"])

	details, ok := record["evaluation_details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Thoughts: ok\nStatus: success", details["response"])
	assert.Equal(t, 1, details["predicted_label"])

	// The raw trajectory record is untouched.
	assert.NotContains(t, traj.Record, "task_id")
}

func TestBuildRecordWithoutPipelineExtras(t *testing.T) {
	record := BuildRecord(
		&trajectory.Trajectory{TaskID: "task-1", Record: map[string]any{"task": "t"}},
		&webjudge.Outcome{Response: "SUCCESS", PredictedLabel: 1},
	)

	assert.NotContains(t, record, "image_judge_record")
	assert.NotContains(t, record, "key_points")
}

func TestBuildErrorRecord(t *testing.T) {
	record := BuildErrorRecord("task-9", errors.New("judge request failed"))

	assert.Equal(t, "task-9", record["task_id"])
	assert.Equal(t, true, record["errored"])
	assert.Equal(t, "judge request failed", record["error"])
	assert.Equal(t, 0, record["predicted_label"])
}

func TestLogAppendAndDoneTaskIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.jsonl")

	log, err := OpenLog(path)
	require.NoError(t, err)

	require.NoError(t, log.Append(map[string]any{"task_id": "task-1", "predicted_label": 1}))
	require.NoError(t, log.Append(map[string]any{"task_id": "task-2", "predicted_label": 0}))
	require.NoError(t, log.Close())

	// Every record is one JSON line.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		lines++
	}
	assert.Equal(t, 2, lines)

	done, err := DoneTaskIDs(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"task-1": true, "task-2": true}, done)
}

func TestDoneTaskIDsMissingLog(t *testing.T) {
	done, err := DoneTaskIDs(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestCalculateStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")

	log, err := OpenLog(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(map[string]any{"task_id": "a", "predicted_label": 1}))
	require.NoError(t, log.Append(map[string]any{"task_id": "b", "predicted_label": 0}))
	require.NoError(t, log.Append(map[string]any{"task_id": "c", "predicted_label": 1}))
	require.NoError(t, log.Append(BuildErrorRecord("d", errors.New("boom"))))
	require.NoError(t, log.Close())

	stats, err := CalculateStats(path)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TasksTotal)
	assert.Equal(t, 2, stats.TasksPassed)
	assert.Equal(t, 1, stats.TasksErrored)
	// Errored tasks count against the success rate.
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
}
