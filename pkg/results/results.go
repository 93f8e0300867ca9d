// Package results manages the append-only JSONL evaluation log: record
// augmentation, resumability scans, and aggregate statistics.
package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/unclevikram/TripMind/pkg/trajectory"
	"github.com/unclevikram/TripMind/pkg/webjudge"
)

// Stats holds aggregate statistics over a results log. Tasks that errored
// before producing a verdict count against the success rate.
type Stats struct {
	ResultsFile  string  `json:"resultsFile"`
	TasksTotal   int     `json:"tasksTotal"`
	TasksPassed  int     `json:"tasksPassed"`
	TasksErrored int     `json:"tasksErrored"`
	SuccessRate  float64 `json:"successRate"`
}

// LogFileName encodes the evaluator configuration into the log name so runs
// with different settings never share a log.
func LogFileName(mode, model string, scoreThreshold int) string {
	return fmt.Sprintf("%s_%s_score_threshold_%d_results.jsonl", mode, model, scoreThreshold)
}

// BuildRecord augments the trajectory's raw result.json document with the
// evaluation outcome. Unknown fields from the recorded document pass through
// untouched.
func BuildRecord(traj *trajectory.Trajectory, outcome *webjudge.Outcome) map[string]any {
	record := make(map[string]any, len(traj.Record)+7)
	for k, v := range traj.Record {
		record[k] = v
	}

	record["task_id"] = traj.TaskID
	record["input_text"] = outcome.PromptText
	record["system_msg"] = outcome.SystemMsg
	record["evaluation_details"] = map[string]any{
		"response":        outcome.Response,
		"predicted_label": outcome.PredictedLabel,
	}
	record["predicted_label"] = outcome.PredictedLabel
	if outcome.ImageJudgments != nil {
		record["image_judge_record"] = outcome.ImageJudgments
	}
	if outcome.KeyPoints != "" {
		record["key_points"] = outcome.KeyPoints
	}
	return record
}

// BuildErrorRecord produces the log entry for a task whose evaluation failed.
// The record carries a zero label so the aggregate counts it as a failure.
func BuildErrorRecord(taskID string, evalErr error) map[string]any {
	return map[string]any{
		"task_id":         taskID,
		"errored":         true,
		"error":           evalErr.Error(),
		"predicted_label": 0,
	}
}

// Log is an append-only JSONL results log. One record per line; writes are
// serialized so concurrent producers must funnel through a single Log.
type Log struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// OpenLog opens (creating if needed) the results log at path for appending.
func OpenLog(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open results log '%s': %w", path, err)
	}
	return &Log{path: path, file: f}, nil
}

// Path returns the log's file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one record as a JSON line.
func (l *Log) Append(record map[string]any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal result record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append to results log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// DoneTaskIDs scans an existing log and returns the task IDs it already
// contains, so a re-run can skip them. A missing log means a fresh run.
func DoneTaskIDs(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("failed to open results log '%s': %w", path, err)
	}
	defer f.Close()

	done := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		var record struct {
			TaskID string `json:"task_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("results log '%s' has a malformed line: %w", path, err)
		}
		if record.TaskID != "" {
			done[record.TaskID] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan results log '%s': %w", path, err)
	}
	return done, nil
}

// CalculateStats reads a results log and computes the aggregate numbers.
func CalculateStats(path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open results log '%s': %w", path, err)
	}
	defer f.Close()

	stats := Stats{ResultsFile: path}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		var record struct {
			PredictedLabel int  `json:"predicted_label"`
			Errored        bool `json:"errored"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return Stats{}, fmt.Errorf("results log '%s' has a malformed line: %w", path, err)
		}
		stats.TasksTotal++
		if record.Errored {
			stats.TasksErrored++
		} else if record.PredictedLabel == 1 {
			stats.TasksPassed++
		}
	}
	if err := scanner.Err(); err != nil {
		return Stats{}, fmt.Errorf("failed to scan results log '%s': %w", path, err)
	}

	if stats.TasksTotal > 0 {
		stats.SuccessRate = float64(stats.TasksPassed) / float64(stats.TasksTotal)
	}
	return stats, nil
}
