// Package trajectory loads recorded browser-agent runs from disk and encodes
// their screenshots for the judge.
package trajectory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// screenshotsSubdir is the per-task directory holding the step screenshots.
const screenshotsSubdir = "trajectory"

var digitsRe = regexp.MustCompile(`\d+`)

// Trajectory is one recorded agent run: the task it attempted, the textual
// history of what it did, and the screenshots captured along the way.
type Trajectory struct {
	TaskID        string
	Description   string
	ActionHistory []string
	Thoughts      []string
	FinalResponse string
	// InputImages are reference images that came with the task itself, as
	// opposed to screenshots produced while solving it.
	InputImages []string
	// Screenshots are absolute paths ordered by step number.
	Screenshots []string

	// Record is the raw result.json document. The results log augments and
	// re-emits it, so unknown fields must survive the round trip.
	Record map[string]any
}

// resultFile mirrors the recorded result.json schema. All fields other than
// the task description are optional.
type resultFile struct {
	Task                string   `json:"task"`
	ActionHistory       []string `json:"action_history"`
	Thoughts            []string `json:"thoughts"`
	FinalResultResponse string   `json:"final_result_response"`
	InputImagePaths     []string `json:"input_image_paths"`
}

// ListTaskIDs returns the task IDs under dir in lexicographic order. Every
// subdirectory is a task; plain files are ignored.
func ListTaskIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read trajectories dir '%s': %w", dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Load reads one task's trajectory from dir/taskID.
func Load(dir, taskID string) (*Trajectory, error) {
	resultPath := filepath.Join(dir, taskID, "result.json")
	data, err := os.ReadFile(resultPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", resultPath, err)
	}

	var result resultFile
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse '%s': %w", resultPath, err)
	}
	if result.Task == "" {
		return nil, fmt.Errorf("'%s' has no task description", resultPath)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse '%s': %w", resultPath, err)
	}

	screenshots, err := listScreenshots(filepath.Join(dir, taskID, screenshotsSubdir))
	if err != nil {
		return nil, err
	}

	return &Trajectory{
		TaskID:        taskID,
		Description:   result.Task,
		ActionHistory: result.ActionHistory,
		Thoughts:      result.Thoughts,
		FinalResponse: result.FinalResultResponse,
		InputImages:   result.InputImagePaths,
		Screenshots:   screenshots,
		Record:        record,
	}, nil
}

// listScreenshots orders files by the first integer in their name, so that
// step_10.png sorts after step_9.png. Files without a number sort first, by
// name.
func listScreenshots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshots dir '%s': %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	sort.SliceStable(names, func(i, j int) bool {
		ni, oki := stepNumber(names[i])
		nj, okj := stepNumber(names[j])
		if oki != okj {
			return !oki
		}
		if !oki {
			return names[i] < names[j]
		}
		return ni < nj
	})

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

func stepNumber(name string) (int, bool) {
	m := digitsRe.FindString(name)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
