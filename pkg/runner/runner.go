// Package runner executes batch evaluations: it scans the trajectories
// directory, skips tasks already present in the results log, and spreads the
// remainder across parallel workers.
package runner

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclevikram/TripMind/pkg/config"
	"github.com/unclevikram/TripMind/pkg/judge"
	"github.com/unclevikram/TripMind/pkg/results"
	"github.com/unclevikram/TripMind/pkg/trajectory"
	"github.com/unclevikram/TripMind/pkg/webjudge"
)

// ClientFactory builds one judge client per worker.
type ClientFactory func(cfg config.JudgeConfig, logger *zap.Logger) (judge.Client, error)

// ProgressEvent reports one finished task to the progress callback.
type ProgressEvent struct {
	TaskID string
	Done   int
	Total  int
	Label  int
	Err    error
}

// Summary aggregates one batch run. SuccessRate is computed over the tasks
// attempted in this run, with errored tasks counted as failures.
type Summary struct {
	ResultsFile string
	Total       int
	Skipped     int
	Evaluated   int
	Passed      int
	Errored     int
	SuccessRate float64
}

// Runner coordinates one batch evaluation.
type Runner struct {
	cfg       *config.Config
	logger    *zap.Logger
	newClient ClientFactory
	progress  func(ProgressEvent)
}

// Option configures a Runner.
type Option func(*Runner)

// WithClientFactory overrides how workers obtain judge clients.
func WithClientFactory(factory ClientFactory) Option {
	return func(r *Runner) { r.newClient = factory }
}

// WithProgress registers a callback invoked from the aggregator goroutine as
// each task finishes.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(r *Runner) { r.progress = fn }
}

func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		logger: logger,
		newClient: func(jc config.JudgeConfig, l *zap.Logger) (judge.Client, error) {
			return judge.NewOpenAIClient(jc, l)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// taskResult flows from workers to the single log-writing aggregator.
type taskResult struct {
	taskID  string
	record  map[string]any
	label   int
	errored bool
	err     error
}

// Run evaluates every pending task and returns the batch summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	taskIDs, err := trajectory.ListTaskIDs(r.cfg.TrajectoriesDir)
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(r.cfg.OutputDir,
		results.LogFileName(r.cfg.Mode, r.cfg.Judge.Model, r.cfg.ScoreThreshold))

	done, err := results.DoneTaskIDs(logPath)
	if err != nil {
		return nil, err
	}

	pending := make([]string, 0, len(taskIDs))
	for _, id := range taskIDs {
		if !done[id] {
			pending = append(pending, id)
		}
	}

	summary := &Summary{
		ResultsFile: logPath,
		Total:       len(taskIDs),
		Skipped:     len(taskIDs) - len(pending),
	}

	r.logger.Info("starting batch evaluation",
		zap.String("mode", r.cfg.Mode),
		zap.Int("total", summary.Total),
		zap.Int("skipped", summary.Skipped),
		zap.Int("pending", len(pending)),
	)

	if len(pending) == 0 {
		return summary, nil
	}

	log, err := results.OpenLog(logPath)
	if err != nil {
		return nil, err
	}
	defer log.Close()

	// Single-writer aggregator: workers never touch the log directly.
	resultCh := make(chan taskResult)
	aggDone := make(chan error, 1)
	go func() {
		var completed int
		for res := range resultCh {
			if err := log.Append(res.record); err != nil {
				aggDone <- err
				// Drain so workers are never blocked on send.
				for range resultCh {
				}
				return
			}

			completed++
			summary.Evaluated++
			switch {
			case res.errored:
				summary.Errored++
			case res.label == 1:
				summary.Passed++
			}

			if r.progress != nil {
				r.progress(ProgressEvent{
					TaskID: res.taskID,
					Done:   completed,
					Total:  len(pending),
					Label:  res.label,
					Err:    res.err,
				})
			}
		}
		aggDone <- nil
	}()

	workers := min(r.cfg.Workers, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range chunkTasks(pending, workers) {
		chunk := chunk
		g.Go(func() error {
			return r.runWorker(gctx, chunk, resultCh)
		})
	}

	workerErr := g.Wait()
	close(resultCh)
	if aggErr := <-aggDone; aggErr != nil {
		return nil, aggErr
	}
	if workerErr != nil {
		return nil, workerErr
	}

	if summary.Evaluated > 0 {
		summary.SuccessRate = float64(summary.Passed) / float64(summary.Evaluated)
	}
	return summary, nil
}

// runWorker evaluates its chunk with its own judge client. Task failures are
// recorded and counted as failures; only client construction and context
// cancellation abort the run.
func (r *Runner) runWorker(ctx context.Context, taskIDs []string, resultCh chan<- taskResult) error {
	client, err := r.newClient(r.cfg.Judge, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create judge client: %w", err)
	}
	evaluator := webjudge.New(client, r.cfg, r.logger)

	for _, taskID := range taskIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := r.evaluateTask(ctx, evaluator, taskID)
		if res.err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("task evaluation failed",
				zap.String("task_id", taskID), zap.Error(res.err))
		}

		select {
		case resultCh <- res:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Runner) evaluateTask(ctx context.Context, evaluator *webjudge.Evaluator, taskID string) taskResult {
	traj, err := trajectory.Load(r.cfg.TrajectoriesDir, taskID)
	if err != nil {
		return taskResult{taskID: taskID, record: results.BuildErrorRecord(taskID, err), errored: true, err: err}
	}

	outcome, err := evaluator.Evaluate(ctx, traj)
	if err != nil {
		return taskResult{taskID: taskID, record: results.BuildErrorRecord(taskID, err), errored: true, err: err}
	}

	return taskResult{
		taskID: taskID,
		record: results.BuildRecord(traj, outcome),
		label:  outcome.PredictedLabel,
	}
}

// chunkTasks splits the tasks into n contiguous chunks of near-equal size.
func chunkTasks(taskIDs []string, n int) [][]string {
	chunks := make([][]string, 0, n)
	size := len(taskIDs) / n
	rem := len(taskIDs) % n

	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < rem {
			end++
		}
		if start < end {
			chunks = append(chunks, taskIDs[start:end])
		}
		start = end
	}
	return chunks
}
