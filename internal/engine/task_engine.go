// internal/engine/task_engine.go
package engine

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

const persistTimeout = 30 * time.Second

// Outcome is the terminal state of one task as seen by the engine. Result is
// non-nil whenever the runner produced one, including partial results from
// interrupted tasks.
type Outcome struct {
	Task   schemas.FillTask
	Result *schemas.FillResult
	Err    error
}

// TaskEngine manages the in-process distribution of fill tasks to a pool of
// workers. Every task runs in its own browser session, so workers share no
// page state.
type TaskEngine struct {
	cfg      config.Interface
	logger   *zap.Logger
	runner   schemas.TaskRunner
	recorder schemas.ResultRecorder
	wg       sync.WaitGroup

	// stateLock protects the running state of the engine.
	stateLock sync.Mutex
	isRunning bool
}

// New creates a new TaskEngine. recorder may be nil, in which case results
// are only delivered on the outcome channel.
func New(
	cfg config.Interface,
	logger *zap.Logger,
	runner schemas.TaskRunner,
	recorder schemas.ResultRecorder,
) (*TaskEngine, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if runner == nil {
		return nil, errors.New("task runner cannot be nil")
	}

	return &TaskEngine{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "task_engine")),
		runner:   runner,
		recorder: recorder,
	}, nil
}

// Start launches the worker pool and begins consuming tasks from taskChan.
// The returned channel carries one Outcome per consumed task and is closed
// once every worker has exited. Callers must drain it. Start returns nil if
// the engine is already running.
func (e *TaskEngine) Start(ctx context.Context, taskChan <-chan schemas.FillTask) <-chan Outcome {
	e.stateLock.Lock()
	if e.isRunning {
		e.stateLock.Unlock()
		e.logger.Warn("TaskEngine.Start called, but engine is already running.")
		return nil
	}
	e.isRunning = true
	e.stateLock.Unlock()

	engineCfg := e.cfg.Engine()
	concurrency := engineCfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	outcomes := make(chan Outcome, max(engineCfg.QueueSize, concurrency))

	e.logger.Info("Starting task engine worker pool", zap.Int("concurrency", concurrency))

	for i := 0; i < concurrency; i++ {
		e.wg.Add(1)
		go e.runWorker(ctx, i+1, taskChan, outcomes)
	}
	go func() {
		e.wg.Wait()
		close(outcomes)
	}()
	return outcomes
}

// Stop waits for all workers to finish. Workers exit when the context passed
// to Start is cancelled or the task channel is closed and drained.
func (e *TaskEngine) Stop() {
	e.logger.Info("Stopping task engine... waiting for workers to finish.")
	e.wg.Wait()

	e.stateLock.Lock()
	e.isRunning = false
	e.stateLock.Unlock()

	e.logger.Info("Task engine stopped gracefully.")
}

// runWorker is the main loop for a single worker goroutine.
func (e *TaskEngine) runWorker(ctx context.Context, workerID int, taskChan <-chan schemas.FillTask, outcomes chan<- Outcome) {
	defer e.wg.Done()
	logger := e.logger.With(zap.Int("worker_id", workerID))
	logger.Debug("Worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, worker shutting down immediately.", zap.Error(ctx.Err()))
			return
		case task, ok := <-taskChan:
			if !ok {
				logger.Debug("Task queue closed and drained, worker shutting down gracefully.")
				return
			}
			outcome := e.process(ctx, task, logger)
			select {
			case outcomes <- outcome:
			case <-ctx.Done():
				logger.Warn("Context cancelled before outcome was delivered.", zap.String("task_id", task.ID))
				return
			}
		}
	}
}

// process handles the execution of a single task.
func (e *TaskEngine) process(ctx context.Context, task schemas.FillTask, logger *zap.Logger) Outcome {
	logger = logger.With(observability.TaskFields(task)...)
	logger.Info("Processing task")

	if err := ctx.Err(); err != nil {
		logger.Warn("Context cancelled before task processing started", zap.Error(err))
		return Outcome{Task: task, Err: err}
	}

	if err := validateURL(task.URL); err != nil {
		logger.Error("Invalid target URL in task, discarding", zap.Error(err))
		return Outcome{Task: task, Err: err}
	}

	taskTimeout := e.cfg.Engine().DefaultTaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 5 * time.Minute
	}
	taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	result, err := e.runner.Run(taskCtx, task)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			logger.Warn("Task timed out. Proceeding to save partial results.", zap.Duration("timeout", taskTimeout), zap.Error(err))
		case errors.Is(err, context.Canceled):
			logger.Warn("Task was cancelled. Proceeding to save partial results.", zap.Error(err))
		default:
			logger.Error("Task failed.", zap.Error(err))
		}
	}

	if result != nil {
		e.persist(task, result, logger)
	}
	return Outcome{Task: task, Result: result, Err: err}
}

// persist records the result on a background context so that results of
// interrupted tasks are still saved during shutdown.
func (e *TaskEngine) persist(task schemas.FillTask, result *schemas.FillResult, logger *zap.Logger) {
	if e.recorder == nil {
		return
	}
	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := e.recorder.RecordResult(persistCtx, result); err != nil {
		logger.Error("Failed to persist task result", zap.Error(err))
		return
	}
	logger.Debug("Persisted task result.", zap.Int("filled", result.FieldsFilled))
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return errors.New("target URL is missing host")
		}
	case "file":
		if u.Path == "" {
			return errors.New("file URL is missing path")
		}
	default:
		return errors.New("target URL scheme must be http, https or file")
	}
	return nil
}
