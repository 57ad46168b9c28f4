package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/engine"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/profile"
)

// taskEntry is one task of a batch file. Unset fields fall back to the
// file level defaults.
type taskEntry struct {
	ID              string `mapstructure:"id"`
	URL             string `mapstructure:"url"`
	Profile         string `mapstructure:"profile"`
	DetectionMethod string `mapstructure:"detection_method"`
	Submit          *bool  `mapstructure:"submit"`
}

type batchFile struct {
	Profile         string      `mapstructure:"profile"`
	DetectionMethod string      `mapstructure:"detection_method"`
	Submit          bool        `mapstructure:"submit"`
	Tasks           []taskEntry `mapstructure:"tasks"`
}

// batchEntry is the per-task line of the batch report.
type batchEntry struct {
	TaskID string              `json:"task_id"`
	URL    string              `json:"url"`
	Result *schemas.FillResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// newBatchCmd creates the `batch` command, which processes a task file
// through the worker pool.
func newBatchCmd(runners runnerProvider, stores storeProvider) *cobra.Command {
	var concurrency int
	var output string

	batchCmd := &cobra.Command{
		Use:   "batch <tasks-file>",
		Short: "Fill every form listed in a YAML or JSON task file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.SetEngineWorkerConcurrency(concurrency)
			}
			tasks, err := loadTasks(args[0], cfg.Automation())
			if err != nil {
				return err
			}
			return runBatch(ctx, observability.GetLogger(), cfg, tasks, output, runners, stores, cmd.OutOrStdout())
		},
	}

	batchCmd.Flags().IntVarP(&concurrency, "concurrency", "j", 2, "Number of forms filled in parallel")
	batchCmd.Flags().StringVarP(&output, "output", "o", "", "Write the JSON report to a file instead of stdout")
	return batchCmd
}

// loadTasks reads a task file. Profiles are loaded once per distinct path,
// relative paths being resolved against the task file's directory.
func loadTasks(path string, defaults config.AutomationConfig) ([]schemas.FillTask, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(expanded)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	file := batchFile{DetectionMethod: defaults.DetectionMethod, Submit: defaults.Submit}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to decode task file: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, errors.New("task file contains no tasks")
	}

	baseDir := filepath.Dir(expanded)
	profiles := make(map[string]*schemas.CandidateProfile)
	loadProfile := func(p string) (*schemas.CandidateProfile, error) {
		if p == "" {
			return nil, errors.New("no profile given")
		}
		if !filepath.IsAbs(p) && p[0] != '~' {
			p = filepath.Join(baseDir, p)
		}
		if cached, ok := profiles[p]; ok {
			return cached, nil
		}
		loaded, err := profile.Load(p)
		if err != nil {
			return nil, err
		}
		profiles[p] = loaded
		return loaded, nil
	}

	tasks := make([]schemas.FillTask, 0, len(file.Tasks))
	for i, entry := range file.Tasks {
		if entry.URL == "" {
			return nil, fmt.Errorf("task %d: missing url", i)
		}
		profilePath := entry.Profile
		if profilePath == "" {
			profilePath = file.Profile
		}
		p, err := loadProfile(profilePath)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}

		methodName := entry.DetectionMethod
		if methodName == "" {
			methodName = file.DetectionMethod
		}
		method, err := schemas.ParseStrategy(methodName)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}

		submit := file.Submit
		if entry.Submit != nil {
			submit = *entry.Submit
		}
		id := entry.ID
		if id == "" {
			id = uuid.NewString()
		}
		tasks = append(tasks, schemas.FillTask{ID: id, URL: entry.URL, Profile: p, DetectionMethod: method, Submit: submit})
	}
	return tasks, nil
}

// runBatch feeds the tasks to the engine and reports every outcome. Task
// failures are reported, not returned; only cancellation aborts the batch.
func runBatch(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	tasks []schemas.FillTask,
	output string,
	runners runnerProvider,
	stores storeProvider,
	out io.Writer,
) error {
	runner, cleanup, err := runners.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize automation: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	recorder, closeRecorder := openRecorder(ctx, cfg, stores, logger)
	defer closeRecorder()

	taskEngine, err := engine.New(cfg, logger, runner, recorder)
	if err != nil {
		return err
	}

	taskChan := make(chan schemas.FillTask, len(tasks))
	for _, t := range tasks {
		taskChan <- t
	}
	close(taskChan)

	order := make(map[string]int, len(tasks))
	for i, t := range tasks {
		order[t.ID] = i
	}

	report := make([]batchEntry, 0, len(tasks))
	for o := range taskEngine.Start(ctx, taskChan) {
		entry := batchEntry{TaskID: o.Task.ID, URL: o.Task.URL, Result: o.Result}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		report = append(report, entry)
	}
	taskEngine.Stop()

	sort.SliceStable(report, func(i, j int) bool { return order[report[i].TaskID] < order[report[j].TaskID] })
	logger.Info("Batch finished", zap.Int("tasks", len(tasks)), zap.Int("reported", len(report)))

	if err := writeJSON(out, output, report); err != nil {
		return err
	}
	return ctx.Err()
}
