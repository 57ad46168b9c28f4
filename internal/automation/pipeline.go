// Package automation runs a fill task end to end: open a session, detect
// and classify fields, resolve and apply values, optionally submit.
package automation

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/classifier"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/detector"
	"github.com/xkilldash9x/formpilot/internal/detector/vision"
	"github.com/xkilldash9x/formpilot/internal/filler"
	"github.com/xkilldash9x/formpilot/internal/humanoid"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/resolver"
	"github.com/xkilldash9x/formpilot/internal/submission"
)

const closeTimeout = 10 * time.Second

// -- Interfaces for Dependency Inversion --

// FieldDetector finds the fields of a loaded page.
type FieldDetector interface {
	Detect(ctx context.Context, page schemas.Page, method schemas.Strategy) ([]schemas.DetectedField, error)
}

// FieldFiller applies one value to one field.
type FieldFiller interface {
	Apply(ctx context.Context, page schemas.Page, field schemas.DetectedField, value string) error
}

// FormSubmitter submits the form and checks the outcome.
type FormSubmitter interface {
	TrySubmit(ctx context.Context, page schemas.Page) error
	CheckConfirmation(ctx context.Context, page schemas.Page, startURL string) bool
}

// Pipeline executes FillTasks. It holds no per-task state and may run many
// tasks concurrently, each in its own browser session.
type Pipeline struct {
	cfg       config.AutomationConfig
	opener    schemas.SessionOpener
	detector  FieldDetector
	filler    FieldFiller
	submitter FormSubmitter
	logger    *zap.Logger
}

var _ schemas.TaskRunner = (*Pipeline)(nil)

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithDetector replaces the field detector.
func WithDetector(d FieldDetector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// WithFiller replaces the field filler.
func WithFiller(f FieldFiller) Option {
	return func(p *Pipeline) { p.filler = f }
}

// WithSubmitter replaces the form submitter.
func WithSubmitter(s FormSubmitter) Option {
	return func(p *Pipeline) { p.submitter = s }
}

// New builds a pipeline from configuration. model may be nil to run
// without visual detection; rng drives the typing cadence.
func New(cfg config.Interface, opener schemas.SessionOpener, model vision.Model, rng *rand.Rand, logger *zap.Logger, opts ...Option) *Pipeline {
	auto := cfg.Automation()
	typing := cfg.Browser().Typing

	p := &Pipeline{
		cfg:    auto,
		opener: opener,
		logger: logger.Named("automation"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.detector == nil {
		p.detector = detector.New(auto, model, logger)
	}
	if p.filler == nil {
		typist := humanoid.New(humanoid.Config{
			MeanDelay: typing.MeanDelay,
			MinDelay:  typing.MinDelay,
			MaxDelay:  typing.MaxDelay,
			TypoRate:  typing.TypoRate,
			Rng:       rng,
		})
		p.filler = filler.New(auto, typist, filler.NewUploader(auto, logger), logger)
	}
	if p.submitter == nil {
		p.submitter = submission.New(auto, logger)
	}
	return p
}

// plannedFill is a field with a resolved value.
type plannedFill struct {
	field schemas.DetectedField
	value string
}

// Run executes one task. Only session failures (launch, navigation,
// detection) return an error without a result. Field failures and
// submission problems are recorded in the result. On cancellation the
// partial result is returned with the context error. The session is closed
// exactly once on every path.
func (p *Pipeline) Run(ctx context.Context, task schemas.FillTask) (*schemas.FillResult, error) {
	method := task.DetectionMethod
	if method == "" {
		method = schemas.Strategy(p.cfg.DetectionMethod)
	}
	method, err := schemas.ParseStrategy(string(method))
	if err != nil {
		return nil, err
	}
	if task.Profile == nil {
		return nil, errors.New("automation: task has no candidate profile")
	}

	task.DetectionMethod = method
	logger := p.logger.With(observability.TaskFields(task)...)
	result := schemas.NewFillResult(task, method)

	session, err := p.opener.OpenSession(ctx, schemas.SessionOptions{OperationTimeout: p.cfg.OperationTimeout})
	if err != nil {
		return nil, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}()
	logger.Info("Browser session opened.", zap.String("session_id", session.ID()))

	if err := p.navigate(ctx, session, task.URL); err != nil {
		return nil, err
	}
	if p.cfg.PostLoadWait > 0 {
		if err := session.Sleep(ctx, p.cfg.PostLoadWait); err != nil {
			return p.interrupted(result, err)
		}
	}
	p.screenshot(ctx, session, result, schemas.CheckpointPostLoad, logger)

	fields, err := p.detector.Detect(ctx, session, method)
	if err != nil {
		if ctx.Err() != nil {
			return p.interrupted(result, ctx.Err())
		}
		return nil, &schemas.SessionError{Op: "detect", URL: task.URL, Err: err}
	}
	result.FieldsDetected = len(fields)
	if len(fields) == 0 {
		logger.Info("No form fields detected.")
		result.FinishedAt = time.Now().UTC()
		return result, nil
	}

	plan := p.plan(fields, task.Profile, result)
	logger.Info("Fill plan ready.", zap.Int("detected", len(fields)), zap.Int("planned", len(plan)))

	for _, step := range plan {
		if err := ctx.Err(); err != nil {
			return p.interrupted(result, err)
		}
		result.FieldsAttempted++
		if err := p.filler.Apply(ctx, session, step.field, step.value); err != nil {
			logger.Debug("Field fill failed.", zap.String("field_id", step.field.ID), zap.String("category", string(step.field.Category)), zap.Error(err))
			result.AddError(step.field.ID, step.field.Label, err.Error(), schemas.SeverityError)
			continue
		}
		result.FieldsFilled++
	}
	if err := ctx.Err(); err != nil {
		return p.interrupted(result, err)
	}
	p.screenshot(ctx, session, result, schemas.CheckpointPostFill, logger)

	if task.Submit {
		p.submit(ctx, session, task, result, logger)
		if err := ctx.Err(); err != nil {
			return p.interrupted(result, err)
		}
	}

	result.FinishedAt = time.Now().UTC()
	logger.Info("Task complete.",
		zap.Int("attempted", result.FieldsAttempted),
		zap.Int("filled", result.FieldsFilled),
		zap.Int("errors", len(result.Errors)),
		zap.Bool("submitted", result.Submitted),
		zap.Bool("confirmed", result.ConfirmationReceived),
	)
	return result, nil
}

// Inspect opens a session, loads url and returns the classified fields
// without filling anything.
func (p *Pipeline) Inspect(ctx context.Context, url string, method schemas.Strategy) ([]schemas.DetectedField, error) {
	if method == "" {
		method = schemas.Strategy(p.cfg.DetectionMethod)
	}
	method, err := schemas.ParseStrategy(string(method))
	if err != nil {
		return nil, err
	}

	session, err := p.opener.OpenSession(ctx, schemas.SessionOptions{OperationTimeout: p.cfg.OperationTimeout})
	if err != nil {
		return nil, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			p.logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}()

	if err := p.navigate(ctx, session, url); err != nil {
		return nil, err
	}
	if p.cfg.PostLoadWait > 0 {
		if err := session.Sleep(ctx, p.cfg.PostLoadWait); err != nil {
			return nil, err
		}
	}
	fields, err := p.detector.Detect(ctx, session, method)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &schemas.SessionError{Op: "detect", URL: url, Err: err}
	}
	for i := range fields {
		fields[i] = classifier.ClassifyField(fields[i])
	}
	return fields, nil
}

func (p *Pipeline) navigate(ctx context.Context, page schemas.Page, url string) error {
	navCtx := ctx
	if p.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, p.cfg.NavigationTimeout)
		defer cancel()
	}
	err := page.Navigate(navCtx, url)
	if err == nil || schemas.IsSessionError(err) {
		return err
	}
	return &schemas.SessionError{Op: "navigate", URL: url, Err: err}
}

// plan classifies the fields and resolves their values. Fields without a
// value are skipped, with a warning when they are required. Uploads go last
// so that text entry is not disturbed by upload widgets re-rendering.
func (p *Pipeline) plan(fields []schemas.DetectedField, profile *schemas.CandidateProfile, result *schemas.FillResult) []plannedFill {
	var inputs, uploads []plannedFill
	for _, raw := range fields {
		field := classifier.ClassifyField(raw)
		value, ok := resolver.Resolve(field.Category, field.Label, profile)
		if !ok {
			if field.Required {
				result.AddError(field.ID, field.Label, "required field has no matching profile value", schemas.SeverityWarning)
			}
			continue
		}
		step := plannedFill{field: field, value: value}
		if field.Category == schemas.CategoryFileUpload {
			uploads = append(uploads, step)
		} else {
			inputs = append(inputs, step)
		}
	}
	return append(inputs, uploads...)
}

func (p *Pipeline) submit(ctx context.Context, session schemas.Session, task schemas.FillTask, result *schemas.FillResult, logger *zap.Logger) {
	startURL, err := session.URL(ctx)
	if err != nil {
		startURL = task.URL
	}
	if err := p.submitter.TrySubmit(ctx, session); err != nil {
		logger.Warn("Form submission failed.", zap.Error(err))
		result.AddError("", "", err.Error(), schemas.SeverityError)
		return
	}
	result.Submitted = true
	result.ConfirmationReceived = p.submitter.CheckConfirmation(ctx, session, startURL)
	p.screenshot(ctx, session, result, schemas.CheckpointPostSubmit, logger)
}

func (p *Pipeline) screenshot(ctx context.Context, page schemas.Page, result *schemas.FillResult, checkpoint schemas.Checkpoint, logger *zap.Logger) {
	if !p.cfg.Screenshots {
		return
	}
	data, err := page.FullScreenshot(ctx)
	if err != nil {
		logger.Warn("Screenshot failed.", zap.String("checkpoint", string(checkpoint)), zap.Error(err))
		return
	}
	result.Screenshots = append(result.Screenshots, schemas.Screenshot{
		Checkpoint: checkpoint,
		Data:       data,
		CapturedAt: time.Now().UTC(),
	})
}

func (p *Pipeline) interrupted(result *schemas.FillResult, err error) (*schemas.FillResult, error) {
	result.FinishedAt = time.Now().UTC()
	p.logger.Warn("Task interrupted.", zap.String("task_id", result.TaskID), zap.Error(err))
	return result, err
}
