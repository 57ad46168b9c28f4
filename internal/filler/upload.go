package filler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// UploadStrategy names one way of attaching a file to a form.
type UploadStrategy string

const (
	UploadDirect   UploadStrategy = "direct_input"
	UploadDragDrop UploadStrategy = "drag_drop"
	UploadChooser  UploadStrategy = "click_chooser"
)

var (
	ErrNoFileInput    = errors.New("no file input found for field")
	ErrNoDropTarget   = errors.New("field has no position to drop on")
	ErrNoTrigger      = errors.New("no upload trigger near field")
	ErrNotAttached    = errors.New("file not attached after upload")
	ErrUploadFailed   = errors.New("all upload strategies failed")
	ErrUploadNotFound = errors.New("upload file not found")
)

// uploadSettle is how long the page gets to react to an attached file.
const uploadSettle = 500 * time.Millisecond

// Attempt is the outcome of one upload strategy.
type Attempt struct {
	Strategy UploadStrategy
	OK       bool
	Err      error
}

// UploadReport lists the strategies tried, in order, for one upload.
type UploadReport struct {
	Path     string
	Attempts []Attempt
	// Err is nil on success. Otherwise it explains why the upload did not
	// happen, either a path problem or the joined strategy failures.
	Err error
}

// Succeeded reports whether some strategy attached the file.
func (r *UploadReport) Succeeded() bool {
	return r.Err == nil && len(r.Attempts) > 0 && r.Attempts[len(r.Attempts)-1].OK
}

type uploadFunc func(ctx context.Context, page schemas.Page, field schemas.DetectedField, f upload) error

// upload is the file being attached. mentioned records whether the page
// already showed its name before the first strategy ran.
type upload struct {
	path      string
	mentioned bool
}

// Uploader attaches a file to an upload field. Strategies run in a fixed
// order and the first success ends the attempt:
//  1. assign the file to a native file input
//  2. simulate dropping the file on the field
//  3. click a nearby upload button and answer the file chooser
type Uploader struct {
	proximity float64
	timeout   time.Duration
	logger    *zap.Logger
	order     []UploadStrategy
	impls     map[UploadStrategy]uploadFunc
}

// NewUploader creates an uploader from the automation settings.
func NewUploader(cfg config.AutomationConfig, logger *zap.Logger) *Uploader {
	u := &Uploader{
		proximity: cfg.UploadProximity,
		timeout:   cfg.OperationTimeout,
		logger:    logger.Named("uploader"),
		order:     []UploadStrategy{UploadDirect, UploadDragDrop, UploadChooser},
	}
	if u.proximity <= 0 {
		u.proximity = 200
	}
	u.impls = map[UploadStrategy]uploadFunc{
		UploadDirect:   u.direct,
		UploadDragDrop: u.dragDrop,
		UploadChooser:  u.clickChooser,
	}
	return u
}

// Upload attaches path to the field and reports whether it succeeded.
func (u *Uploader) Upload(ctx context.Context, page schemas.Page, field schemas.DetectedField, path string) bool {
	return u.Attach(ctx, page, field, path).Succeeded()
}

// Attach runs the strategy chain and returns every attempt made.
func (u *Uploader) Attach(ctx context.Context, page schemas.Page, field schemas.DetectedField, path string) *UploadReport {
	report := &UploadReport{Path: path}

	resolved, err := resolvePath(path)
	if err != nil {
		report.Err = err
		return report
	}
	report.Path = resolved

	f := upload{path: resolved, mentioned: true}
	if err := page.Evaluate(ctx, mentionsScript(filepath.Base(resolved)), &f.mentioned); err != nil {
		f.mentioned = true
	}

	var errs []error
	for _, name := range u.order {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := u.impls[name](ctx, page, field, f)
		report.Attempts = append(report.Attempts, Attempt{Strategy: name, OK: err == nil, Err: err})
		if err == nil {
			u.logger.Debug("File attached.", zap.String("field_id", field.ID), zap.String("strategy", string(name)))
			return report
		}
		u.logger.Debug("Upload strategy failed.", zap.String("field_id", field.ID), zap.String("strategy", string(name)), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	report.Err = fmt.Errorf("%w: %w", ErrUploadFailed, errors.Join(errs...))
	return report
}

// resolvePath expands ~ and makes the path absolute, as the browser needs.
func resolvePath(path string) (string, error) {
	if path == "" {
		return "", ErrUploadNotFound
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", path, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrUploadNotFound, abs)
	}
	return abs, nil
}

func (u *Uploader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, u.timeout)
}

// verify waits for the page to settle and checks the file was taken.
func (u *Uploader) verify(ctx context.Context, page schemas.Page, f upload) error {
	if err := page.Sleep(ctx, uploadSettle); err != nil {
		return err
	}
	var attached bool
	if err := page.Evaluate(ctx, hasUploadedScript(filepath.Base(f.path), f.mentioned), &attached); err != nil {
		return err
	}
	if !attached {
		return ErrNotAttached
	}
	return nil
}

// bounds returns the field position, asking the page when detection did
// not record one.
func (u *Uploader) bounds(ctx context.Context, page schemas.Page, field schemas.DetectedField) schemas.Rect {
	if !field.Bounds.IsEmpty() {
		return field.Bounds
	}
	for _, loc := range field.Locators {
		actx, cancel := u.withTimeout(ctx)
		r, err := page.Bounds(actx, loc)
		cancel()
		if err == nil && !r.IsEmpty() {
			return r
		}
	}
	return schemas.Rect{}
}

func (u *Uploader) direct(ctx context.Context, page schemas.Page, field schemas.DetectedField, f upload) error {
	var css *string
	if err := page.Evaluate(ctx, fileInputScript(field.Locators, field.Bounds, u.proximity), &css); err != nil {
		return err
	}
	if css == nil || *css == "" {
		return ErrNoFileInput
	}
	loc := schemas.Locator{Kind: schemas.LocatorCSS, Value: *css}
	actx, cancel := u.withTimeout(ctx)
	err := page.SetUploadFiles(actx, loc, []string{f.path})
	cancel()
	if err != nil {
		return err
	}
	return u.verify(ctx, page, f)
}

func (u *Uploader) dragDrop(ctx context.Context, page schemas.Page, field schemas.DetectedField, f upload) error {
	r := u.bounds(ctx, page, field)
	if r.IsEmpty() {
		return ErrNoDropTarget
	}
	actx, cancel := u.withTimeout(ctx)
	err := page.DropFiles(actx, r.Center(), []string{f.path})
	cancel()
	if err != nil {
		return err
	}
	return u.verify(ctx, page, f)
}

func (u *Uploader) clickChooser(ctx context.Context, page schemas.Page, field schemas.DetectedField, f upload) error {
	r := u.bounds(ctx, page, field)
	var triggers []schemas.UploadTrigger
	if err := page.Evaluate(ctx, triggersScript(r, u.proximity), &triggers); err != nil {
		return err
	}

	var errs []error
	for _, t := range triggers {
		if !r.IsEmpty() && t.Bounds.Distance(r) > u.proximity {
			continue
		}
		actx, cancel := u.withTimeout(ctx)
		err := page.ChooseFiles(actx, t.Locator, []string{f.path})
		cancel()
		if err == nil {
			if err = u.verify(ctx, page, f); err == nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errs = append(errs, fmt.Errorf("trigger %q: %w", t.Text, err))
	}
	if len(errs) == 0 {
		return ErrNoTrigger
	}
	return errors.Join(errs...)
}
