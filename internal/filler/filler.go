// Package filler applies resolved values to detected form fields.
package filler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/humanoid"
)

var (
	// ErrNoLocator means none of the field's locators matched an element.
	ErrNoLocator = errors.New("no locator resolved to an element")
	// ErrNotVerified means the control did not hold the value afterwards.
	ErrNotVerified = errors.New("value not present after fill")
)

const defaultAttemptTimeout = 3 * time.Second

// Filler writes values into form controls.
type Filler struct {
	typist         *humanoid.Humanoid
	uploader       *Uploader
	attemptTimeout time.Duration
	logger         *zap.Logger
}

// New creates a filler. Text is typed through typist; upload fields are
// handed to uploader.
func New(cfg config.AutomationConfig, typist *humanoid.Humanoid, uploader *Uploader, logger *zap.Logger) *Filler {
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	return &Filler{
		typist:         typist,
		uploader:       uploader,
		attemptTimeout: timeout,
		logger:         logger.Named("filler"),
	}
}

// Fill applies value to field and reports whether it was verified present.
// Failures are local to the field.
func (f *Filler) Fill(ctx context.Context, page schemas.Page, field schemas.DetectedField, value string) bool {
	return f.Apply(ctx, page, field, value) == nil
}

// Apply is Fill returning the reason for a failure.
func (f *Filler) Apply(ctx context.Context, page schemas.Page, field schemas.DetectedField, value string) error {
	if field.Category == schemas.CategoryFileUpload {
		report := f.uploader.Attach(ctx, page, field, value)
		return report.Err
	}

	loc, err := f.resolve(ctx, page, field)
	if err != nil {
		return err
	}

	want := value
	switch {
	case isSelect(field):
		want, err = f.fillSelect(ctx, page, loc, value)
	case isTextarea(field):
		err = f.fillTextarea(ctx, page, loc, value)
	default:
		err = f.typeText(ctx, page, loc, value)
	}
	if err != nil {
		return err
	}

	if err := f.verify(ctx, page, loc, want); err != nil {
		if isSelect(field) || isTextarea(field) {
			return err
		}
		// Masked inputs reformat typed characters; assign the raw value.
		f.logger.Debug("Typed value not verified, assigning directly.", zap.String("field_id", field.ID), zap.Error(err))
		if err := page.SetValue(ctx, loc, value); err != nil {
			return err
		}
		return f.verify(ctx, page, loc, value)
	}
	return nil
}

func isSelect(field schemas.DetectedField) bool {
	return field.Category == schemas.CategorySelect || strings.EqualFold(field.TagName, "select")
}

func isTextarea(field schemas.DetectedField) bool {
	return field.Category == schemas.CategoryTextarea || strings.EqualFold(field.TagName, "textarea")
}

// resolve returns the first locator that finds the element within the
// per-attempt timeout. Fields known only by position are focused by
// clicking their center and addressed as the active element.
func (f *Filler) resolve(ctx context.Context, page schemas.Page, field schemas.DetectedField) (schemas.Locator, error) {
	for _, loc := range field.Locators {
		actx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
		err := page.WaitFor(actx, loc)
		cancel()
		if err == nil {
			return loc, nil
		}
		if ctx.Err() != nil {
			return schemas.Locator{}, ctx.Err()
		}
		f.logger.Debug("Locator did not resolve.", zap.String("field_id", field.ID), zap.Stringer("locator", loc), zap.Error(err))
	}

	if !field.Bounds.IsEmpty() {
		actx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
		defer cancel()
		if err := page.ClickAt(actx, field.Bounds.Center()); err != nil {
			return schemas.Locator{}, fmt.Errorf("%w: click at field position: %w", ErrNoLocator, err)
		}
		if err := page.WaitFor(actx, schemas.ActiveElement); err != nil {
			return schemas.Locator{}, fmt.Errorf("%w: nothing focused at field position: %w", ErrNoLocator, err)
		}
		return schemas.ActiveElement, nil
	}
	return schemas.Locator{}, ErrNoLocator
}

// fillSelect picks the option whose value matches, then the one whose label
// matches, and returns the selected option value.
func (f *Filler) fillSelect(ctx context.Context, page schemas.Page, loc schemas.Locator, value string) (string, error) {
	chosen, err := page.SelectOption(ctx, loc, value, schemas.MatchOptionValue)
	if err == nil {
		return chosen, nil
	}
	if !errors.Is(err, schemas.ErrOptionNotFound) {
		return "", err
	}
	return page.SelectOption(ctx, loc, value, schemas.MatchOptionLabel)
}

func (f *Filler) fillTextarea(ctx context.Context, page schemas.Page, loc schemas.Locator, value string) error {
	if err := page.Click(ctx, loc); err != nil {
		return err
	}
	if err := page.Clear(ctx, loc); err != nil {
		return err
	}
	return page.SetValue(ctx, loc, value)
}

func (f *Filler) typeText(ctx context.Context, page schemas.Page, loc schemas.Locator, value string) error {
	if err := page.Click(ctx, loc); err != nil {
		return err
	}
	if err := page.Clear(ctx, loc); err != nil {
		return err
	}
	return f.typist.Type(ctx, page, value)
}

func (f *Filler) verify(ctx context.Context, page schemas.Page, loc schemas.Locator, want string) error {
	got, err := page.Value(ctx, loc)
	if err != nil {
		return err
	}
	if normalize(got) != normalize(want) {
		return fmt.Errorf("%w: got %q", ErrNotVerified, got)
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
