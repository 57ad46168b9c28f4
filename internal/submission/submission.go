// Package submission submits a filled form and looks for evidence that the
// site accepted it.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser"
	"github.com/xkilldash9x/formpilot/internal/config"
)

const defaultSettleDelay = 3 * time.Second

// successFragments are matched case-insensitively against the page text.
var successFragments = []string{"thank you", "success", "submitted", "received"}

// urlMarkers indicate a redirect to a confirmation page.
var urlMarkers = []string{"success", "thank"}

// candidatesScript lists visible submit controls, best first.
var candidatesScript = browser.MustScript(`() => {
	const out = [];
	const seen = new Set();
	const add = (el) => {
		if (seen.has(el) || !fpVisible(el) || el.disabled) return;
		seen.add(el);
		out.push({ kind: 'css', value: fpCssPath(el) });
	};
	for (const sel of ['input[type="submit" i]', 'button[type="submit" i]', 'form button:not([type])']) {
		document.querySelectorAll(sel).forEach(add);
	}
	const words = /\b(submit|apply|send)\b/i;
	document.querySelectorAll('button, [role="button"], input[type="button" i], a').forEach((el) => {
		if (words.test(fpText(el) || el.value || '')) add(el);
	});
	document.querySelectorAll('.submit-btn, .apply-btn').forEach(add);
	return out;
}`)

var pageStateScript = browser.MustScript(`() => {
	const visible = ['.success-message', '.confirmation', '.thank-you'].some((sel) =>
		Array.from(document.querySelectorAll(sel)).some(fpVisible));
	return {
		url: location.href,
		title: document.title,
		text: document.body ? document.body.innerText : '',
		confirmationElement: visible,
	};
}`)

// SubmissionError reports that no submit control could be activated.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Submitter submits forms and checks for confirmation.
type Submitter struct {
	settle time.Duration
	logger *zap.Logger
}

// New creates a Submitter using the configured settle delay.
func New(cfg config.AutomationConfig, logger *zap.Logger) *Submitter {
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	return &Submitter{settle: settle, logger: logger.Named("submission")}
}

// Submit reports whether the form was submitted.
func (s *Submitter) Submit(ctx context.Context, page schemas.Page) bool {
	return s.TrySubmit(ctx, page) == nil
}

// TrySubmit clicks the first visible submit control that accepts a click,
// in priority order. Without one it presses Enter in the focused element.
// A *SubmissionError is returned when neither works.
func (s *Submitter) TrySubmit(ctx context.Context, page schemas.Page) error {
	var candidates []schemas.Locator
	if err := page.Evaluate(ctx, candidatesScript, &candidates); err != nil {
		s.logger.Debug("Submit control search failed.", zap.Error(err))
	}

	var clickErrs []error
	for _, loc := range candidates {
		err := page.Click(ctx, loc)
		if err == nil {
			s.logger.Info("Form submitted.", zap.Stringer("control", loc))
			return nil
		}
		if ctx.Err() != nil {
			return &SubmissionError{Err: ctx.Err()}
		}
		clickErrs = append(clickErrs, err)
	}

	if err := page.PressKey(ctx, "Enter"); err != nil {
		clickErrs = append(clickErrs, fmt.Errorf("enter key: %w", err))
		return &SubmissionError{Err: errors.Join(clickErrs...)}
	}
	s.logger.Info("Form submitted with the Enter key.", zap.Int("controls_tried", len(candidates)))
	return nil
}

// CheckConfirmation waits for the page to settle and looks for success
// text, a confirmation container, or a redirect away from startURL to a
// success or thank-you URL. No signal is reported as false, not an error.
func (s *Submitter) CheckConfirmation(ctx context.Context, page schemas.Page, startURL string) bool {
	if err := page.Sleep(ctx, s.settle); err != nil {
		return false
	}
	var state schemas.PageState
	if err := page.Evaluate(ctx, pageStateScript, &state); err != nil {
		s.logger.Debug("Could not read page state.", zap.Error(err))
		return false
	}
	if state.URL == "" {
		if u, err := page.URL(ctx); err == nil {
			state.URL = u
		}
	}

	if reason, ok := Confirmed(state, startURL); ok {
		s.logger.Info("Submission confirmed.", zap.String("signal", reason))
		return true
	}
	s.logger.Info("No submission confirmation found.", zap.String("url", state.URL))
	return false
}

// Confirmed decides whether a page state shows a successful submission and
// names the signal that matched.
func Confirmed(state schemas.PageState, startURL string) (string, bool) {
	text := strings.ToLower(state.Text + " " + state.Title)
	for _, frag := range successFragments {
		if strings.Contains(text, frag) {
			return "text:" + frag, true
		}
	}
	if state.ConfirmationElement {
		return "element", true
	}
	if state.URL != "" && state.URL != startURL {
		lower := strings.ToLower(state.URL)
		for _, m := range urlMarkers {
			if strings.Contains(lower, m) {
				return "url:" + m, true
			}
		}
	}
	return "", false
}
