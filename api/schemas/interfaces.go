package schemas

import (
	"context"
	"time"
)

// -- Browser Interfaces --

// Page is the set of browser operations the detection and filling pipeline
// relies on. Element operations address their target with a Locator and
// fail fast when it cannot be resolved within the context deadline.
//
//go:generate mockery --name Page --output ../../internal/mocks --outpkg mocks
type Page interface {
	// Navigate loads the URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// URL returns the current document location.
	URL(ctx context.Context) (string, error)
	// Evaluate runs a JavaScript expression and decodes its JSON result into res.
	// res may be nil when the result is not needed.
	Evaluate(ctx context.Context, expression string, res interface{}) error
	// FullScreenshot captures the entire document as PNG.
	FullScreenshot(ctx context.Context) ([]byte, error)
	// Sleep pauses, respecting cancellation.
	Sleep(ctx context.Context, d time.Duration) error

	// WaitFor blocks until the element addressed by loc exists.
	WaitFor(ctx context.Context, loc Locator) error
	// Bounds returns the element's bounding box in page coordinates.
	Bounds(ctx context.Context, loc Locator) (Rect, error)
	// Value returns the element's current value (or text for editable regions).
	Value(ctx context.Context, loc Locator) (string, error)

	// Click clicks the element addressed by loc.
	Click(ctx context.Context, loc Locator) error
	// ClickAt clicks a position given in page coordinates.
	ClickAt(ctx context.Context, p Point) error
	// Clear removes the element's current content.
	Clear(ctx context.Context, loc Locator) error
	// SetValue replaces the element's content in a single operation.
	SetValue(ctx context.Context, loc Locator, value string) error
	// SelectOption selects the first option matching value and returns its
	// option value.
	SelectOption(ctx context.Context, loc Locator, value string, match SelectMatch) (string, error)
	// SendKeys types text into the focused element.
	SendKeys(ctx context.Context, keys string) error
	// PressKey dispatches a single named key (e.g. "Tab", "Enter").
	PressKey(ctx context.Context, key string) error

	// SetUploadFiles assigns files to a native file input.
	SetUploadFiles(ctx context.Context, loc Locator, files []string) error
	// DropFiles simulates dropping files at a position in page coordinates.
	DropFiles(ctx context.Context, p Point, files []string) error
	// ChooseFiles clicks trigger and answers the resulting file chooser.
	ChooseFiles(ctx context.Context, trigger Locator, files []string) error
}

// Session is a browser session owned by exactly one task.
type Session interface {
	Page
	ID() string
	// Close releases the browser process. It is safe to call more than once.
	Close(ctx context.Context) error
}

// SessionOpener creates isolated browser sessions.
type SessionOpener interface {
	OpenSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// -- Result Interfaces --

// ResultRecorder persists the outcome of a task. It sits at the boundary to
// the application's persistence layer.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result *FillResult) error
}

// TaskRunner executes a single fill task end to end.
type TaskRunner interface {
	Run(ctx context.Context, task FillTask) (*FillResult, error)
}
