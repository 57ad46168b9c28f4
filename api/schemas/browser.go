package schemas

import "time"

// -- Browser Page Schemas --

// ElementSnapshot is the metadata captured for a single element inside the
// page, by the structural scan or by focus traversal.
type ElementSnapshot struct {
	TagName     string         `json:"tag"`
	InputType   string         `json:"type"`
	ElementID   string         `json:"id"`
	Name        string         `json:"name"`
	Classes     string         `json:"classes"`
	Placeholder string         `json:"placeholder"`
	AriaLabel   string         `json:"ariaLabel"`
	Role        string         `json:"role"`
	Label       string         `json:"label"`
	Required    bool           `json:"required"`
	Editable    bool           `json:"editable"`
	Bounds      Rect           `json:"rect"`
	CSSPath     string         `json:"css"`
	XPath       string         `json:"xpath"`
	Options     []SelectOption `json:"options"`
	// Upload marks a non-input container matched by upload class or
	// attribute patterns, such as a drop zone.
	Upload bool `json:"upload"`
}

// UploadTrigger is a clickable element that looks like it opens a file
// chooser.
type UploadTrigger struct {
	Locator Locator `json:"locator"`
	Text    string  `json:"text"`
	Bounds  Rect    `json:"bounds"`
}

// PageState is a summary of the page used for confirmation checks.
type PageState struct {
	URL   string `json:"url"`
	Text  string `json:"text"`
	Title string `json:"title"`
	// ConfirmationElement is true when a well-known confirmation container
	// is present and visible.
	ConfirmationElement bool `json:"confirmationElement"`
}

// SelectMatch selects how an option is matched against a value.
type SelectMatch string

const (
	MatchOptionValue SelectMatch = "value"
	MatchOptionLabel SelectMatch = "label"
)

// SessionOptions customizes a browser session at open time.
type SessionOptions struct {
	// Headless overrides the configured headless mode when set.
	Headless *bool
	// OperationTimeout bounds individual page operations.
	OperationTimeout time.Duration
}
