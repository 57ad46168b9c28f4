package schemas

import (
	"errors"
	"fmt"
	"math"
)

// -- Field Detection Schemas --

// Category is the semantic purpose of a form field.
type Category string

const (
	CategoryText       Category = "text"
	CategoryEmail      Category = "email"
	CategoryPhone      Category = "phone"
	CategoryName       Category = "name"
	CategoryAddress    Category = "address"
	CategoryCompany    Category = "company"
	CategoryPosition   Category = "position"
	CategorySalary     Category = "salary"
	CategorySkills     Category = "skills"
	CategoryEducation  Category = "education"
	CategoryFileUpload Category = "file_upload"
	CategorySelect     Category = "select"
	CategoryTextarea   Category = "textarea"
	CategoryUnknown    Category = "unknown"

	// Refinements of the categories above, produced by keyword matching.
	CategoryFirstName  Category = "first_name"
	CategoryLastName   Category = "last_name"
	CategoryExperience Category = "experience"
	CategorySummary    Category = "summary"
	CategoryLinkedIn   Category = "linkedin"
	CategoryGitHub     Category = "github"
	CategoryWebsite    Category = "website"
	CategoryURL        Category = "url"
	CategoryPassword   Category = "password"
	CategoryDate       Category = "date"
)

// IsGeneric reports whether the category carries no semantic meaning of its
// own, so that label keywords should be consulted to find a value.
func (c Category) IsGeneric() bool {
	switch c {
	case CategoryText, CategoryUnknown, CategorySelect, CategoryTextarea, "":
		return true
	}
	return false
}

// Strategy identifies a detection strategy.
type Strategy string

const (
	StrategyDOM    Strategy = "dom"
	StrategyVisual Strategy = "visual"
	StrategyTab    Strategy = "tab"
	StrategyHybrid Strategy = "hybrid"
)

// ParseStrategy converts user input into a Strategy, defaulting to hybrid.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyHybrid, nil
	case StrategyDOM, StrategyVisual, StrategyTab, StrategyHybrid:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown detection method %q (want dom, visual, tab or hybrid)", s)
}

// LocatorKind names the mechanism a Locator uses to re-find an element.
type LocatorKind string

const (
	LocatorCSS   LocatorKind = "css"
	LocatorXPath LocatorKind = "xpath"
	LocatorID    LocatorKind = "id"
	LocatorName  LocatorKind = "name"
	// LocatorActive targets whichever element currently has focus.
	LocatorActive LocatorKind = "active"
)

// Locator is one way of re-finding an element in the live page.
type Locator struct {
	Kind  LocatorKind `json:"kind"`
	Value string      `json:"value,omitempty"`
}

func (l Locator) String() string {
	if l.Kind == LocatorActive {
		return string(l.Kind)
	}
	return fmt.Sprintf("%s=%s", l.Kind, l.Value)
}

// ActiveElement is the locator for the focused element.
var ActiveElement = Locator{Kind: LocatorActive}

// Point is a position in page coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a bounding box in page coordinates (CSS pixels from the document
// origin). At scroll offset zero these are identical to viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Distance is the Euclidean distance between the centers of two rectangles.
func (r Rect) Distance(other Rect) float64 {
	a, b := r.Center(), other.Center()
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// SelectOption is a single <option> of a dropdown.
type SelectOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// DetectedField is a candidate form control produced by a detection strategy.
// It is treated as a value: strategies and the merge step produce new copies
// rather than mutating fields handed to them.
type DetectedField struct {
	ID          string         `json:"id"`
	Category    Category       `json:"category"`
	Label       string         `json:"label,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	Name        string         `json:"name,omitempty"`
	ElementID   string         `json:"element_id,omitempty"`
	Classes     string         `json:"classes,omitempty"`
	TagName     string         `json:"tag_name,omitempty"`
	InputType   string         `json:"input_type,omitempty"`
	Required    bool           `json:"required"`
	Bounds      Rect           `json:"bounds"`
	Locators    []Locator      `json:"locators,omitempty"`
	Confidence  float64        `json:"confidence"`
	Sources     []Strategy     `json:"sources"`
	Options     []SelectOption `json:"options,omitempty"`
}

// HasSource reports whether the given strategy contributed to this field.
func (f DetectedField) HasSource(s Strategy) bool {
	for _, src := range f.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so slices are never shared between fields.
func (f DetectedField) Clone() DetectedField {
	c := f
	c.Locators = append([]Locator(nil), f.Locators...)
	c.Sources = append([]Strategy(nil), f.Sources...)
	c.Options = append([]SelectOption(nil), f.Options...)
	return c
}

var (
	ErrMissingSource     = errors.New("detected field has no source strategy")
	ErrInvalidConfidence = errors.New("detected field confidence outside [0,1]")
	ErrMissingCategory   = errors.New("detected field has no category")
	ErrUnlocatable       = errors.New("detected field has neither locators nor bounds")
)

// Validate rejects malformed detections before they enter the merge.
func (f DetectedField) Validate() error {
	if len(f.Sources) == 0 {
		return ErrMissingSource
	}
	if f.Category == "" {
		return ErrMissingCategory
	}
	if math.IsNaN(f.Confidence) || f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidConfidence, f.Confidence)
	}
	if len(f.Locators) == 0 && f.Bounds.IsEmpty() {
		return ErrUnlocatable
	}
	return nil
}
