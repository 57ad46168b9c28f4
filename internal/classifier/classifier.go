// Package classifier assigns a semantic category to detected form fields.
// Classification is pure: the same metadata always yields the same category.
package classifier

import (
	"strings"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// RawField is the element metadata classification is based on.
type RawField struct {
	TagName     string
	InputType   string
	Label       string
	Placeholder string
	Name        string
	ElementID   string
	Classes     string
}

// FromField extracts the classification inputs from a detected field.
func FromField(f schemas.DetectedField) RawField {
	return RawField{
		TagName:     f.TagName,
		InputType:   f.InputType,
		Label:       f.Label,
		Placeholder: f.Placeholder,
		Name:        f.Name,
		ElementID:   f.ElementID,
		Classes:     f.Classes,
	}
}

var typeCategories = map[string]schemas.Category{
	"email":    schemas.CategoryEmail,
	"tel":      schemas.CategoryPhone,
	"file":     schemas.CategoryFileUpload,
	"password": schemas.CategoryPassword,
	"date":     schemas.CategoryDate,
	"url":      schemas.CategoryURL,
}

var tagCategories = map[string]schemas.Category{
	"textarea": schemas.CategoryTextarea,
	"select":   schemas.CategorySelect,
}

// urlRefinements are the keyword categories a url-typed input may narrow to.
var urlRefinements = map[schemas.Category]bool{
	schemas.CategoryLinkedIn: true,
	schemas.CategoryGitHub:   true,
	schemas.CategoryWebsite:  true,
}

// Classify maps field metadata to a category. The type attribute and tag
// decide first; otherwise the keyword table is matched against the label,
// placeholder, name, id and class names. Unmatched fields are text.
func Classify(raw RawField) schemas.Category {
	text := raw.keywordText()

	if c, ok := typeCategories[strings.ToLower(strings.TrimSpace(raw.InputType))]; ok {
		if c == schemas.CategoryURL {
			if kc, ok := MatchKeywords(text); ok && urlRefinements[kc] {
				return kc
			}
		}
		return c
	}
	if c, ok := tagCategories[strings.ToLower(strings.TrimSpace(raw.TagName))]; ok {
		return c
	}
	if c, ok := MatchKeywords(text); ok {
		// Upload words on a typed non-file input ("Resume headline") do not
		// make it an upload control.
		if c == schemas.CategoryFileUpload && strings.TrimSpace(raw.InputType) != "" {
			return schemas.CategoryText
		}
		return c
	}
	return schemas.CategoryText
}

func (r RawField) keywordText() string {
	return strings.Join([]string{r.Label, r.Placeholder, r.Name, r.ElementID, r.Classes}, " ")
}

// ClassifyField returns a copy of f with its category assigned. A category
// proposed by the detector survives when the metadata only yields text,
// which happens for selector-less visual detections.
func ClassifyField(f schemas.DetectedField) schemas.DetectedField {
	out := f.Clone()
	c := Classify(FromField(f))
	if c == schemas.CategoryText && !f.Category.IsGeneric() {
		return out
	}
	out.Category = c
	return out
}
