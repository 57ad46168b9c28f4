package detector

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/classifier"
)

var fieldNamespace = uuid.MustParse("8d0b6b7e-3f55-4a3c-9c52-7f1e0c6d2a94")

// fieldID derives a stable identifier from the detecting strategy and an
// element key, so repeated scans of the same page agree.
func fieldID(strategy schemas.Strategy, key string) string {
	return uuid.NewSHA1(fieldNamespace, []byte(string(strategy)+"|"+key)).String()
}

func snapshotKey(s schemas.ElementSnapshot) string {
	if s.ElementID != "" {
		return "id:" + s.ElementID
	}
	return "path:" + s.CSSPath + "|" + s.XPath
}

func rectKey(r schemas.Rect) string {
	return fmt.Sprintf("rect:%.0f,%.0f,%.0f,%.0f", r.X, r.Y, r.Width, r.Height)
}

// snapshotLocators lists every usable locator, most specific first.
func snapshotLocators(s schemas.ElementSnapshot) []schemas.Locator {
	var locs []schemas.Locator
	if s.CSSPath != "" {
		locs = append(locs, schemas.Locator{Kind: schemas.LocatorCSS, Value: s.CSSPath})
	}
	if s.XPath != "" {
		locs = append(locs, schemas.Locator{Kind: schemas.LocatorXPath, Value: s.XPath})
	}
	if s.ElementID != "" {
		locs = append(locs, schemas.Locator{Kind: schemas.LocatorID, Value: s.ElementID})
	}
	if s.Name != "" {
		locs = append(locs, schemas.Locator{Kind: schemas.LocatorName, Value: s.Name})
	}
	return locs
}

// fromSnapshot turns element metadata into a detection with a provisional
// category.
func fromSnapshot(s schemas.ElementSnapshot, strategy schemas.Strategy, confidence float64) schemas.DetectedField {
	category := classifier.Classify(classifier.RawField{
		TagName:     s.TagName,
		InputType:   s.InputType,
		Label:       s.Label,
		Placeholder: s.Placeholder,
		Name:        s.Name,
		ElementID:   s.ElementID,
		Classes:     s.Classes,
	})
	if s.Upload {
		category = schemas.CategoryFileUpload
	}
	return schemas.DetectedField{
		ID:          fieldID(strategy, snapshotKey(s)),
		Category:    category,
		Label:       s.Label,
		Placeholder: s.Placeholder,
		Name:        s.Name,
		ElementID:   s.ElementID,
		Classes:     s.Classes,
		TagName:     s.TagName,
		InputType:   s.InputType,
		Required:    s.Required,
		Bounds:      s.Bounds,
		Locators:    snapshotLocators(s),
		Confidence:  confidence,
		Sources:     []schemas.Strategy{strategy},
		Options:     append([]schemas.SelectOption(nil), s.Options...),
	}
}
