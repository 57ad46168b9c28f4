package detector

import (
	"math"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Merge combines per-strategy detections into one list in which every
// physical control appears once.
//
// DOM fields seed the result unchanged. A tab field joins an existing field
// when they share a locator or element id, or when their bounds are within
// threshold and neither category nor identity disagrees; otherwise it is
// added. A visual field joins the closest compatible field within threshold,
// or is added.
//
// Joining boosts confidence once per newly contributing strategy, so the
// merged confidence is never below that of any contributor. Inputs are not
// modified.
func Merge(dom, tab, visual []schemas.DetectedField, threshold float64) []schemas.DetectedField {
	merged := make([]schemas.DetectedField, 0, len(dom)+len(tab)+len(visual))
	for _, f := range dom {
		merged = append(merged, f.Clone())
	}
	for _, f := range tab {
		if i := matchByIdentity(merged, f); i >= 0 {
			merged[i] = absorb(merged[i], f)
			continue
		}
		if i := closest(merged, f, threshold); i >= 0 {
			merged[i] = absorb(merged[i], f)
			continue
		}
		merged = append(merged, f.Clone())
	}
	for _, f := range visual {
		if i := closest(merged, f, threshold); i >= 0 {
			merged[i] = absorb(merged[i], f)
			continue
		}
		merged = append(merged, f.Clone())
	}
	return merged
}

func matchByIdentity(fields []schemas.DetectedField, f schemas.DetectedField) int {
	for i, m := range fields {
		if m.ElementID != "" && m.ElementID == f.ElementID {
			return i
		}
		if sharesLocator(m, f) {
			return i
		}
	}
	return -1
}

func sharesLocator(a, b schemas.DetectedField) bool {
	for _, la := range a.Locators {
		if la.Kind == schemas.LocatorName {
			// Names repeat across radio groups and array style inputs.
			continue
		}
		for _, lb := range b.Locators {
			if la == lb {
				return true
			}
		}
	}
	return false
}

// closest returns the index of the nearest compatible field whose center is
// less than threshold away from f, or -1.
func closest(fields []schemas.DetectedField, f schemas.DetectedField, threshold float64) int {
	if f.Bounds.IsEmpty() {
		return -1
	}
	best, bestDist := -1, math.Inf(1)
	for i, m := range fields {
		if m.Bounds.IsEmpty() || !compatible(m, f) {
			continue
		}
		if d := m.Bounds.Distance(f.Bounds); d < threshold && d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// compatible rejects pairs that are known to be different controls.
func compatible(a, b schemas.DetectedField) bool {
	if a.Category != b.Category && !a.Category.IsGeneric() && !b.Category.IsGeneric() {
		return false
	}
	if a.ElementID != "" && b.ElementID != "" && a.ElementID != b.ElementID {
		return false
	}
	if a.Name != "" && b.Name != "" && a.Name != b.Name {
		return false
	}
	return true
}

// absorb folds incoming into existing and returns the result.
func absorb(existing, incoming schemas.DetectedField) schemas.DetectedField {
	out := existing.Clone()

	newSource := false
	for _, s := range incoming.Sources {
		if !out.HasSource(s) {
			out.Sources = append(out.Sources, s)
			newSource = true
		}
	}
	top := math.Max(out.Confidence, incoming.Confidence)
	if newSource {
		top = math.Min(top+ConfidenceBoost, 1.0)
	}
	out.Confidence = top

	if out.Category.IsGeneric() && !incoming.Category.IsGeneric() {
		out.Category = incoming.Category
	}
	backfill(&out.Label, incoming.Label)
	backfill(&out.Placeholder, incoming.Placeholder)
	backfill(&out.Name, incoming.Name)
	backfill(&out.ElementID, incoming.ElementID)
	backfill(&out.Classes, incoming.Classes)
	backfill(&out.TagName, incoming.TagName)
	backfill(&out.InputType, incoming.InputType)
	out.Required = out.Required || incoming.Required
	if out.Bounds.IsEmpty() {
		out.Bounds = incoming.Bounds
	}
	if len(out.Options) == 0 {
		out.Options = append(out.Options, incoming.Options...)
	}
	for _, l := range incoming.Locators {
		if !hasLocator(out.Locators, l) {
			out.Locators = append(out.Locators, l)
		}
	}
	return out
}

func backfill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func hasLocator(locs []schemas.Locator, l schemas.Locator) bool {
	for _, x := range locs {
		if x == l {
			return true
		}
	}
	return false
}
