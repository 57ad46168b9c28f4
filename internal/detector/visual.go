package detector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/classifier"
)

// ErrNoVisionModel is returned by DetectVisual when no model is configured.
var ErrNoVisionModel = errors.New("detector: no vision model configured")

// DetectVisual screenshots the whole page and asks the vision model for
// input-like regions. Visual fields carry bounds only, no locators.
func (d *Detector) DetectVisual(ctx context.Context, page schemas.Page) ([]schemas.DetectedField, error) {
	if d.model == nil {
		return nil, ErrNoVisionModel
	}
	png, err := page.FullScreenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("detector: screenshot failed: %w", err)
	}
	regions, err := d.model.DetectRegions(ctx, png)
	if err != nil {
		return nil, fmt.Errorf("detector: %s model failed: %w", d.model.Name(), err)
	}
	d.logger.Debug("Vision model returned regions.", zap.String("model", d.model.Name()), zap.Int("regions", len(regions)))

	fields := make([]schemas.DetectedField, 0, len(regions))
	for _, r := range regions {
		category := r.Category
		if category == "" || category == schemas.CategoryUnknown {
			category = classifier.Classify(classifier.RawField{Label: r.Label})
		}
		fields = d.keep(fields, schemas.DetectedField{
			ID:         fieldID(schemas.StrategyVisual, rectKey(r.Bounds)),
			Category:   category,
			Label:      r.Label,
			Bounds:     r.Bounds,
			Confidence: VisualConfidence,
			Sources:    []schemas.Strategy{schemas.StrategyVisual},
		})
	}
	return fields, nil
}
