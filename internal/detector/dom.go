package detector

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// DetectDOM queries the document for input-like elements, skipping
// invisible ones, and infers a label for each.
func (d *Detector) DetectDOM(ctx context.Context, page schemas.Page) ([]schemas.DetectedField, error) {
	var snaps []schemas.ElementSnapshot
	if err := page.Evaluate(ctx, domScanScript(d.cfg.LabelRadius), &snaps); err != nil {
		return nil, fmt.Errorf("detector: dom scan failed: %w", err)
	}

	fields := make([]schemas.DetectedField, 0, len(snaps))
	for _, s := range snaps {
		fields = d.keep(fields, fromSnapshot(s, schemas.StrategyDOM, DOMConfidence))
	}
	return fields, nil
}
