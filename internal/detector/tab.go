package detector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// maxFocusMisses ends traversal when focus keeps landing outside the
// document, e.g. in the browser chrome.
const maxFocusMisses = 3

// nonTextInputs are focusable inputs that never receive profile values.
var nonTextInputs = map[string]bool{
	"checkbox": true,
	"radio":    true,
	"button":   true,
	"submit":   true,
	"reset":    true,
	"image":    true,
	"hidden":   true,
	"range":    true,
	"color":    true,
}

// DetectTab walks the focus order from the top of the document with Tab
// key presses and records every focused form control. Traversal stops when
// a previously seen element is focused again or after MaxTabIterations.
func (d *Detector) DetectTab(ctx context.Context, page schemas.Page) ([]schemas.DetectedField, error) {
	var reset bool
	if err := page.Evaluate(ctx, tabResetScript(), &reset); err != nil {
		return nil, fmt.Errorf("detector: failed to reset focus: %w", err)
	}

	script := focusScript(d.cfg.LabelRadius)
	seen := make(map[string]bool)
	var fields []schemas.DetectedField
	misses := 0

	for i := 0; i < d.cfg.MaxTabIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := page.PressKey(ctx, "Tab"); err != nil {
			return nil, fmt.Errorf("detector: failed to press tab: %w", err)
		}
		if d.cfg.TabStepDelay > 0 {
			if err := page.Sleep(ctx, d.cfg.TabStepDelay); err != nil {
				return nil, err
			}
		}

		var snap *schemas.ElementSnapshot
		if err := page.Evaluate(ctx, script, &snap); err != nil {
			return nil, fmt.Errorf("detector: failed to read focused element: %w", err)
		}
		if snap == nil {
			misses++
			if misses >= maxFocusMisses {
				break
			}
			continue
		}
		misses = 0

		key := snap.CSSPath + "|" + snap.XPath
		if seen[key] {
			d.logger.Debug("Focus cycle complete.", zap.Int("steps", i+1))
			break
		}
		seen[key] = true

		if !recordable(*snap) {
			continue
		}
		fields = d.keep(fields, fromSnapshot(*snap, schemas.StrategyTab, TabConfidence))
	}
	return fields, nil
}

// recordable reports whether a focused element is a fillable control.
func recordable(s schemas.ElementSnapshot) bool {
	if !s.Editable {
		return false
	}
	return !nonTextInputs[strings.ToLower(s.InputType)]
}
