// Package vision finds input-like regions in page screenshots.
package vision

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// Region is an input-like area of a screenshot, in image pixels.
type Region struct {
	Bounds schemas.Rect
	Label  string
	// Category is the model's guess, or unknown.
	Category schemas.Category
}

// Model detects input regions in a PNG screenshot.
type Model interface {
	DetectRegions(ctx context.Context, png []byte) ([]Region, error)
	Name() string
}

// New returns the configured model. The Gemini provider requires an API
// key; without one the heuristic model is used.
func New(ctx context.Context, cfg config.VisionConfig, logger *zap.Logger) (Model, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		if cfg.APIKey == "" {
			logger.Warn("Gemini vision provider configured without an API key, using heuristic detection.")
			return NewHeuristic(cfg), nil
		}
		m, err := NewGemini(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("vision: failed to create gemini model: %w", err)
		}
		return m, nil
	case config.ProviderHeuristic, "":
		return NewHeuristic(cfg), nil
	}
	return nil, fmt.Errorf("vision: unknown provider %q", cfg.Provider)
}
