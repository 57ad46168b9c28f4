// Package detector finds the form fields of a loaded page. Three strategies
// are available (structural DOM scan, screenshot analysis and keyboard focus
// traversal) and a hybrid mode merges all three.
package detector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/detector/vision"
)

// Base confidences per strategy and the boost applied when another strategy
// agrees on a field.
const (
	DOMConfidence    = 0.85
	TabConfidence    = 0.7
	VisualConfidence = 0.6
	ConfidenceBoost  = 0.2
)

const (
	defaultMergeThreshold   = 50.0
	defaultLabelRadius      = 100.0
	defaultMaxTabIterations = 100
)

// Detector runs detection strategies against a page.
type Detector struct {
	cfg    config.AutomationConfig
	model  vision.Model
	logger *zap.Logger
}

// New creates a detector. model may be nil, in which case the visual
// strategy fails and hybrid detection proceeds without it.
func New(cfg config.AutomationConfig, model vision.Model, logger *zap.Logger) *Detector {
	if cfg.MergeThreshold <= 0 {
		cfg.MergeThreshold = defaultMergeThreshold
	}
	if cfg.LabelRadius <= 0 {
		cfg.LabelRadius = defaultLabelRadius
	}
	if cfg.MaxTabIterations <= 0 {
		cfg.MaxTabIterations = defaultMaxTabIterations
	}
	return &Detector{
		cfg:    cfg,
		model:  model,
		logger: logger.Named("detector"),
	}
}

// Detect runs the requested strategy. An empty page yields an empty, non-nil
// slice and no error.
func (d *Detector) Detect(ctx context.Context, page schemas.Page, method schemas.Strategy) ([]schemas.DetectedField, error) {
	start := time.Now()

	var (
		fields []schemas.DetectedField
		err    error
	)
	switch method {
	case schemas.StrategyDOM:
		fields, err = d.DetectDOM(ctx, page)
	case schemas.StrategyVisual:
		fields, err = d.DetectVisual(ctx, page)
	case schemas.StrategyTab:
		fields, err = d.DetectTab(ctx, page)
	case schemas.StrategyHybrid, "":
		method = schemas.StrategyHybrid
		fields, err = d.detectHybrid(ctx, page)
	default:
		return nil, fmt.Errorf("detector: unknown strategy %q", method)
	}
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []schemas.DetectedField{}
	}

	d.logger.Info("Field detection complete.",
		zap.String("method", string(method)),
		zap.Int("fields", len(fields)),
		zap.Duration("duration", time.Since(start)),
	)
	return fields, nil
}

// detectHybrid runs the three strategies concurrently. They only read the
// page, so sharing it is safe. Visual and tab failures reduce coverage but
// are not fatal; a DOM failure is.
func (d *Detector) detectHybrid(ctx context.Context, page schemas.Page) ([]schemas.DetectedField, error) {
	var domFields, tabFields, visualFields []schemas.DetectedField

	var g errgroup.Group
	g.Go(func() error {
		fields, err := d.DetectDOM(ctx, page)
		if err != nil {
			return err
		}
		domFields = fields
		return nil
	})
	g.Go(func() error {
		fields, err := d.DetectTab(ctx, page)
		if err != nil {
			d.logger.Warn("Tab navigation detection failed, continuing without it.", zap.Error(err))
			return nil
		}
		tabFields = fields
		return nil
	})
	g.Go(func() error {
		fields, err := d.DetectVisual(ctx, page)
		if err != nil {
			d.logger.Warn("Visual detection failed, continuing without it.", zap.Error(err))
			return nil
		}
		visualFields = fields
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.logger.Debug("Merging strategy results.",
		zap.Int("dom", len(domFields)),
		zap.Int("tab", len(tabFields)),
		zap.Int("visual", len(visualFields)),
	)
	return Merge(domFields, tabFields, visualFields, d.cfg.MergeThreshold), nil
}

// keep appends f when it passes validation.
func (d *Detector) keep(fields []schemas.DetectedField, f schemas.DetectedField) []schemas.DetectedField {
	if err := f.Validate(); err != nil {
		d.logger.Debug("Discarding malformed detection.", zap.String("field_id", f.ID), zap.Error(err))
		return fields
	}
	return append(fields, f)
}
