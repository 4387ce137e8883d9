package strategy

import (
	"image"

	"go-omr-scanner/internal/omr"
	"go-omr-scanner/pkg/models"
)

// CalibrationStrategy defines the interface for different bubble
// coordinate calibration strategies
type CalibrationStrategy interface {
	Analyze(img image.Image) (models.SheetResult, error)
	GetStrategyName() string
}

// InferredLayoutStrategy detects bubbles and infers the grid from the scan
// itself. The fallback when no reference layout is registered.
type InferredLayoutStrategy struct {
	analyzer omr.SheetAnalyzer
	options  omr.AnalysisOptions
}

// NewInferredLayoutStrategy creates a strategy that infers coordinates
func NewInferredLayoutStrategy(analyzer omr.SheetAnalyzer, options omr.AnalysisOptions) CalibrationStrategy {
	options.ReferenceLayout = nil
	return &InferredLayoutStrategy{
		analyzer: analyzer,
		options:  options,
	}
}

// Analyze performs analysis with grid inference
func (s *InferredLayoutStrategy) Analyze(img image.Image) (models.SheetResult, error) {
	return s.analyzer.AnalyzeWithOptions(img, s.options)
}

// GetStrategyName returns the strategy name
func (s *InferredLayoutStrategy) GetStrategyName() string {
	return "inferred_layout"
}

// ReferenceLayoutStrategy rescales a known reference layout onto the scan.
// More robust than inference when the form template is known.
type ReferenceLayoutStrategy struct {
	analyzer omr.SheetAnalyzer
	options  omr.AnalysisOptions
}

// NewReferenceLayoutStrategy creates a strategy that uses a known layout
func NewReferenceLayoutStrategy(analyzer omr.SheetAnalyzer, options omr.AnalysisOptions, layout *models.ReferenceLayout) CalibrationStrategy {
	options.ReferenceLayout = layout
	return &ReferenceLayoutStrategy{
		analyzer: analyzer,
		options:  options,
	}
}

// Analyze performs analysis against the reference layout
func (s *ReferenceLayoutStrategy) Analyze(img image.Image) (models.SheetResult, error) {
	return s.analyzer.AnalyzeWithOptions(img, s.options)
}

// GetStrategyName returns the strategy name
func (s *ReferenceLayoutStrategy) GetStrategyName() string {
	return "reference_layout"
}

// CalibrationContext manages the active calibration strategy
type CalibrationContext struct {
	strategy CalibrationStrategy
}

// NewCalibrationContext creates a new calibration context
func NewCalibrationContext(strategy CalibrationStrategy) *CalibrationContext {
	return &CalibrationContext{
		strategy: strategy,
	}
}

// SetStrategy changes the calibration strategy
func (c *CalibrationContext) SetStrategy(strategy CalibrationStrategy) {
	c.strategy = strategy
}

// ExecuteAnalysis performs analysis using the current strategy
func (c *CalibrationContext) ExecuteAnalysis(img image.Image) (models.SheetResult, error) {
	return c.strategy.Analyze(img)
}

// GetCurrentStrategy returns the current strategy name
func (c *CalibrationContext) GetCurrentStrategy() string {
	return c.strategy.GetStrategyName()
}
