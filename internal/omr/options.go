package omr

import (
	"fmt"
	"math"

	"go-omr-scanner/pkg/models"
)

// AnalysisOptions provides the complete tuning surface for one pipeline
// invocation. Options are passed by value: concurrent sheet analyses never
// share mutable configuration state.
type AnalysisOptions struct {
	// Preprocessing
	SmoothingRadius float64 // Gaussian radius for denoise, 0 disables
	TileSize        int     // tile size for illumination normalization
	ThresholdWindow int     // neighborhood size for adaptive binarization
	ThresholdBias   int     // subtracted from the local mean (0-255 scale)

	// Candidate filtering
	MinBubbleArea   int
	MaxBubbleArea   int
	AspectTolerance float64 // accepted deviation of width/height from 1.0
	MinCircularity  float64

	// Grid clustering
	RowTolerance    float64 // max |y - rowMeanY| for row membership
	MinStandardRows int     // fewer rows than this marks the grid degenerate

	// Intensity scoring
	AnalysisRadii []int
	RadiusWeights []float64

	// Answer selection
	DetectionThreshold float64

	// Calibration. When ReferenceLayout is set, reference-map mode is used
	// and candidate detection is skipped; otherwise the grid is inferred
	// and QuestionsPerColumnBlock partitions rows into question blocks
	// (nil means a single block with one question per detected row).
	ReferenceLayout         *models.ReferenceLayout
	QuestionsPerColumnBlock []int

	// Scorer overrides the built-in multi-radius scorer when set.
	Scorer BubbleScorer

	// Performance options
	MaxWorkers int
}

// DefaultOptions returns the default analysis options, tuned for ~1000px
// wide sheet photos with bubble radii around 8-12 pixels.
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		SmoothingRadius:    1.5,
		TileSize:           64,
		ThresholdWindow:    31,
		ThresholdBias:      15,
		MinBubbleArea:      60,
		MaxBubbleArea:      4000,
		AspectTolerance:    0.4,
		MinCircularity:     0.3,
		RowTolerance:       12,
		MinStandardRows:    2,
		AnalysisRadii:      []int{3, 5, 7, 9, 11},
		RadiusWeights:      []float64{0.10, 0.20, 0.40, 0.20, 0.10},
		DetectionThreshold: 0.30,
		MaxWorkers:         0, // use default CPU count
	}
}

// WithReferenceLayout returns options using a fixed, scale-corrected layout.
func (opts AnalysisOptions) WithReferenceLayout(layout *models.ReferenceLayout) AnalysisOptions {
	opts.ReferenceLayout = layout
	return opts
}

// WithPartition returns options with the questions-per-column-block
// partition used by inferred-mode calibration (e.g. [14, 13, 13]).
func (opts AnalysisOptions) WithPartition(partition []int) AnalysisOptions {
	opts.QuestionsPerColumnBlock = partition
	return opts
}

// WithDetectionThreshold returns options with a custom fill threshold.
func (opts AnalysisOptions) WithDetectionThreshold(threshold float64) AnalysisOptions {
	opts.DetectionThreshold = threshold
	return opts
}

// WithScorer returns options using a custom bubble scorer.
func (opts AnalysisOptions) WithScorer(scorer BubbleScorer) AnalysisOptions {
	opts.Scorer = scorer
	return opts
}

// WithClassifier returns options scoring bubbles through a trained fill
// classifier instead of the rule-based multi-radius scorer.
func (opts AnalysisOptions) WithClassifier(c FillClassifier) AnalysisOptions {
	opts.Scorer = ScorerFromClassifier(c)
	return opts
}

// Validate checks internal consistency of the options.
func (opts AnalysisOptions) Validate() error {
	if len(opts.AnalysisRadii) == 0 || len(opts.AnalysisRadii) != len(opts.RadiusWeights) {
		return fmt.Errorf("analysis radii (%d) and weights (%d) must be non-empty and equal length",
			len(opts.AnalysisRadii), len(opts.RadiusWeights))
	}
	for i := 1; i < len(opts.AnalysisRadii); i++ {
		if opts.AnalysisRadii[i] <= opts.AnalysisRadii[i-1] {
			return fmt.Errorf("analysis radii must be strictly increasing")
		}
	}
	var sum float64
	for _, w := range opts.RadiusWeights {
		if w < 0 {
			return fmt.Errorf("radius weights must be non-negative")
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("radius weights must sum to 1.0 (got %.3f)", sum)
	}
	if opts.DetectionThreshold <= 0 || opts.DetectionThreshold >= 1 {
		return fmt.Errorf("detection threshold must be in (0, 1) (got %.3f)", opts.DetectionThreshold)
	}
	if opts.MinBubbleArea <= 0 || opts.MaxBubbleArea <= opts.MinBubbleArea {
		return fmt.Errorf("bubble area bounds invalid (min=%d, max=%d)", opts.MinBubbleArea, opts.MaxBubbleArea)
	}
	for _, n := range opts.QuestionsPerColumnBlock {
		if n <= 0 {
			return fmt.Errorf("questions-per-column-block entries must be positive")
		}
	}
	if opts.ReferenceLayout != nil {
		if opts.ReferenceLayout.ReferenceWidth <= 0 || opts.ReferenceLayout.ReferenceHeight <= 0 {
			return fmt.Errorf("reference layout has invalid reference dimensions")
		}
	}
	return nil
}
