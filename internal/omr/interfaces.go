package omr

import (
	"image"

	"go-omr-scanner/pkg/models"
)

// SheetAnalyzer runs the full bubble-grid pipeline over one sheet image.
type SheetAnalyzer interface {
	// Analyze runs the pipeline with the analyzer's default options.
	Analyze(img image.Image) (models.SheetResult, error)

	// AnalyzeWithOptions runs the pipeline with per-call options. Only an
	// image-load failure returns an error; every other condition degrades
	// to a low-confidence result inside SheetResult.
	AnalyzeWithOptions(img image.Image, options AnalysisOptions) (models.SheetResult, error)

	// Lifecycle management
	Close() error
}

// BubbleScorer measures how filled a bubble is at a sample point on the
// enhanced grayscale image. 0 is pure white, 1 is fully dark.
type BubbleScorer interface {
	Score(gray *image.Gray, pt models.SamplePoint) float64
}

// FillClassifier is the capability an externally trained bubble classifier
// provides. The engine never depends on a specific model format; a
// classifier is adapted into a BubbleScorer at configuration time.
type FillClassifier interface {
	Classify(gray *image.Gray, pt models.SamplePoint) (filled bool, confidence float64)
}
