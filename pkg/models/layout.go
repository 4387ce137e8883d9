package models

// SamplePoint is a coordinate (in pixels) at which a bubble is sampled.
type SamplePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OptionPoints maps an option label (e.g. "A".."E") to its sample point.
type OptionPoints map[string]SamplePoint

// ReferenceLayout is a previously captured coordinate table for a known sheet
// layout, defined against a reference image size. Once loaded it is treated as
// read-only and may be shared across concurrent sheet analyses; rescaling
// produces a new value and never mutates the original.
type ReferenceLayout struct {
	ReferenceWidth  int                  `json:"reference_width"`
	ReferenceHeight int                  `json:"reference_height"`
	Questions       map[int]OptionPoints `json:"questions"`
}

// LayoutInfo describes the layout detected (or assumed) for one sheet.
type LayoutInfo struct {
	Columns               int     `json:"columns"`
	QuestionsPerColumn    []int   `json:"questions_per_column,omitempty"`
	CoordinateSource      string  `json:"coordinate_source"`
	CalibrationConfidence float64 `json:"calibration_confidence"`
}

// Coordinate source values for LayoutInfo.
const (
	CoordinateSourceReference = "reference"
	CoordinateSourceInferred  = "inferred"
)
