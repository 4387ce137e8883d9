package models

import "time"

// Answer values that are not option letters.
const (
	AnswerBlank          = "BLANK"
	AnswerMultiplePrefix = "MULTIPLE:"
)

// Per-question grading status.
const (
	StatusOK       = "ok"
	StatusMissing  = "missing"  // calibration produced no entry for the question
	StatusDegraded = "degraded" // degenerate grid, scored with confidence 0
)

// QuestionResult is the immutable per-question decision record.
type QuestionResult struct {
	Question     int                `json:"question"`
	Answer       string             `json:"answer"`
	Status       string             `json:"status"`
	Confidence   float64            `json:"confidence"`
	Intensities  map[string]float64 `json:"intensities,omitempty"`
	SamplePoints OptionPoints       `json:"sample_points,omitempty"`
}

// QualityMetrics aggregates image-level quality scores, each in [0,1].
type QualityMetrics struct {
	Sharpness            float64 `json:"sharpness"`
	Brightness           float64 `json:"brightness"`
	Contrast             float64 `json:"contrast"`
	Alignment            float64 `json:"alignment"`
	OverallScore         float64 `json:"overall_score"`
	Category             string  `json:"category"`
	IsReadyForProcessing bool    `json:"is_ready_for_processing"`
}

// AccuracyReport compares extracted answers against a supplied answer key.
// MatchRate is the fraction of keyed questions answered with the exact key
// letter. SequenceAgreement is an edit-distance similarity over the compact
// answer sequence, which stays informative when questions are missing.
type AccuracyReport struct {
	Graded            int     `json:"graded"`
	Matches           int     `json:"matches"`
	MatchRate         float64 `json:"match_rate"`
	SequenceAgreement float64 `json:"sequence_agreement"`
}

// SheetResult is the complete result record for one analyzed sheet.
type SheetResult struct {
	Timestamp         time.Time `json:"timestamp"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`

	Questions        []QuestionResult `json:"questions"`
	ExtractedAnswers []string         `json:"extracted_answers"`

	OverallConfidence float64        `json:"overall_confidence"`
	Quality           QualityMetrics `json:"quality"`
	Layout            LayoutInfo     `json:"layout"`

	// Accuracy is present only when an answer key was supplied.
	Accuracy *AccuracyReport `json:"accuracy,omitempty"`

	// Errors lists non-fatal degradations encountered during analysis.
	Errors []string `json:"errors,omitempty"`
}
