package models

// ScanRequest is the payload for a sheet scan. AnswerKey is optional; when
// present the response carries an accuracy report against it.
type ScanRequest struct {
	URL                string   `json:"url" binding:"required,url"`
	AnswerKey          []string `json:"answer_key,omitempty"`
	UseReferenceLayout bool     `json:"use_reference_layout,omitempty"`
}

// ErrorResponse is the JSON error envelope shared across endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ScanResponse is the API response for a sheet scan.
type ScanResponse struct {
	SheetURL          string           `json:"sheet_url"`
	Timestamp         string           `json:"timestamp"`
	ProcessingTimeSec float64          `json:"processing_time_sec"`
	Questions         []QuestionResult `json:"questions"`
	ExtractedAnswers  []string         `json:"extracted_answers"`
	OverallConfidence float64          `json:"overall_confidence"`
	Quality           QualityMetrics   `json:"quality"`
	Layout            LayoutInfo       `json:"layout"`
	Accuracy          *AccuracyReport  `json:"accuracy,omitempty"`
	Errors            []string         `json:"errors,omitempty"`
}
