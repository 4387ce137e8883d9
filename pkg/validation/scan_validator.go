package validation

import (
	"go-omr-scanner/pkg/models"
)

// ScanThresholds defines configurable boundaries for scan validation
type ScanThresholds struct {
	MinSharpness  float64
	MinBrightness float64
	MinContrast   float64
	MinAlignment  float64

	// Answer extraction trust boundaries
	MinOverallConfidence float64
	MinQualityScore      float64
}

// DefaultScanThresholds returns the default scan thresholds
func DefaultScanThresholds() ScanThresholds {
	return ScanThresholds{
		MinSharpness:         0.35,
		MinBrightness:        0.50,
		MinContrast:          0.40,
		MinAlignment:         0.60,
		MinOverallConfidence: 0.40,
		MinQualityScore:      0.50,
	}
}

// ScanIssue represents a scan validation issue with user-facing advice
type ScanIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning", "info"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// ScanValidator turns quality metrics and extraction confidence into
// actionable rescan advice
type ScanValidator struct {
	thresholds ScanThresholds
}

// NewScanValidator creates a scan validator with default thresholds
func NewScanValidator() *ScanValidator {
	return &ScanValidator{
		thresholds: DefaultScanThresholds(),
	}
}

// NewScanValidatorWithThresholds creates a scan validator with custom thresholds
func NewScanValidatorWithThresholds(thresholds ScanThresholds) *ScanValidator {
	return &ScanValidator{
		thresholds: thresholds,
	}
}

// ValidateScanQuality inspects per-component quality scores and reports what
// the operator should fix before rescanning
func (sv *ScanValidator) ValidateScanQuality(quality models.QualityMetrics) []ScanIssue {
	var issues []ScanIssue

	if quality.Sharpness < sv.thresholds.MinSharpness {
		issues = append(issues, ScanIssue{
			Type:        "sharpness",
			Message:     "Scan is blurry. Clean the scanner glass or increase the resolution.",
			Severity:    "error",
			ActualValue: quality.Sharpness,
			Threshold:   sv.thresholds.MinSharpness,
		})
	}

	if quality.Brightness < sv.thresholds.MinBrightness {
		issues = append(issues, ScanIssue{
			Type:        "brightness",
			Message:     "Scan exposure is off. Adjust the scanner brightness setting.",
			Severity:    "error",
			ActualValue: quality.Brightness,
			Threshold:   sv.thresholds.MinBrightness,
		})
	}

	if quality.Contrast < sv.thresholds.MinContrast {
		issues = append(issues, ScanIssue{
			Type:        "contrast",
			Message:     "Marks are too faint against the paper. Ask for darker pencil marks or raise contrast.",
			Severity:    "warning",
			ActualValue: quality.Contrast,
			Threshold:   sv.thresholds.MinContrast,
		})
	}

	if quality.Alignment < sv.thresholds.MinAlignment {
		issues = append(issues, ScanIssue{
			Type:        "alignment",
			Message:     "Sheet is tilted. Align the page against the scanner guide and rescan.",
			Severity:    "warning",
			ActualValue: quality.Alignment,
			Threshold:   sv.thresholds.MinAlignment,
		})
	}

	if !quality.IsReadyForProcessing {
		issues = append(issues, ScanIssue{
			Type:        "overall_quality",
			Message:     "Overall scan quality is below the processing gate. Rescan the sheet.",
			Severity:    "error",
			ActualValue: quality.OverallScore,
			Threshold:   sv.thresholds.MinQualityScore,
		})
	}

	return issues
}

// ValidateExtraction flags results whose answers should be human-reviewed
// rather than trusted
func (sv *ScanValidator) ValidateExtraction(result models.SheetResult) []ScanIssue {
	issues := sv.ValidateScanQuality(result.Quality)

	if result.OverallConfidence < sv.thresholds.MinOverallConfidence {
		issues = append(issues, ScanIssue{
			Type:        "low_confidence",
			Message:     "Answer extraction confidence is low. Review this sheet manually.",
			Severity:    "warning",
			ActualValue: result.OverallConfidence,
			Threshold:   sv.thresholds.MinOverallConfidence,
		})
	}

	for _, q := range result.Questions {
		if q.Status != models.StatusOK {
			issues = append(issues, ScanIssue{
				Type:     "question_" + q.Status,
				Message:  "One or more questions could not be located on the sheet.",
				Severity: "warning",
			})
			break
		}
	}

	return issues
}

// ConvertIssuesToMessages converts scan issues to simple error messages
func (sv *ScanValidator) ConvertIssuesToMessages(issues []ScanIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (sv *ScanValidator) HasCriticalIssues(issues []ScanIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}
