package omr

import (
	"image"
	"testing"

	"github.com/disintegration/imaging"

	apperrors "go-omr-scanner/internal/errors"
	"go-omr-scanner/pkg/models"
)

// buildSheet renders a synthetic 400x300 answer sheet with 3 questions and
// 5 options each. Every bubble is printed as a light outline disk; fills
// override specific options with a darker pencil level.
func buildSheet(fills map[int]map[string]uint8) *image.Gray {
	img := newWhiteGray(400, 300)
	for q := 1; q <= 3; q++ {
		for j := 0; j < 5; j++ {
			label := string(rune('A' + j))
			level := uint8(215)
			if overrides, ok := fills[q]; ok {
				if v, ok := overrides[label]; ok {
					level = v
				}
			}
			drawDisk(img, 80+40*j, 80+50*(q-1), 9, level)
		}
	}
	return img
}

func sheetLayout() *models.ReferenceLayout {
	layout := &models.ReferenceLayout{
		ReferenceWidth:  400,
		ReferenceHeight: 300,
		Questions:       make(map[int]models.OptionPoints),
	}
	for q := 1; q <= 3; q++ {
		points := make(models.OptionPoints, 5)
		for j := 0; j < 5; j++ {
			points[string(rune('A'+j))] = models.SamplePoint{
				X: float64(80 + 40*j),
				Y: float64(80 + 50*(q-1)),
			}
		}
		layout.Questions[q] = points
	}
	return layout
}

func newTestAnalyzer(t *testing.T, opts AnalysisOptions) SheetAnalyzer {
	t.Helper()
	analyzer, err := NewSheetAnalyzer(opts)
	if err != nil {
		t.Fatalf("NewSheetAnalyzer failed: %v", err)
	}
	t.Cleanup(func() { analyzer.Close() })
	return analyzer
}

func TestAnalyze_EndToEnd(t *testing.T) {
	img := buildSheet(map[int]map[string]uint8{
		2: {"C": 25},
	})

	analyzer := newTestAnalyzer(t, DefaultOptions().WithPartition([]int{3}))
	result, err := analyzer.Analyze(img)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	want := []string{"BLANK", "C", "BLANK"}
	if len(result.ExtractedAnswers) != len(want) {
		t.Fatalf("Expected %d answers, got %d", len(want), len(result.ExtractedAnswers))
	}
	for i, answer := range result.ExtractedAnswers {
		if answer != want[i] {
			t.Errorf("Question %d answer = %q, want %q", i+1, answer, want[i])
		}
	}

	if result.Questions[1].Confidence < 0.5 {
		t.Errorf("Filled question confidence = %v, want >= 0.5", result.Questions[1].Confidence)
	}
	for _, i := range []int{0, 2} {
		if result.Questions[i].Confidence > 0.3 {
			t.Errorf("Blank question %d confidence = %v, want <= 0.3", i+1, result.Questions[i].Confidence)
		}
		if result.Questions[i].Status != models.StatusOK {
			t.Errorf("Blank question %d status = %q, want ok", i+1, result.Questions[i].Status)
		}
	}

	if result.Layout.CoordinateSource != models.CoordinateSourceInferred {
		t.Errorf("Coordinate source = %q, want inferred", result.Layout.CoordinateSource)
	}
	if result.Layout.CalibrationConfidence < 0.8 {
		t.Errorf("Calibration confidence = %v, want >= 0.8", result.Layout.CalibrationConfidence)
	}
	if result.OverallConfidence <= 0.2 {
		t.Errorf("Overall confidence = %v, want > 0.2", result.OverallConfidence)
	}
	if result.Quality.OverallScore < 0 || result.Quality.OverallScore > 1 {
		t.Errorf("Quality score out of range: %v", result.Quality.OverallScore)
	}
}

func TestAnalyze_MultipleMarks(t *testing.T) {
	img := buildSheet(map[int]map[string]uint8{
		1: {"B": 25, "D": 25},
		2: {"A": 25},
	})

	analyzer := newTestAnalyzer(t, DefaultOptions().WithPartition([]int{3}))
	result, err := analyzer.Analyze(img)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.ExtractedAnswers[0] != "MULTIPLE:BD" {
		t.Errorf("Question 1 answer = %q, want MULTIPLE:BD", result.ExtractedAnswers[0])
	}
	if result.ExtractedAnswers[1] != "A" {
		t.Errorf("Question 2 answer = %q, want A", result.ExtractedAnswers[1])
	}
	if result.ExtractedAnswers[2] != "BLANK" {
		t.Errorf("Question 3 answer = %q, want BLANK", result.ExtractedAnswers[2])
	}

	if result.Questions[0].Confidence >= result.Questions[1].Confidence {
		t.Errorf("Multiple-mark confidence (%v) should be below single-mark (%v)",
			result.Questions[0].Confidence, result.Questions[1].Confidence)
	}
}

func TestAnalyze_ScaleInvariance(t *testing.T) {
	// The same sheet at 1x and 2x resolution must extract identical answers
	// when calibrated against the same reference layout.
	img := buildSheet(map[int]map[string]uint8{
		1: {"E": 25},
		3: {"B": 25},
	})
	big := imaging.Resize(img, 800, 600, imaging.Lanczos)

	opts := DefaultOptions().
		WithReferenceLayout(sheetLayout()).
		WithPartition([]int{3})
	analyzer := newTestAnalyzer(t, opts)

	base, err := analyzer.Analyze(img)
	if err != nil {
		t.Fatalf("Analyze at 1x failed: %v", err)
	}
	scaled, err := analyzer.Analyze(big)
	if err != nil {
		t.Fatalf("Analyze at 2x failed: %v", err)
	}

	if len(base.ExtractedAnswers) != len(scaled.ExtractedAnswers) {
		t.Fatalf("Answer counts differ: %d vs %d",
			len(base.ExtractedAnswers), len(scaled.ExtractedAnswers))
	}
	for i := range base.ExtractedAnswers {
		if base.ExtractedAnswers[i] != scaled.ExtractedAnswers[i] {
			t.Errorf("Question %d differs across scales: %q vs %q",
				i+1, base.ExtractedAnswers[i], scaled.ExtractedAnswers[i])
		}
	}

	want := []string{"E", "BLANK", "B"}
	for i, answer := range base.ExtractedAnswers {
		if answer != want[i] {
			t.Errorf("Question %d answer = %q, want %q", i+1, answer, want[i])
		}
	}
	if base.Layout.CoordinateSource != models.CoordinateSourceReference {
		t.Errorf("Coordinate source = %q, want reference", base.Layout.CoordinateSource)
	}
}

func TestAnalyze_BlankSheet(t *testing.T) {
	analyzer := newTestAnalyzer(t, DefaultOptions().WithPartition([]int{3}))
	result, err := analyzer.Analyze(newWhiteGray(400, 300))
	if err != nil {
		t.Fatalf("A featureless sheet must not error, got: %v", err)
	}

	if len(result.Errors) == 0 {
		t.Error("Expected an error note for a sheet with no candidates")
	}
	if result.Quality.OverallScore != 0 {
		t.Errorf("Quality score = %v, want 0", result.Quality.OverallScore)
	}
	if result.Quality.IsReadyForProcessing {
		t.Error("A candidate-free sheet must not be ready for processing")
	}
	if len(result.Questions) != 0 {
		t.Errorf("Expected no question results, got %d", len(result.Questions))
	}
}

func TestAnalyze_NilImage(t *testing.T) {
	analyzer := newTestAnalyzer(t, DefaultOptions())
	_, err := analyzer.Analyze(nil)
	if err == nil {
		t.Fatal("Expected error for nil image")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeImageLoad) {
		t.Errorf("Expected image load error, got %v", err)
	}
}

func TestAnalyze_MissingQuestion(t *testing.T) {
	// The partition expects four questions but the sheet only has three
	// rows; the fourth is reported missing with low confidence.
	img := buildSheet(map[int]map[string]uint8{
		1: {"A": 25},
	})

	analyzer := newTestAnalyzer(t, DefaultOptions().WithPartition([]int{4}))
	result, err := analyzer.Analyze(img)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(result.Questions) != 4 {
		t.Fatalf("Expected 4 question results, got %d", len(result.Questions))
	}
	missing := result.Questions[3]
	if missing.Status != models.StatusMissing {
		t.Errorf("Question 4 status = %q, want missing", missing.Status)
	}
	if missing.Answer != models.AnswerBlank {
		t.Errorf("Question 4 answer = %q, want BLANK", missing.Answer)
	}
	if missing.Confidence != 0.1 {
		t.Errorf("Question 4 confidence = %v, want 0.1", missing.Confidence)
	}
}

func TestNewSheetAnalyzer_InvalidOptions(t *testing.T) {
	if _, err := NewSheetAnalyzer(AnalysisOptions{}); err == nil {
		t.Error("Expected error for zero-value options")
	}
}
