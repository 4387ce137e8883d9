package service

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	apperrors "go-omr-scanner/internal/errors"
	"go-omr-scanner/internal/omr"
	"go-omr-scanner/internal/repository"
	"go-omr-scanner/pkg/models"
)

// stubSheetRepo returns a canned image or error for any URL.
type stubSheetRepo struct {
	img      image.Image
	fetchErr error
	urlErr   error
}

func (r *stubSheetRepo) FetchSheet(_ context.Context, _ string) (image.Image, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return r.img, nil
}

func (r *stubSheetRepo) ValidateSheetURL(_ string) error {
	return r.urlErr
}

// stubAnalyzer records the options it was called with and returns a canned
// result.
type stubAnalyzer struct {
	result   models.SheetResult
	lastOpts omr.AnalysisOptions
	lastDims image.Point
}

func (a *stubAnalyzer) Analyze(img image.Image) (models.SheetResult, error) {
	return a.AnalyzeWithOptions(img, omr.DefaultOptions())
}

func (a *stubAnalyzer) AnalyzeWithOptions(img image.Image, options omr.AnalysisOptions) (models.SheetResult, error) {
	a.lastOpts = options
	a.lastDims = img.Bounds().Size()
	return a.result, nil
}

func (a *stubAnalyzer) Close() error { return nil }

func okResult() models.SheetResult {
	return models.SheetResult{
		Questions: []models.QuestionResult{
			{Question: 1, Answer: "C", Status: models.StatusOK, Confidence: 0.9},
		},
		ExtractedAnswers:  []string{"C"},
		OverallConfidence: 0.9,
		Quality: models.QualityMetrics{
			Sharpness: 0.9, Brightness: 0.9, Contrast: 0.9, Alignment: 0.9,
			OverallScore: 0.9, Category: "excellent", IsReadyForProcessing: true,
		},
	}
}

func newStubService(repo *stubSheetRepo, analyzer *stubAnalyzer, layout *models.ReferenceLayout) ScanService {
	results := repository.NewMemoryResultRepository()
	return NewScanService(repo, results, analyzer, omr.DefaultOptions(), layout, nil, nil, 2400)
}

func TestAnalyzeSheet_Success(t *testing.T) {
	repo := &stubSheetRepo{img: image.NewGray(image.Rect(0, 0, 400, 300))}
	analyzer := &stubAnalyzer{result: okResult()}
	svc := newStubService(repo, analyzer, nil)

	response, err := svc.AnalyzeSheet(context.Background(), models.ScanRequest{
		URL: "https://example.com/sheet.png",
	})
	if err != nil {
		t.Fatalf("AnalyzeSheet failed: %v", err)
	}

	if response.SheetURL != "https://example.com/sheet.png" {
		t.Errorf("SheetURL = %q", response.SheetURL)
	}
	if len(response.ExtractedAnswers) != 1 || response.ExtractedAnswers[0] != "C" {
		t.Errorf("ExtractedAnswers = %v, want [C]", response.ExtractedAnswers)
	}
	if response.Accuracy != nil {
		t.Error("Accuracy should be absent without an answer key")
	}
	if len(response.Errors) != 0 {
		t.Errorf("Unexpected errors on a clean result: %v", response.Errors)
	}
}

func TestAnalyzeSheet_InvalidURL(t *testing.T) {
	repo := &stubSheetRepo{urlErr: errors.New("bad url")}
	svc := newStubService(repo, &stubAnalyzer{result: okResult()}, nil)

	_, err := svc.AnalyzeSheet(context.Background(), models.ScanRequest{URL: "nope"})
	if err == nil {
		t.Fatal("Expected error for invalid URL")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestAnalyzeSheet_FetchFailure(t *testing.T) {
	repo := &stubSheetRepo{fetchErr: errors.New("connection refused")}
	svc := newStubService(repo, &stubAnalyzer{result: okResult()}, nil)

	_, err := svc.AnalyzeSheet(context.Background(), models.ScanRequest{
		URL: "https://example.com/sheet.png",
	})
	if err == nil {
		t.Fatal("Expected error for fetch failure")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNetwork) {
		t.Errorf("Expected network error, got: %v", err)
	}
}

func TestAnalyzeSheet_FetchTimeout(t *testing.T) {
	repo := &stubSheetRepo{fetchErr: context.DeadlineExceeded}
	svc := newStubService(repo, &stubAnalyzer{result: okResult()}, nil)

	_, err := svc.AnalyzeSheet(context.Background(), models.ScanRequest{
		URL: "https://example.com/sheet.png",
	})
	if !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
		t.Errorf("Expected timeout error, got: %v", err)
	}
}

func TestAnalyzeSheet_ReferenceLayoutSelection(t *testing.T) {
	layout := &models.ReferenceLayout{
		ReferenceWidth:  400,
		ReferenceHeight: 300,
		Questions: map[int]models.OptionPoints{
			1: {"A": {X: 80, Y: 80}},
		},
	}
	repo := &stubSheetRepo{img: image.NewGray(image.Rect(0, 0, 400, 300))}
	analyzer := &stubAnalyzer{result: okResult()}
	svc := newStubService(repo, analyzer, layout)

	request := models.ScanRequest{URL: "https://example.com/sheet.png"}

	request.UseReferenceLayout = true
	if _, err := svc.AnalyzeSheet(context.Background(), request); err != nil {
		t.Fatalf("AnalyzeSheet failed: %v", err)
	}
	if analyzer.lastOpts.ReferenceLayout != layout {
		t.Error("Reference layout should reach the analyzer when requested")
	}

	request.UseReferenceLayout = false
	if _, err := svc.AnalyzeSheet(context.Background(), request); err != nil {
		t.Fatalf("AnalyzeSheet failed: %v", err)
	}
	if analyzer.lastOpts.ReferenceLayout != nil {
		t.Error("Inferred mode must not carry a reference layout")
	}
}

func TestAnalyzeSheet_DownscalesOversizedScans(t *testing.T) {
	repo := &stubSheetRepo{img: image.NewGray(image.Rect(0, 0, 4800, 3600))}
	analyzer := &stubAnalyzer{result: okResult()}
	svc := newStubService(repo, analyzer, nil)

	if _, err := svc.AnalyzeSheet(context.Background(), models.ScanRequest{
		URL: "https://example.com/sheet.png",
	}); err != nil {
		t.Fatalf("AnalyzeSheet failed: %v", err)
	}

	if analyzer.lastDims.X > 2400 || analyzer.lastDims.Y > 2400 {
		t.Errorf("Oversized scan was not downscaled: %v", analyzer.lastDims)
	}
	// Aspect ratio is preserved
	if analyzer.lastDims.X != 2400 || analyzer.lastDims.Y != 1800 {
		t.Errorf("Downscaled dimensions = %v, want (2400, 1800)", analyzer.lastDims)
	}
}

func TestAnalyzeSheet_AnswerKeyProducesAccuracy(t *testing.T) {
	result := okResult()
	result.Questions = []models.QuestionResult{
		{Question: 1, Answer: "A", Status: models.StatusOK, Confidence: 0.9},
		{Question: 2, Answer: "B", Status: models.StatusOK, Confidence: 0.9},
		{Question: 3, Answer: "BLANK", Status: models.StatusOK, Confidence: 0.1},
	}
	result.ExtractedAnswers = []string{"A", "B", "BLANK"}

	repo := &stubSheetRepo{img: image.NewGray(image.Rect(0, 0, 400, 300))}
	svc := newStubService(repo, &stubAnalyzer{result: result}, nil)

	response, err := svc.AnalyzeSheet(context.Background(), models.ScanRequest{
		URL:       "https://example.com/sheet.png",
		AnswerKey: []string{"A", "C", "BLANK"},
	})
	if err != nil {
		t.Fatalf("AnalyzeSheet failed: %v", err)
	}

	if response.Accuracy == nil {
		t.Fatal("Expected an accuracy report")
	}
	if response.Accuracy.Graded != 3 || response.Accuracy.Matches != 2 {
		t.Errorf("Accuracy = %d/%d, want 2/3",
			response.Accuracy.Matches, response.Accuracy.Graded)
	}
	if math.Abs(response.Accuracy.MatchRate-2.0/3.0) > 1e-9 {
		t.Errorf("MatchRate = %v, want 2/3", response.Accuracy.MatchRate)
	}
}

func TestAnalyzeSheet_RetainsResult(t *testing.T) {
	repo := &stubSheetRepo{img: image.NewGray(image.Rect(0, 0, 400, 300))}
	svc := newStubService(repo, &stubAnalyzer{result: okResult()}, nil)

	url := "https://example.com/sheet.png"
	if _, err := svc.AnalyzeSheet(context.Background(), models.ScanRequest{URL: url}); err != nil {
		t.Fatalf("AnalyzeSheet failed: %v", err)
	}

	stored, err := svc.GetResult(context.Background(), url)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if len(stored.ExtractedAnswers) != 1 || stored.ExtractedAnswers[0] != "C" {
		t.Errorf("Stored answers = %v, want [C]", stored.ExtractedAnswers)
	}

	if _, err := svc.GetResult(context.Background(), "https://example.com/never-scanned.png"); err == nil {
		t.Error("Expected error for a URL that was never scanned")
	}
}

func TestGradeAnswers(t *testing.T) {
	tests := []struct {
		name      string
		extracted []string
		key       []string
		graded    int
		matches   int
		matchRate float64
	}{
		{
			name:      "Perfect score",
			extracted: []string{"A", "B", "C"},
			key:       []string{"A", "B", "C"},
			graded:    3, matches: 3, matchRate: 1,
		},
		{
			name:      "Partial match",
			extracted: []string{"A", "D", "C"},
			key:       []string{"A", "B", "C"},
			graded:    3, matches: 2, matchRate: 2.0 / 3.0,
		},
		{
			name:      "Key longer than extraction",
			extracted: []string{"A", "B"},
			key:       []string{"A", "B", "C", "D"},
			graded:    2, matches: 2, matchRate: 1,
		},
		{
			name:      "Nothing extracted",
			extracted: nil,
			key:       []string{"A", "B"},
			graded:    0, matches: 0, matchRate: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := gradeAnswers(tt.extracted, tt.key)
			if report.Graded != tt.graded {
				t.Errorf("Graded = %d, want %d", report.Graded, tt.graded)
			}
			if report.Matches != tt.matches {
				t.Errorf("Matches = %d, want %d", report.Matches, tt.matches)
			}
			if math.Abs(report.MatchRate-tt.matchRate) > 1e-9 {
				t.Errorf("MatchRate = %v, want %v", report.MatchRate, tt.matchRate)
			}
		})
	}
}

func TestSequenceAgreement(t *testing.T) {
	tests := []struct {
		name      string
		extracted []string
		key       []string
		expected  float64
	}{
		{
			name:      "Identical sequences",
			extracted: []string{"A", "B", "MULTIPLE:BD"},
			key:       []string{"A", "B", "MULTIPLE:BD"},
			expected:  1,
		},
		{
			name:      "One substitution in four",
			extracted: []string{"A", "B", "C", "D"},
			key:       []string{"A", "B", "E", "D"},
			expected:  0.75,
		},
		{
			name:      "Dropped question shifts the tail",
			extracted: []string{"A", "C", "D"},
			key:       []string{"A", "B", "C", "D"},
			expected:  0.75,
		},
		{
			name:      "Both empty",
			extracted: nil,
			key:       nil,
			expected:  1,
		},
		{
			name:      "Completely disjoint",
			extracted: []string{"A", "A"},
			key:       []string{"B", "B"},
			expected:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sequenceAgreement(tt.extracted, tt.key)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("sequenceAgreement = %v, want %v", got, tt.expected)
			}
		})
	}
}
