package service

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/arbovm/levenshtein"
	"github.com/disintegration/imaging"

	apperrors "go-omr-scanner/internal/errors"
	"go-omr-scanner/internal/logger"
	"go-omr-scanner/internal/observer"
	"go-omr-scanner/internal/omr"
	"go-omr-scanner/internal/repository"
	"go-omr-scanner/internal/strategy"
	"go-omr-scanner/pkg/models"
	"go-omr-scanner/pkg/validation"
)

// ScanService defines the sheet scanning application service
type ScanService interface {
	// AnalyzeSheet fetches a sheet scan and extracts its answers
	AnalyzeSheet(ctx context.Context, request models.ScanRequest) (*models.ScanResponse, error)

	// ValidateSheetURL validates the sheet URL
	ValidateSheetURL(sheetURL string) error

	// GetResult returns the most recent stored result for a sheet URL
	GetResult(ctx context.Context, sheetURL string) (*models.SheetResult, error)

	// Stats returns scan counters collected so far
	Stats() map[string]interface{}
}

// scanService implements ScanService
type scanService struct {
	sheetRepo       repository.SheetRepository
	resultRepo      repository.ResultRepository
	analyzer        omr.SheetAnalyzer
	options         omr.AnalysisOptions
	referenceLayout *models.ReferenceLayout
	publisher       observer.Subject
	metrics         *observer.MetricsObserver
	validator       *validation.ScanValidator
	maxDimension    int
}

// NewScanService creates a new scan service. referenceLayout may be nil, in
// which case every scan uses grid inference; resultRepo may be nil to
// disable result retention.
func NewScanService(
	sheetRepo repository.SheetRepository,
	resultRepo repository.ResultRepository,
	analyzer omr.SheetAnalyzer,
	options omr.AnalysisOptions,
	referenceLayout *models.ReferenceLayout,
	publisher observer.Subject,
	metrics *observer.MetricsObserver,
	maxDimension int,
) ScanService {
	return &scanService{
		sheetRepo:       sheetRepo,
		resultRepo:      resultRepo,
		analyzer:        analyzer,
		options:         options,
		referenceLayout: referenceLayout,
		publisher:       publisher,
		metrics:         metrics,
		validator:       validation.NewScanValidator(),
		maxDimension:    maxDimension,
	}
}

// AnalyzeSheet fetches a sheet scan and extracts its answers
func (s *scanService) AnalyzeSheet(ctx context.Context, request models.ScanRequest) (*models.ScanResponse, error) {
	start := time.Now()

	if err := s.ValidateSheetURL(request.URL); err != nil {
		return nil, apperrors.NewValidationError("invalid sheet URL", err)
	}
	s.notify(ctx, observer.SheetReceived, request.URL, 0, true, "")

	img, err := s.sheetRepo.FetchSheet(ctx, request.URL)
	if err != nil {
		s.notify(ctx, observer.SheetFetchFailed, request.URL, time.Since(start), false, err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("sheet fetch timeout", err)
		}
		return nil, apperrors.NewNetworkError("failed to fetch sheet", err)
	}
	s.notify(ctx, observer.SheetFetched, request.URL, time.Since(start), true, "")

	img = s.downscale(img)

	result, err := s.execute(img, request.UseReferenceLayout)
	if err != nil {
		s.notify(ctx, observer.SheetFailed, request.URL, time.Since(start), false, err.Error())
		return nil, err
	}
	s.notify(ctx, observer.SheetAnalyzed, request.URL, time.Since(start), true, "")

	if s.resultRepo != nil {
		if err := s.resultRepo.SaveResult(ctx, request.URL, &result); err != nil {
			logger.WithError(err).WithField("url", request.URL).Warn("Failed to retain scan result")
		}
	}

	response := s.convertToResponse(request.URL, &result)
	if len(request.AnswerKey) > 0 {
		response.Accuracy = gradeAnswers(result.ExtractedAnswers, request.AnswerKey)
	}
	return response, nil
}

// ValidateSheetURL validates the sheet URL
func (s *scanService) ValidateSheetURL(sheetURL string) error {
	return s.sheetRepo.ValidateSheetURL(sheetURL)
}

// GetResult returns the most recent stored result for a sheet URL
func (s *scanService) GetResult(ctx context.Context, sheetURL string) (*models.SheetResult, error) {
	if s.resultRepo == nil {
		return nil, repository.ErrResultNotFound
	}
	return s.resultRepo.GetResult(ctx, sheetURL)
}

// Stats returns scan counters collected so far
func (s *scanService) Stats() map[string]interface{} {
	if s.metrics == nil {
		return map[string]interface{}{}
	}
	return s.metrics.GetMetrics()
}

// execute picks the calibration strategy for this request and runs it.
func (s *scanService) execute(img image.Image, useReference bool) (models.SheetResult, error) {
	var cal strategy.CalibrationStrategy
	if useReference && s.referenceLayout != nil {
		cal = strategy.NewReferenceLayoutStrategy(s.analyzer, s.options, s.referenceLayout)
	} else {
		cal = strategy.NewInferredLayoutStrategy(s.analyzer, s.options)
	}
	return strategy.NewCalibrationContext(cal).ExecuteAnalysis(img)
}

// downscale caps the working resolution. Intensity scoring is resolution
// independent above the bubble scale, so oversized scans only cost time.
func (s *scanService) downscale(img image.Image) image.Image {
	if s.maxDimension <= 0 {
		return img
	}
	bounds := img.Bounds()
	if bounds.Dx() <= s.maxDimension && bounds.Dy() <= s.maxDimension {
		return img
	}
	return imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
}

func (s *scanService) notify(ctx context.Context, eventType observer.EventType, url string, elapsed time.Duration, success bool, errMsg string) {
	if s.publisher == nil {
		return
	}
	s.publisher.NotifyObservers(ctx, observer.ScanEvent{
		EventType:      eventType,
		Timestamp:      time.Now(),
		SheetURL:       url,
		ProcessingTime: elapsed,
		Success:        success,
		ErrorMessage:   errMsg,
	})
}

// convertToResponse maps an engine result to the API response, folding in
// rescan advice for scans that failed validation.
func (s *scanService) convertToResponse(sheetURL string, result *models.SheetResult) *models.ScanResponse {
	response := &models.ScanResponse{
		SheetURL:          sheetURL,
		Timestamp:         result.Timestamp.Format(time.RFC3339),
		ProcessingTimeSec: result.ProcessingTimeSec,
		Questions:         result.Questions,
		ExtractedAnswers:  result.ExtractedAnswers,
		OverallConfidence: result.OverallConfidence,
		Quality:           result.Quality,
		Layout:            result.Layout,
		Errors:            result.Errors,
	}

	issues := s.validator.ValidateExtraction(*result)
	if s.validator.HasCriticalIssues(issues) {
		response.Errors = append(response.Errors, s.validator.ConvertIssuesToMessages(issues)...)
	}
	return response
}

// gradeAnswers compares extracted answers to an answer key. MatchRate is
// positional over the graded prefix; SequenceAgreement uses edit distance
// over answer tokens so a single dropped question does not zero the score.
func gradeAnswers(extracted, key []string) *models.AccuracyReport {
	graded := len(key)
	if len(extracted) < graded {
		graded = len(extracted)
	}

	matches := 0
	for i := 0; i < graded; i++ {
		if extracted[i] == key[i] {
			matches++
		}
	}

	report := &models.AccuracyReport{
		Graded:            graded,
		Matches:           matches,
		SequenceAgreement: sequenceAgreement(extracted, key),
	}
	if graded > 0 {
		report.MatchRate = float64(matches) / float64(graded)
	}
	return report
}

// sequenceAgreement maps each distinct answer token to a rune and computes
// normalized Levenshtein similarity over the resulting strings.
func sequenceAgreement(extracted, key []string) float64 {
	if len(extracted) == 0 && len(key) == 0 {
		return 1
	}

	alphabet := make(map[string]rune)
	next := 'a'
	encode := func(tokens []string) string {
		encoded := make([]rune, len(tokens))
		for i, token := range tokens {
			r, ok := alphabet[token]
			if !ok {
				r = next
				alphabet[token] = r
				next++
			}
			encoded[i] = r
		}
		return string(encoded)
	}

	a := encode(extracted)
	b := encode(key)
	longest := len(extracted)
	if len(key) > longest {
		longest = len(key)
	}

	distance := levenshtein.Distance(a, b)
	agreement := 1 - float64(distance)/float64(longest)
	if agreement < 0 {
		return 0
	}
	return agreement
}
