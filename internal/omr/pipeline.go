package omr

import (
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-omr-scanner/internal/errors"
	"go-omr-scanner/internal/logger"
	"go-omr-scanner/pkg/models"
	"go-omr-scanner/pkg/quality"
)

// coreAnalyzer implements SheetAnalyzer and orchestrates the pipeline:
// preprocess → detect → cluster → calibrate → score → select, with the
// quality gate assessed independently from the preprocessed grayscale.
type coreAnalyzer struct {
	pool     *WorkerPool
	gate     *quality.Gate
	defaults AnalysisOptions
}

// NewSheetAnalyzer creates an analyzer with the given default options. The
// worker pool is shared across invocations; all per-sheet state lives on
// the stack of each call, so concurrent sheets never interfere.
func NewSheetAnalyzer(defaults AnalysisOptions) (SheetAnalyzer, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	pool := NewWorkerPool(defaults.MaxWorkers)
	pool.Start()

	return &coreAnalyzer{
		pool:     pool,
		gate:     quality.NewGate(),
		defaults: defaults,
	}, nil
}

// Analyze runs the pipeline with the analyzer's default options.
func (ca *coreAnalyzer) Analyze(img image.Image) (models.SheetResult, error) {
	return ca.AnalyzeWithOptions(img, ca.defaults)
}

// AnalyzeWithOptions runs the full pipeline for one sheet.
func (ca *coreAnalyzer) AnalyzeWithOptions(img image.Image, opts AnalysisOptions) (models.SheetResult, error) {
	start := time.Now()
	result := models.SheetResult{Timestamp: start}

	if err := opts.Validate(); err != nil {
		return result, apperrors.NewValidationError("invalid analysis options", err)
	}

	pre, err := newPreprocessor(opts).Process(img)
	if err != nil {
		return result, err
	}

	result.Quality = ca.gate.Assess(pre.Gray)

	questionPoints, expected, degraded, ok := ca.calibrate(pre, opts, &result)
	if !ok {
		result.ProcessingTimeSec = time.Since(start).Seconds()
		return result, nil
	}

	// Low calibration confidence raises the detection threshold: when
	// sample points may be off-center, faint darkness is less trustworthy.
	threshold := opts.DetectionThreshold + (1-result.Layout.CalibrationConfidence)*0.1
	if threshold > 0.4 {
		threshold = 0.4
	}

	scorer := opts.Scorer
	if scorer == nil {
		scorer = NewMultiRadiusScorer(opts.AnalysisRadii, opts.RadiusWeights)
	}

	// Per-question scoring runs on the worker pool. Each job writes only
	// its own slot; ordering is restored by question number, not by
	// completion order.
	questions := make([]models.QuestionResult, expected)
	var wg sync.WaitGroup
	for i := 0; i < expected; i++ {
		num := i + 1
		points, present := questionPoints[num]
		if !present {
			questions[i] = missingQuestionResult(num, degraded)
			continue
		}
		idx := i
		pts := points
		wg.Add(1)
		ca.pool.Submit(func() {
			defer wg.Done()
			questions[idx] = scoreQuestion(pre.Gray, num, pts, scorer, threshold)
		})
	}
	wg.Wait()

	result.Questions = questions
	result.ExtractedAnswers = make([]string, len(questions))
	total := 0.0
	for i, q := range questions {
		result.ExtractedAnswers[i] = q.Answer
		total += q.Confidence
	}
	if len(questions) > 0 {
		result.OverallConfidence = total / float64(len(questions))
	}
	result.ProcessingTimeSec = time.Since(start).Seconds()

	logger.WithFields(logrus.Fields{
		"questions":          len(questions),
		"coordinate_source":  result.Layout.CoordinateSource,
		"overall_confidence": result.OverallConfidence,
		"quality":            result.Quality.Category,
	}).Debug("Sheet analysis completed")

	return result, nil
}

// calibrate produces the question→option→point map, either by rescaling a
// known reference layout or by inferring the grid from detected candidates.
// Returns ok=false when the sheet failed outright (no candidates).
func (ca *coreAnalyzer) calibrate(pre *Preprocessed, opts AnalysisOptions, result *models.SheetResult) (map[int]models.OptionPoints, int, bool, bool) {
	if opts.ReferenceLayout != nil {
		points := RescaleLayout(opts.ReferenceLayout, pre.Width, pre.Height)
		result.Layout = models.LayoutInfo{
			Columns:               len(opts.QuestionsPerColumnBlock),
			QuestionsPerColumn:    opts.QuestionsPerColumnBlock,
			CoordinateSource:      models.CoordinateSourceReference,
			CalibrationConfidence: referenceCalibrationConfidence,
		}
		return points, maxQuestionNumber(points), false, true
	}

	candidates := newCandidateDetector(opts).Detect(pre.Mask)
	if len(candidates) == 0 {
		// Binarization produced zero plausible bubbles: a sheet-level
		// failure with overall score 0, never a crash.
		result.Quality.OverallScore = 0
		result.Quality.Category = quality.CategoryPoor
		result.Quality.IsReadyForProcessing = false
		result.Layout.CoordinateSource = models.CoordinateSourceInferred
		result.Errors = append(result.Errors, "no bubble candidates detected")
		return nil, 0, false, false
	}

	grid := newGridClusterer(opts).Cluster(candidates)
	points, layout, confidence := InferLayout(grid, opts.QuestionsPerColumnBlock)
	result.Layout = layout

	expected := 0
	for _, n := range opts.QuestionsPerColumnBlock {
		expected += n
	}
	if expected == 0 {
		expected = len(grid.Rows)
	}

	degraded := confidence == 0
	if degraded {
		result.Errors = append(result.Errors, "degenerate grid: inferred calibration has confidence 0")
	}
	return points, expected, degraded, true
}

// missingQuestionResult records a question calibration could not place.
// With a degenerate grid the whole inferred map is untrustworthy and the
// question is reported with confidence 0; an isolated gap keeps the
// standard missing-question confidence.
func missingQuestionResult(num int, degraded bool) models.QuestionResult {
	if degraded {
		return models.QuestionResult{
			Question:   num,
			Answer:     models.AnswerBlank,
			Status:     models.StatusDegraded,
			Confidence: 0,
		}
	}
	return models.QuestionResult{
		Question:   num,
		Answer:     models.AnswerBlank,
		Status:     models.StatusMissing,
		Confidence: 0.1,
	}
}

func scoreQuestion(gray *image.Gray, num int, points models.OptionPoints, scorer BubbleScorer, threshold float64) models.QuestionResult {
	intensities := make(map[string]float64, len(points))
	for label, pt := range points {
		intensities[label] = scorer.Score(gray, pt)
	}
	decision := selectAnswer(intensities, threshold)
	return models.QuestionResult{
		Question:     num,
		Answer:       decision.Answer,
		Status:       models.StatusOK,
		Confidence:   decision.Confidence,
		Intensities:  intensities,
		SamplePoints: points,
	}
}

func maxQuestionNumber(points map[int]models.OptionPoints) int {
	max := 0
	for q := range points {
		if q > max {
			max = q
		}
	}
	return max
}

// Close shuts down the shared worker pool.
func (ca *coreAnalyzer) Close() error {
	ca.pool.Close()
	return nil
}
