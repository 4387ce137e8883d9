// Package quality scores scanned sheets on sharpness, brightness, contrast
// and alignment, and gates whether a scan is trustworthy enough for answer
// extraction. The gate never rejects a sheet outright; it annotates the
// result so callers can decide to rescan.
package quality

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"go-omr-scanner/pkg/models"
)

// Quality categories ordered from best to worst.
const (
	CategoryExcellent = "excellent"
	CategoryGood      = "good"
	CategoryFair      = "fair"
	CategoryPoor      = "poor"
)

// Thresholds holds the tunable boundaries of the quality gate.
type Thresholds struct {
	// SharpnessScale is the Laplacian variance that maps to a perfect
	// sharpness score. Typical crisp 300dpi scans land well above it.
	SharpnessScale float64

	// Brightness band for a well exposed document scan, in 0..255 mean
	// gray. Documents are mostly paper, so the band sits high.
	BrightnessLow  float64
	BrightnessHigh float64

	// Contrast band in coefficient-of-variation terms (stddev / mean).
	ContrastLow  float64
	ContrastHigh float64

	// MaxSkewDegrees is the skew angle that maps alignment to 0.
	MaxSkewDegrees float64

	// Category boundaries on the overall score. ReadyBoundary is
	// inclusive: a score exactly at it is still processable.
	ExcellentBoundary float64
	GoodBoundary      float64
	ReadyBoundary     float64
}

// DefaultThresholds returns the gate tuning used in production.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SharpnessScale:    500,
		BrightnessLow:     150,
		BrightnessHigh:    250,
		ContrastLow:       0.05,
		ContrastHigh:      0.90,
		MaxSkewDegrees:    15,
		ExcellentBoundary: 0.80,
		GoodBoundary:      0.65,
		ReadyBoundary:     0.50,
	}
}

// Component weights of the overall score.
const (
	sharpnessWeight  = 0.30
	brightnessWeight = 0.25
	contrastWeight   = 0.25
	alignmentWeight  = 0.20
)

// Gate assesses scan quality. Safe for concurrent use.
type Gate struct {
	thresholds Thresholds
}

// NewGate creates a quality gate with default thresholds.
func NewGate() *Gate {
	return &Gate{thresholds: DefaultThresholds()}
}

// NewGateWithThresholds creates a quality gate with custom thresholds.
func NewGateWithThresholds(t Thresholds) *Gate {
	return &Gate{thresholds: t}
}

// Assess computes all quality metrics for a grayscale scan.
func (g *Gate) Assess(gray *image.Gray) models.QualityMetrics {
	bounds := gray.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return models.QualityMetrics{Category: CategoryPoor}
	}

	mean, stddev := g.meanStddev(gray)

	m := models.QualityMetrics{
		Sharpness:  g.sharpnessScore(gray),
		Brightness: g.brightnessScore(mean),
		Contrast:   g.contrastScore(mean, stddev),
		Alignment:  g.alignmentScore(gray),
	}
	m.OverallScore = sharpnessWeight*m.Sharpness +
		brightnessWeight*m.Brightness +
		contrastWeight*m.Contrast +
		alignmentWeight*m.Alignment
	m.Category, m.IsReadyForProcessing = g.Categorize(m.OverallScore)
	return m
}

// Categorize maps an overall score to a category label and the processing
// gate decision. All boundaries are inclusive on the better side.
func (g *Gate) Categorize(score float64) (string, bool) {
	switch {
	case score >= g.thresholds.ExcellentBoundary:
		return CategoryExcellent, true
	case score >= g.thresholds.GoodBoundary:
		return CategoryGood, true
	case score >= g.thresholds.ReadyBoundary:
		return CategoryFair, true
	default:
		return CategoryPoor, false
	}
}

// sharpnessScore normalizes the Laplacian variance of the image. Blur
// flattens second derivatives, so low variance means a soft scan.
func (g *Gate) sharpnessScore(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := make([]float64, 0, (width-2)*(height-2))
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)
			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	variance := stat.Variance(data, nil)
	return clamp01(variance / g.thresholds.SharpnessScale)
}

func (g *Gate) brightnessScore(mean float64) float64 {
	t := g.thresholds
	switch {
	case mean >= t.BrightnessLow && mean <= t.BrightnessHigh:
		return 1
	case mean < t.BrightnessLow:
		return clamp01(mean / t.BrightnessLow)
	default:
		return clamp01((255 - mean) / (255 - t.BrightnessHigh))
	}
}

// contrastScore uses the coefficient of variation rather than raw stddev so
// the score is stable across exposure levels.
func (g *Gate) contrastScore(mean, stddev float64) float64 {
	if mean <= 0 {
		return 0
	}
	cv := stddev / mean
	t := g.thresholds
	switch {
	case cv >= t.ContrastLow && cv <= t.ContrastHigh:
		return 1
	case cv < t.ContrastLow:
		return clamp01(cv / t.ContrastLow)
	default:
		return clamp01((1 - cv) / (1 - t.ContrastHigh))
	}
}

// alignmentScore estimates page skew by regressing strong Sobel edges and
// scoring the fitted angle. Too few edges to fit means skew cannot be
// judged, which scores neutral rather than failing the sheet.
func (g *Gate) alignmentScore(gray *image.Gray) float64 {
	angle := detectSkew(gray)
	if angle == nil {
		return 0.5
	}
	return clamp01(1 - math.Abs(*angle)/g.thresholds.MaxSkewDegrees)
}

func (g *Gate) meanStddev(gray *image.Gray) (float64, float64) {
	bounds := gray.Bounds()
	var sum, sumSq float64
	n := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(gray.GrayAt(x, y).Y)
			sum += v
			sumSq += v * v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// detectSkew fits a line through strong edge pixels and returns its angle
// in degrees, normalized to [-45, 45]. Returns nil when the image has too
// few edges for a meaningful fit.
func detectSkew(gray *image.Gray) *float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var xCoords, yCoords []float64
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := sobelX(gray, x, y)
			gy := sobelY(gray, x, y)
			if math.Sqrt(float64(gx*gx+gy*gy)) > 50 {
				xCoords = append(xCoords, float64(x))
				yCoords = append(yCoords, float64(y))
			}
		}
	}
	if len(xCoords) < 10 {
		return nil
	}

	meanX := stat.Mean(xCoords, nil)
	meanY := stat.Mean(yCoords, nil)
	var sumXY, sumX2 float64
	for i := range xCoords {
		dx := xCoords[i] - meanX
		dy := yCoords[i] - meanY
		sumXY += dx * dy
		sumX2 += dx * dx
	}
	if math.Abs(sumX2) < 1e-10 {
		return nil
	}

	angle := math.Atan(sumXY/sumX2) * 180 / math.Pi
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return nil
	}
	for angle > 45 {
		angle -= 90
	}
	for angle < -45 {
		angle += 90
	}
	return &angle
}

func sobelX(gray *image.Gray, x, y int) int {
	return -1*int(gray.GrayAt(x-1, y-1).Y) + 1*int(gray.GrayAt(x+1, y-1).Y) +
		-2*int(gray.GrayAt(x-1, y).Y) + 2*int(gray.GrayAt(x+1, y).Y) +
		-1*int(gray.GrayAt(x-1, y+1).Y) + 1*int(gray.GrayAt(x+1, y+1).Y)
}

func sobelY(gray *image.Gray, x, y int) int {
	return -1*int(gray.GrayAt(x-1, y-1).Y) - 2*int(gray.GrayAt(x, y-1).Y) - 1*int(gray.GrayAt(x+1, y-1).Y) +
		1*int(gray.GrayAt(x-1, y+1).Y) + 2*int(gray.GrayAt(x, y+1).Y) + 1*int(gray.GrayAt(x+1, y+1).Y)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
