package omr

import (
	"image"
	"math"

	"go-omr-scanner/pkg/models"
)

// multiRadiusScorer is the rule-based bubble scorer: it samples several
// concentric circular regions of increasing radius around the sample point
// and combines their darkness with fixed weights, heaviest on the middle
// radius. A single radius is either too small (pen-stroke noise) or too
// large (picks up neighboring bubbles); the weighted blend smooths that
// trade-off.
type multiRadiusScorer struct {
	radii   []int
	weights []float64
}

// NewMultiRadiusScorer creates the default weighted multi-radius scorer.
// Radii must be strictly increasing and weights must sum to 1.
func NewMultiRadiusScorer(radii []int, weights []float64) BubbleScorer {
	return &multiRadiusScorer{
		radii:   append([]int(nil), radii...),
		weights: append([]float64(nil), weights...),
	}
}

// Score measures weighted darkness at pt on the enhanced grayscale image.
// Sampling the grayscale (not the binary mask) preserves graded fill
// information. An out-of-bounds center scores 0 rather than failing.
func (s *multiRadiusScorer) Score(gray *image.Gray, pt models.SamplePoint) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	cx := int(math.Round(pt.X))
	cy := int(math.Round(pt.Y))
	if cx < 0 || cx >= width || cy < 0 || cy >= height {
		return 0
	}

	total := 0.0
	for i, r := range s.radii {
		sum, count := 0, 0
		for dy := -r; dy <= r; dy++ {
			y := cy + dy
			if y < 0 || y >= height {
				continue
			}
			for dx := -r; dx <= r; dx++ {
				x := cx + dx
				if x < 0 || x >= width || dx*dx+dy*dy > r*r {
					continue
				}
				sum += int(gray.GrayAt(x, y).Y)
				count++
			}
		}
		if count == 0 {
			continue
		}
		darkness := 1 - float64(sum)/float64(count)/255.0
		total += s.weights[i] * darkness
	}

	if total < 0 {
		return 0
	}
	if total > 1 {
		return 1
	}
	return total
}

// classifierScorer adapts a trained FillClassifier into the BubbleScorer
// capability: a confident "filled" maps toward 1, a confident "empty"
// toward 0, so thresholding downstream behaves the same for both scorers.
type classifierScorer struct {
	classifier FillClassifier
}

// ScorerFromClassifier wraps a trained fill classifier as a BubbleScorer.
func ScorerFromClassifier(c FillClassifier) BubbleScorer {
	return &classifierScorer{classifier: c}
}

func (s *classifierScorer) Score(gray *image.Gray, pt models.SamplePoint) float64 {
	bounds := gray.Bounds()
	cx := int(math.Round(pt.X))
	cy := int(math.Round(pt.Y))
	if cx < 0 || cx >= bounds.Dx() || cy < 0 || cy >= bounds.Dy() {
		return 0
	}

	filled, confidence := s.classifier.Classify(gray, pt)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if filled {
		return 0.5 + confidence/2
	}
	return (1 - confidence) / 2
}
