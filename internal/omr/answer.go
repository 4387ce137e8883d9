package omr

import (
	"sort"
	"strings"

	"go-omr-scanner/pkg/models"
)

// Confidence constants for answer selection. The two-factor design
// (absolute level + separation from the runner-up) keeps uniformly gray
// scans from producing false positives and ambiguous double-dark marks
// from producing false confidence.
const (
	blankConfidence     = 0.15
	multipleMarkPenalty = 0.8
	minAnswerConfidence = 0.5
)

// AnswerDecision is the outcome for a single question's intensity set.
type AnswerDecision struct {
	Answer     string
	Confidence float64
	Blank      bool
	Multiple   bool
}

// selectAnswer converts one question's option→intensity map into a discrete
// decision. The detection threshold is inclusive on the filled side: an
// intensity exactly at the threshold counts as a mark.
func selectAnswer(intensities map[string]float64, threshold float64) AnswerDecision {
	if len(intensities) == 0 {
		return AnswerDecision{Answer: models.AnswerBlank, Confidence: blankConfidence, Blank: true}
	}

	type ranked struct {
		label     string
		intensity float64
	}
	options := make([]ranked, 0, len(intensities))
	for label, v := range intensities {
		options = append(options, ranked{label, v})
	}
	// Descending by intensity; equal intensities order by label so the
	// decision is deterministic.
	sort.Slice(options, func(i, j int) bool {
		if options[i].intensity != options[j].intensity {
			return options[i].intensity > options[j].intensity
		}
		return options[i].label < options[j].label
	})

	best := options[0]
	if best.intensity < threshold {
		return AnswerDecision{Answer: models.AnswerBlank, Confidence: blankConfidence, Blank: true}
	}

	separation := best.intensity
	if len(options) > 1 {
		separation = best.intensity - options[1].intensity
	}
	combined := (intensityConfidence(best.intensity) + separationConfidence(separation)) / 2

	var marked []string
	for _, o := range options {
		if o.intensity >= threshold {
			marked = append(marked, o.label)
		}
	}
	if len(marked) > 1 {
		sort.Strings(marked)
		return AnswerDecision{
			Answer:     models.AnswerMultiplePrefix + strings.Join(marked, ""),
			Confidence: combined * multipleMarkPenalty,
			Multiple:   true,
		}
	}

	if combined < minAnswerConfidence {
		combined = minAnswerConfidence
	}
	return AnswerDecision{Answer: best.label, Confidence: combined}
}

// intensityConfidence is a step function of the winning mark's absolute
// darkness: darker marks earn higher confidence tiers.
func intensityConfidence(intensity float64) float64 {
	switch {
	case intensity >= 0.80:
		return 0.95
	case intensity >= 0.60:
		return 0.85
	case intensity >= 0.45:
		return 0.70
	default:
		return 0.55
	}
}

// separationConfidence is a step function of the gap between the winning
// mark and the runner-up.
func separationConfidence(gap float64) float64 {
	switch {
	case gap >= 0.40:
		return 0.95
	case gap >= 0.25:
		return 0.85
	case gap >= 0.15:
		return 0.70
	case gap >= 0.05:
		return 0.55
	default:
		return 0.40
	}
}
