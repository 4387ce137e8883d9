package omr

import (
	"go-omr-scanner/pkg/models"
)

// Calibration confidence reported for reference-map mode: the layout is
// known a priori, so only scan alignment can degrade it.
const referenceCalibrationConfidence = 0.95

// maxOptionsPerQuestion caps inferred option labels at "A".."Z".
const maxOptionsPerQuestion = 26

// RescaleLayout maps a reference layout onto the working image size and
// returns a fresh question map. The input layout is never mutated, so a
// loaded reference layout can be shared across concurrent analyses.
func RescaleLayout(layout *models.ReferenceLayout, targetWidth, targetHeight int) map[int]models.OptionPoints {
	sx := float64(targetWidth) / float64(layout.ReferenceWidth)
	sy := float64(targetHeight) / float64(layout.ReferenceHeight)

	scaled := make(map[int]models.OptionPoints, len(layout.Questions))
	for q, opts := range layout.Questions {
		points := make(models.OptionPoints, len(opts))
		for label, pt := range opts {
			points[label] = models.SamplePoint{X: pt.X * sx, Y: pt.Y * sy}
		}
		scaled[q] = points
	}
	return scaled
}

// InferLayout maps the grid model onto question numbers and option letters.
// Questions run row-major within a column block, then continue in the next
// block; option letters follow column order within the block. The partition
// gives the question count per block (e.g. [14, 13, 13]); nil means a single
// block with one question per detected row.
func InferLayout(grid GridModel, partition []int) (map[int]models.OptionPoints, models.LayoutInfo, float64) {
	info := models.LayoutInfo{CoordinateSource: models.CoordinateSourceInferred}

	if grid.Degenerate || grid.StandardRowLength == 0 {
		return nil, info, 0
	}

	if len(partition) == 0 {
		partition = []int{len(grid.Rows)}
	}
	blocks := len(partition)

	if grid.StandardRowLength%blocks != 0 {
		// The detected column count cannot be split evenly across the
		// configured blocks; calibration cannot be trusted.
		return nil, info, 0
	}
	optionsPerQuestion := grid.StandardRowLength / blocks
	if optionsPerQuestion == 0 || optionsPerQuestion > maxOptionsPerQuestion {
		return nil, info, 0
	}

	questions := make(map[int]models.OptionPoints)
	offset := 0
	for b := 0; b < blocks; b++ {
		for r := 0; r < partition[b]; r++ {
			if r >= len(grid.Rows) {
				// Not enough detected rows; the question stays absent and
				// is reported as missing downstream.
				continue
			}
			points := make(models.OptionPoints, optionsPerQuestion)
			for j := 0; j < optionsPerQuestion; j++ {
				label := string(rune('A' + j))
				points[label] = models.SamplePoint{
					X: grid.ColumnPositions[b*optionsPerQuestion+j],
					Y: grid.Rows[r].MeanY,
				}
			}
			questions[offset+r+1] = points
		}
		offset += partition[b]
	}

	confidence := calibrationConfidence(grid)

	info.Columns = blocks
	info.QuestionsPerColumn = partition
	info.CalibrationConfidence = confidence
	return questions, info, confidence
}

// calibrationConfidence derives a confidence scalar from how tightly the
// candidates sit on the inferred column positions: residuals near half the
// column spacing mean assignments were essentially guesses.
func calibrationConfidence(grid GridModel) float64 {
	if grid.ColumnSpacing <= 0 {
		return 0
	}
	c := 1 - grid.MeanResidual/(0.5*grid.ColumnSpacing)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
