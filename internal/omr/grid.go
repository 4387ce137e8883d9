package omr

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Row is an ordered (by x) sequence of candidates whose y-centers lie within
// the row tolerance of the row's running mean y.
type Row struct {
	Bubbles []BubbleCandidate
	MeanY   float64

	// Columns[i] is the index of the grid column nearest to Bubbles[i],
	// assigned once the column positions are known. Equidistant candidates
	// take the lower column index.
	Columns []int
}

// GridModel is the inferred row/column structure of the sheet. The standard
// row length is the modal row cardinality; column positions are mean x per
// column computed only from rows matching it. GridModel values may be cached
// and shared read-only across sheets with the same layout.
type GridModel struct {
	Rows              []Row
	ColumnPositions   []float64
	ColumnSpacing     float64
	StandardRowLength int

	// MeanResidual is the mean |x - columnPosition| over all assignments,
	// kept for calibration-confidence diagnostics.
	MeanResidual float64

	// Degenerate is set when too few rows were found or no row length
	// occurred more than once; calibration then reports confidence 0.
	Degenerate bool
}

type gridClusterer struct {
	opts AnalysisOptions
}

func newGridClusterer(opts AnalysisOptions) *gridClusterer {
	return &gridClusterer{opts: opts}
}

// Cluster groups candidates into rows and derives canonical column
// positions. Using the modal row length (rather than the max or a fixed
// constant) keeps the grid correct when a subset of rows has merged or
// missing bubbles.
func (g *gridClusterer) Cluster(candidates []BubbleCandidate) GridModel {
	if len(candidates) == 0 {
		return GridModel{Degenerate: true}
	}

	sorted := make([]BubbleCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CenterY() != sorted[j].CenterY() {
			return sorted[i].CenterY() < sorted[j].CenterY()
		}
		return sorted[i].CenterX() < sorted[j].CenterX()
	})

	rows := g.clusterRows(sorted)

	model := GridModel{Rows: rows}
	model.StandardRowLength = modalRowLength(rows)

	if len(rows) < g.opts.MinStandardRows || model.StandardRowLength == 0 {
		model.Degenerate = true
		return model
	}

	// Column positions: mean x per column over rows of modal length.
	model.ColumnPositions = make([]float64, model.StandardRowLength)
	for col := 0; col < model.StandardRowLength; col++ {
		var xs []float64
		for _, row := range rows {
			if len(row.Bubbles) == model.StandardRowLength {
				xs = append(xs, row.Bubbles[col].CenterX())
			}
		}
		model.ColumnPositions[col] = stat.Mean(xs, nil)
	}

	// Mean successive difference between column positions.
	if len(model.ColumnPositions) > 1 {
		var diffs []float64
		for i := 1; i < len(model.ColumnPositions); i++ {
			diffs = append(diffs, model.ColumnPositions[i]-model.ColumnPositions[i-1])
		}
		model.ColumnSpacing = stat.Mean(diffs, nil)
	}

	g.assignColumns(&model)
	return model
}

// clusterRows greedily assigns y-sorted candidates to the current row while
// they stay within rowTolerance of the running mean y. Rows with fewer than
// two members are discarded as noise.
func (g *gridClusterer) clusterRows(sorted []BubbleCandidate) []Row {
	var rows []Row
	var current []BubbleCandidate
	var sumY float64

	flush := func() {
		if len(current) >= 2 {
			row := Row{
				Bubbles: append([]BubbleCandidate(nil), current...),
				MeanY:   sumY / float64(len(current)),
			}
			sort.SliceStable(row.Bubbles, func(i, j int) bool {
				return row.Bubbles[i].CenterX() < row.Bubbles[j].CenterX()
			})
			rows = append(rows, row)
		}
		current = current[:0]
		sumY = 0
	}

	for _, c := range sorted {
		if len(current) > 0 {
			meanY := sumY / float64(len(current))
			if math.Abs(c.CenterY()-meanY) > g.opts.RowTolerance {
				flush()
			}
		}
		current = append(current, c)
		sumY += c.CenterY()
	}
	flush()
	return rows
}

// modalRowLength returns the most frequent row cardinality. Ties prefer the
// larger length. Returns 0 when no length occurs more than once, which
// marks the grid degenerate (unless there is only a single distinct length).
func modalRowLength(rows []Row) int {
	counts := make(map[int]int)
	for _, row := range rows {
		counts[len(row.Bubbles)]++
	}
	best, bestCount := 0, 0
	for length, count := range counts {
		if count > bestCount || (count == bestCount && length > best) {
			best, bestCount = length, count
		}
	}
	if bestCount < 2 && len(counts) > 1 {
		return 0
	}
	return best
}

// assignColumns maps every candidate in every row (standard or not) to the
// nearest column position and records the residual distances.
func (g *gridClusterer) assignColumns(model *GridModel) {
	var residuals []float64
	for i := range model.Rows {
		row := &model.Rows[i]
		row.Columns = make([]int, len(row.Bubbles))
		for j, b := range row.Bubbles {
			col, residual := nearestColumn(model.ColumnPositions, b.CenterX())
			row.Columns[j] = col
			residuals = append(residuals, residual)
		}
	}
	if len(residuals) > 0 {
		model.MeanResidual = stat.Mean(residuals, nil)
	}
}

// nearestColumn returns the index of the closest column position. On an
// exact distance tie the lower index wins, so assignment is deterministic.
func nearestColumn(positions []float64, x float64) (int, float64) {
	best := 0
	bestDist := math.Abs(x - positions[0])
	for i := 1; i < len(positions); i++ {
		d := math.Abs(x - positions[i])
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}
